package scribe

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Config настройки клиента ElevenLabs Scribe Realtime (WebSocket).
type Config struct {
	// Endpoint WebSocket, по умолчанию wss://api.elevenlabs.io/v1/speech-to-text/realtime
	Endpoint   string
	APIKey     string // xi-api-key из окружения (ELEVENLABS_API_KEY)
	ModelID    string // например, "scribe_v2_realtime"
	Language   string // код языка; пусто — автоопределение на стороне сервиса
	SampleRate int    // например, 16000

	// Необязательный стартовый JSON, который будет отправлен текстовым фреймом сразу после подключения.
	// Это позволяет быстро адаптироваться к точному формату протокола без перекомпиляции.
	StartJSON string

	// JSON ручной фиксации транскрипта (commit). Если пусто — {"type":"commit"}.
	CommitJSON string

	// Разрешить приём частичных результатов; если false — клиент публикует только финальные.
	AllowPartials bool
}

// Result единица результата распознавания.
type Result struct {
	Text      string
	Final     bool
	Timestamp time.Time
}

// Client реализует потоковое распознавание через WebSocket.
type Client struct {
	cfg     Config
	conn    *websocket.Conn
	mu      sync.Mutex
	writeMu sync.Mutex // gorilla допускает только одного писателя на соединение
	started bool

	// Канал для результатов (закрывается при остановке клиента).
	results chan Result

	// Контекст жизненного цикла соединения.
	ctx    context.Context
	cancel context.CancelFunc
}

// New создаёт клиент, без установления соединения.
func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "wss://api.elevenlabs.io/v1/speech-to-text/realtime"
	}
	if cfg.APIKey == "" {
		return nil, errors.New("scribe: пустой API key (ожидается ELEVENLABS_API_KEY)")
	}
	if cfg.ModelID == "" {
		cfg.ModelID = "scribe_v2_realtime"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{cfg: cfg, results: make(chan Result, 32), ctx: ctx, cancel: cancel}
	return c, nil
}

// Start открывает WebSocket и запускает горутину приёма сообщений.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return errors.New("scribe: уже запущено")
	}

	// Подмешиваем внешний контекст в жизненный цикл
	parent := c.ctx
	c.ctx, c.cancel = context.WithCancel(parent)

	dialer := websocket.Dialer{
		Proxy:             http.ProxyFromEnvironment,
		HandshakeTimeout:  15 * time.Second,
		EnableCompression: false,
	}

	// Параметры, которые ожидает realtime API Scribe:
	// - model_id: модель распознавания
	// - audio_format: pcm_<rate> (LINEAR16 PCM little-endian)
	// - commit_strategy: manual — финал только по явному commit
	u, err := url.Parse(c.cfg.Endpoint)
	if err != nil {
		return fmt.Errorf("scribe: неверный endpoint: %w", err)
	}
	q := u.Query()
	if q.Get("model_id") == "" {
		q.Set("model_id", c.cfg.ModelID)
	}
	if q.Get("audio_format") == "" {
		q.Set("audio_format", fmt.Sprintf("pcm_%d", c.cfg.SampleRate))
	}
	if q.Get("commit_strategy") == "" {
		q.Set("commit_strategy", "manual")
	}
	if c.cfg.Language != "" && q.Get("language_code") == "" {
		q.Set("language_code", c.cfg.Language)
	}
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("xi-api-key", c.cfg.APIKey)

	conn, resp, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		// Улучшим диагностику рукопожатия, если доступен HTTP-ответ.
		if resp != nil {
			return fmt.Errorf("scribe: не удалось подключиться к %s: %s (HTTP %d): %w", u.String(), http.StatusText(resp.StatusCode), resp.StatusCode, err)
		}
		return fmt.Errorf("scribe: не удалось подключиться к %s: %w", u.String(), err)
	}
	c.conn = conn

	// Отправим стартовый JSON, если задан.
	if sj := c.cfg.StartJSON; sj != "" {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(sj)); err != nil {
			_ = conn.Close()
			return fmt.Errorf("scribe: не удалось отправить StartJSON: %w", err)
		}
	}

	// Запустим приём сообщений
	go c.readLoop()

	c.started = true
	return nil
}

// readLoop читает сообщения от сервера и публикует в канал results.
func (c *Client) readLoop() {
	defer close(c.results)
	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		switch msgType {
		case websocket.TextMessage:
			res, ok := parseServerMessage(data)
			if !ok {
				continue
			}
			if !res.Final && !c.cfg.AllowPartials {
				continue
			}
			select {
			case c.results <- res:
			case <-c.ctx.Done():
				return
			}
		case websocket.BinaryMessage:
			// Сервер шлёт текстовые JSON-события. Бинарные можно игнорировать.
		case websocket.CloseMessage:
			return
		}
	}
}

// parseServerMessage пытается вытащить текст и признак финальности из произвольного JSON.
func parseServerMessage(data []byte) (Result, bool) {
	// Основная схема событий Scribe: {"type":"partial_transcript","text":"..."}.
	var s1 struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if json.Unmarshal(data, &s1) == nil && s1.Type != "" {
		switch s1.Type {
		case "partial_transcript":
			return Result{Text: s1.Text, Final: false, Timestamp: time.Now()}, true
		case "committed_transcript", "final_transcript":
			return Result{Text: s1.Text, Final: true, Timestamp: time.Now()}, true
		case "session_started", "session_closed", "error":
			// служебные события; error обрывает соединение и ловится в readLoop
			return Result{}, false
		}
	}

	// Запасные схемы на случай смены формата сервером.
	// 1) {"transcript":"...","final":true}
	var s2 struct {
		Transcript string `json:"transcript"`
		Final      bool   `json:"final"`
	}
	if json.Unmarshal(data, &s2) == nil && (s2.Transcript != "" || s2.Final) {
		return Result{Text: s2.Transcript, Final: s2.Final, Timestamp: time.Now()}, true
	}

	// 2) Generic: {"text":"...","is_final":true}
	var s3 struct {
		Text    string `json:"text"`
		IsFinal bool   `json:"is_final"`
		Final   bool   `json:"final"`
	}
	if json.Unmarshal(data, &s3) == nil && (s3.Text != "" || s3.IsFinal || s3.Final) {
		fin := s3.IsFinal || s3.Final
		return Result{Text: s3.Text, Final: fin, Timestamp: time.Now()}, true
	}

	return Result{}, false
}

// audioChunk формат фрейма аудио: PCM16 в base64, как ожидает realtime API.
type audioChunk struct {
	AudioBase64 string `json:"audio_base_64"`
	SampleRate  int    `json:"sample_rate"`
}

// SendPCM16 отправляет сэмплы PCM16 (mono) текстовым фреймом в base64.
func (c *Client) SendPCM16(samples []int16) error {
	c.mu.Lock()
	conn := c.conn
	started := c.started
	c.mu.Unlock()
	if !started || conn == nil {
		return errors.New("scribe: соединение не установлено (Start не вызывался)")
	}
	// Преобразуем в []byte little-endian, буфер ровно под 2*len(samples).
	b := make([]byte, 0, 2*len(samples))
	for _, s := range samples {
		lo := byte(s)
		hi := byte(s >> 8)
		b = append(b, lo, hi)
	}
	msg, err := json.Marshal(audioChunk{
		AudioBase64: base64.StdEncoding.EncodeToString(b),
		SampleRate:  c.cfg.SampleRate,
	})
	if err != nil {
		return err
	}
	return c.writeText(conn, msg)
}

func (c *Client) writeText(conn *websocket.Conn, msg []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, msg)
}

// Commit просит сервер зафиксировать накопленный транскрипт (manual commit).
// Финальный результат придёт событием committed_transcript в Results.
func (c *Client) Commit() error {
	c.mu.Lock()
	conn := c.conn
	started := c.started
	c.mu.Unlock()
	if !started || conn == nil {
		return errors.New("scribe: соединение не установлено (Start не вызывался)")
	}
	cj := c.cfg.CommitJSON
	if cj == "" {
		cj = `{"type":"commit"}`
	}
	return c.writeText(conn, []byte(cj))
}

// Results возвращает канал с распознанными гипотезами.
func (c *Client) Results() <-chan Result { return c.results }

// Close корректно завершает стрим и закрывает соединение.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return nil
	}
	c.cancel()
	if c.conn != nil {
		// Попросим сервер закрыть
		c.writeMu.Lock()
		_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "eof"))
		c.writeMu.Unlock()
		_ = c.conn.Close()
	}
	c.started = false
	return nil
}
