package config

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Режимы работы диктовки.
const (
	ModeBatch     = "batch"     // текст вставляется целиком после фиксации
	ModeStreaming = "streaming" // текст печатается по мере поступления частичных гипотез
)

type Config struct {
	DebugMode bool   `env:"DEBUG_MODE"`     // Режим дебага
	Mode      string `env:"DICTATION_MODE"` // Режим диктовки: batch|streaming

	// Горячая клавиша старт/стоп записи, например "ctrl+shift+d"
	Hotkey string `env:"DICTATION_HOTKEY"`

	// Захват аудио
	SampleRate  int `env:"AUDIO_SAMPLE_RATE"` // Частота дискретизации, Гц
	ChunkMillis int `env:"AUDIO_CHUNK_MS"`    // Длительность одного чанка, мс

	// Звуковые сигналы начала/окончания записи (mp3 или wav). Пусто — без звука.
	StartSoundPath string `env:"START_SOUND_PATH"`
	StopSoundPath  string `env:"STOP_SOUND_PATH"`

	// Системные уведомления (toast) об ошибках сессии
	Notification bool `env:"NOTIFICATION_ENABLED"`

	// Задержки завершения сессии
	SenderDrain time.Duration `env:"SENDER_DRAIN"` // Пауза перед commit, чтобы отправитель дослал хвост аудио
	CommitWait  time.Duration `env:"COMMIT_WAIT"`  // Сколько ждать финальный транскрипт после commit

	// Пауза после Ctrl+V перед восстановлением буфера обмена
	PasteSettle time.Duration `env:"PASTE_SETTLE"`

	Scribe  ScribeConfig  // Клиент realtime STT
	History HistoryConfig // Локальная история транскриптов
}

// ScribeConfig настройки клиента realtime-распознавания (ElevenLabs Scribe).
type ScribeConfig struct {
	APIKey   string `env:"ELEVENLABS_API_KEY"` // Ключ берём из .env/ENV
	Endpoint string `env:"SCRIBE_ENDPOINT"`    // WebSocket endpoint
	ModelID  string `env:"SCRIBE_MODEL_ID"`    // Модель, по умолчанию scribe_v2_realtime
	Language string `env:"SCRIBE_LANGUAGE"`    // Код языка; пусто — автоопределение

	// Необязательный стартовый JSON текстовым фреймом после подключения.
	// Позволяет адаптироваться к точному формату протокола без перекомпиляции.
	StartJSON string `env:"SCRIBE_START_JSON"`
	// JSON ручной фиксации транскрипта. Пусто — дефолтный {"type":"commit"}.
	CommitJSON string `env:"SCRIBE_COMMIT_JSON"`
}

// HistoryConfig настройки локального журнала надиктованного текста (sqlite).
type HistoryConfig struct {
	Enabled bool   `env:"HISTORY_ENABLED"` // Главный флаг включения/выключения
	DBPath  string `env:"HISTORY_DB_PATH"` // Путь к файлу базы
}

// Defaults возвращает конфигурацию с предустановленными значениями по умолчанию.
// Эти значения перекрываются .env, переменными окружения и флагами CLI.
func Defaults() *Config {
	return &Config{
		DebugMode: false,
		Mode:      ModeBatch,
		Hotkey:    "ctrl+shift+d",
		// 16 кГц рекомендованы ElevenLabs; 250 мс — размер чанка как в pyaudio-версии
		SampleRate:     16000,
		ChunkMillis:    250,
		StartSoundPath: "sound/start.wav",
		StopSoundPath:  "sound/stop.wav",
		Notification:   true,
		SenderDrain:    200 * time.Millisecond,
		CommitWait:     3 * time.Second,
		PasteSettle:    50 * time.Millisecond,
		Scribe: ScribeConfig{
			APIKey:   "", // ключ берём из .env/ENV, если пусто — будет ошибка при старте сессии
			Endpoint: "wss://api.elevenlabs.io/v1/speech-to-text/realtime",
			ModelID:  "scribe_v2_realtime",
			Language: "",
		},
		History: HistoryConfig{
			Enabled: false,
			DBPath:  "dictation.db",
		},
	}
}

// NewConfig загружает конфигурацию приложения.
func NewConfig() *Config {
	_ = godotenv.Load()

	// Стартуем с дефолтов, затем перекрываем .env/окружением и флагами
	cfg := Defaults()
	_ = env.Parse(cfg)

	flag.BoolVar(&cfg.DebugMode, "debug-mode", cfg.DebugMode, "включить режим дебага для отображения доп. инфы")
	flag.StringVar(&cfg.Mode, "mode", cfg.Mode, "режим диктовки: batch (вставка в конце) | streaming (печать в реальном времени)")
	flag.StringVar(&cfg.Hotkey, "hotkey", cfg.Hotkey, "горячая клавиша старт/стоп, напр. ctrl+shift+d")
	flag.IntVar(&cfg.SampleRate, "sample-rate", cfg.SampleRate, "частота дискретизации микрофона (Гц)")
	flag.IntVar(&cfg.ChunkMillis, "chunk-ms", cfg.ChunkMillis, "длительность аудио-чанка в миллисекундах")
	flag.StringVar(&cfg.StartSoundPath, "start-sound-path", cfg.StartSoundPath, "путь к звуку начала записи (mp3 или wav)")
	flag.StringVar(&cfg.StopSoundPath, "stop-sound-path", cfg.StopSoundPath, "путь к звуку окончания записи (mp3 или wav)")
	flag.BoolVar(&cfg.Notification, "notification", cfg.Notification, "показывать системные уведомления об ошибках сессии")
	flag.DurationVar(&cfg.SenderDrain, "sender-drain", cfg.SenderDrain, "пауза перед commit для дослания хвоста аудио, напр. 200ms")
	flag.DurationVar(&cfg.CommitWait, "commit-wait", cfg.CommitWait, "максимальное ожидание финального транскрипта после commit, напр. 3s")
	flag.DurationVar(&cfg.PasteSettle, "paste-settle", cfg.PasteSettle, "пауза после Ctrl+V перед восстановлением буфера обмена")
	// Scribe
	flag.StringVar(&cfg.Scribe.APIKey, "api-key", cfg.Scribe.APIKey, "API ключ ElevenLabs (перекрывает ENV)")
	flag.StringVar(&cfg.Scribe.Endpoint, "endpoint", cfg.Scribe.Endpoint, "WebSocket endpoint realtime STT")
	flag.StringVar(&cfg.Scribe.ModelID, "model-id", cfg.Scribe.ModelID, "идентификатор модели распознавания")
	flag.StringVar(&cfg.Scribe.Language, "language", cfg.Scribe.Language, "код языка распознавания; пусто — автоопределение")
	flag.StringVar(&cfg.Scribe.StartJSON, "start-json", cfg.Scribe.StartJSON, "опциональный стартовый JSON, отправляемый текстовым фреймом после подключения")
	flag.StringVar(&cfg.Scribe.CommitJSON, "commit-json", cfg.Scribe.CommitJSON, "опциональный JSON ручной фиксации транскрипта")
	// History
	flag.BoolVar(&cfg.History.Enabled, "history-enabled", cfg.History.Enabled, "вести локальную историю транскриптов (sqlite)")
	flag.StringVar(&cfg.History.DBPath, "history-db-path", cfg.History.DBPath, "путь к файлу базы истории")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	return cfg
}

// Validate проверяет значения конфигурации. Ключ API здесь не проверяется:
// он нужен только при старте сессии, а без него должны работать -help и дебаг.
func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Mode)) {
	case ModeBatch, ModeStreaming:
		c.Mode = strings.ToLower(strings.TrimSpace(c.Mode))
	default:
		return fmt.Errorf("config: неизвестный режим %q (допустимо: %s|%s)", c.Mode, ModeBatch, ModeStreaming)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("config: некорректный sample-rate %d (должен быть > 0)", c.SampleRate)
	}
	if c.ChunkMillis <= 0 {
		return fmt.Errorf("config: некорректный chunk-ms %d (должен быть > 0)", c.ChunkMillis)
	}
	if strings.TrimSpace(c.Hotkey) == "" {
		return fmt.Errorf("config: пустая горячая клавиша")
	}
	if c.History.Enabled && strings.TrimSpace(c.History.DBPath) == "" {
		return fmt.Errorf("config: включена история, но не задан history-db-path")
	}
	return nil
}
