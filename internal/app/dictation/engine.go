package dictation

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"DictationClient/internal/config"
	"DictationClient/internal/service/audio"
	"DictationClient/internal/service/hotkey"
	"DictationClient/internal/service/stt/scribe"
	"DictationClient/internal/service/typer"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Transcriber абстракция realtime STT клиента (реализуется scribe.Client).
type Transcriber interface {
	Start(ctx context.Context) error
	SendPCM16(samples []int16) error
	Commit() error
	Results() <-chan scribe.Result
	Close() error
}

// Source источник аудио-чанков (микрофон). Канал Chunks закрывается по завершении Run.
type Source interface {
	Run(ctx context.Context) error
	Chunks() <-chan []int16
}

// Cues звуковые сигналы и уведомления (реализуется notify.Notifier).
type Cues interface {
	PlayStart(ctx context.Context)
	PlayStop(ctx context.Context)
	Toast(title, message string)
}

// History журнал зафиксированных транскриптов; nil — журнал выключен.
type History interface {
	Append(ctx context.Context, sessionID, mode, text string) error
}

// Engine управляет жизненным циклом сессий диктовки: горячая клавиша
// переключает запись, результаты распознавания вставляются в окно с фокусом.
type Engine struct {
	cfg    *config.Config
	logger *zap.SugaredLogger
	out    typer.Inserter
	cues   Cues
	hist   History

	// фабрики выделены, чтобы тесты могли подменить клиента и микрофон
	newTranscriber func() (Transcriber, error)
	newSource      func() (Source, error)

	mu     sync.Mutex
	gen    atomic.Int64 // Счётчик поколений сессий
	active *session
}

// session состояние одной сессии записи. lastPartial трогает только pump-горутина.
type session struct {
	id     string
	gen    int64
	tr     Transcriber
	src    Source
	cancel context.CancelFunc

	stopped atomic.Bool

	lastPartial string

	finalOnce sync.Once
	finalSeen chan struct{} // закрывается при получении финального транскрипта
	done      chan struct{} // закрывается по выходу pump-горутины
}

// New создаёт движок с реальными фабриками (scribe + portaudio).
func New(cfg *config.Config, logger *zap.SugaredLogger, out typer.Inserter, cues Cues, hist History) *Engine {
	e := &Engine{cfg: cfg, logger: logger, out: out, cues: cues, hist: hist}
	e.newTranscriber = func() (Transcriber, error) {
		return scribe.New(scribe.Config{
			Endpoint:      cfg.Scribe.Endpoint,
			APIKey:        cfg.Scribe.APIKey,
			ModelID:       cfg.Scribe.ModelID,
			Language:      cfg.Scribe.Language,
			SampleRate:    cfg.SampleRate,
			StartJSON:     cfg.Scribe.StartJSON,
			CommitJSON:    cfg.Scribe.CommitJSON,
			AllowPartials: true,
		})
	}
	e.newSource = func() (Source, error) {
		return audio.NewCapture(cfg.SampleRate, cfg.ChunkMillis), nil
	}
	return e
}

// Run подписывается на горячую клавишу и переключает запись до отмены контекста.
func (e *Engine) Run(ctx context.Context, hk hotkey.Service) error {
	hkErr := make(chan error, 1)
	go func() { hkErr <- hk.Run(ctx) }()

	e.logger.Infow("Dictation ready", "mode", e.cfg.Mode, "hotkey", e.cfg.Hotkey)

	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			return context.Cause(ctx)
		case err := <-hkErr:
			e.shutdown()
			return err
		case _, ok := <-hk.Events():
			if !ok {
				e.shutdown()
				return nil
			}
			e.Toggle(ctx)
		}
	}
}

// Toggle запускает запись, если она не идёт, и останавливает — если идёт.
// Перекрывающиеся переключения сериализуются мьютексом.
func (e *Engine) Toggle(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil {
		e.startLocked(ctx)
	} else {
		e.stopLocked(ctx)
	}
}

// Recording сообщает, идёт ли запись сейчас.
func (e *Engine) Recording() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active != nil
}

func (e *Engine) startLocked(ctx context.Context) {
	tr, err := e.newTranscriber()
	if err != nil {
		e.logger.Errorw("Failed to create transcriber", "error", err)
		e.cues.Toast("Dictation", "Ошибка распознавания: "+err.Error())
		return
	}
	if err := tr.Start(ctx); err != nil {
		e.logger.Errorw("Failed to connect to STT", "error", err)
		e.cues.Toast("Dictation", "Нет соединения с сервисом распознавания")
		return
	}
	src, err := e.newSource()
	if err != nil {
		e.logger.Errorw("Failed to open audio source", "error", err)
		e.cues.Toast("Dictation", "Микрофон недоступен")
		_ = tr.Close()
		return
	}

	gen := e.gen.Add(1)
	s := &session{
		id:        uuid.NewString(),
		gen:       gen,
		tr:        tr,
		src:       src,
		finalSeen: make(chan struct{}),
		done:      make(chan struct{}),
	}
	sctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	e.active = s

	e.cues.PlayStart(ctx)
	e.logger.Infow("Recording started", "session", s.id, "gen", s.gen)

	go func() {
		if err := src.Run(sctx); err != nil && context.Cause(sctx) == nil {
			e.logger.Errorw("Audio source stopped with error", "session", s.id, "error", err)
		}
	}()
	go e.pump(s)
}

func (e *Engine) stopLocked(ctx context.Context) {
	s := e.active
	e.active = nil
	s.stopped.Store(true)

	e.cues.PlayStop(ctx)
	e.logger.Infow("Recording stopped, finalizing", "session", s.id)

	// Останавливаем захват; дальнейшая уборка — в фоне, чтобы новая сессия
	// могла начаться немедленно.
	s.cancel()
	go e.cleanup(s)
}

// cleanup досылает хвост аудио, фиксирует транскрипт и закрывает соединение.
func (e *Engine) cleanup(s *session) {
	// Пауза, чтобы pump дослал уже захваченные чанки
	time.Sleep(e.cfg.SenderDrain)

	if err := s.tr.Commit(); err != nil {
		e.logger.Warnw("Commit failed", "session", s.id, "error", err)
	} else {
		// Ждём финальный транскрипт, но не дольше CommitWait
		select {
		case <-s.finalSeen:
		case <-time.After(e.cfg.CommitWait):
			e.logger.Warnw("No final transcript before deadline", "session", s.id, "wait", e.cfg.CommitWait.String())
		}
	}

	_ = s.tr.Close()
	<-s.done
	e.logger.Infow("Session closed", "session", s.id)
}

// pump гоняет аудио в транскрайбер и разбирает его результаты.
func (e *Engine) pump(s *session) {
	defer close(s.done)
	chunks := s.src.Chunks()
	for {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				// источник закрылся (остановка записи) — дочитываем результаты
				chunks = nil
				continue
			}
			if s.stopped.Load() {
				continue
			}
			if err := s.tr.SendPCM16(chunk); err != nil {
				if !s.stopped.Load() {
					e.logger.Warnw("Failed to send audio chunk", "session", s.id, "error", err)
				}
			}
		case res, ok := <-s.tr.Results():
			if !ok {
				return
			}
			e.handleResult(s, res)
		}
	}
}

func (e *Engine) handleResult(s *session, res scribe.Result) {
	text := strings.TrimSpace(res.Text)

	if !res.Final {
		// Частичные гипотезы имеют смысл только пока сессия пишется
		if s.stopped.Load() || text == "" {
			return
		}
		if e.cfg.Mode == config.ModeStreaming {
			e.applyPartial(s, text)
		} else if e.cfg.DebugMode {
			e.logger.Debugw("Partial", "session", s.id, "text", text)
		}
		return
	}

	s.finalOnce.Do(func() { close(s.finalSeen) })
	if text == "" {
		return
	}

	// Финал устаревшей сессии (уже начата новая) не вставляем: печать задним
	// числом испортила бы текст новой сессии. В журнал он всё равно попадает.
	stale := e.gen.Load() != s.gen
	if stale {
		e.logger.Infow("Dropping final from stale session", "session", s.id, "text", text)
	} else {
		switch e.cfg.Mode {
		case config.ModeStreaming:
			// Заменяем показанную частичную гипотезу финальным текстом
			bs, typeText := typer.Reconcile(s.lastPartial, text)
			if err := e.eraseAndType(bs, typeText); err != nil {
				e.logger.Errorw("Failed to type final text", "session", s.id, "error", err)
			}
			s.lastPartial = ""
		default: // batch
			if err := e.out.Paste(text); err != nil {
				e.logger.Errorw("Failed to paste final text", "session", s.id, "error", err)
			}
		}
		e.logger.Infow("Final transcript", "session", s.id, "text", text)
	}

	if e.hist != nil {
		// Контекст сессии к этому моменту уже отменён: финал приходит после
		// остановки записи, поэтому журнал пишем на фоновом контексте.
		if err := e.hist.Append(context.Background(), s.id, e.cfg.Mode, text); err != nil {
			e.logger.Warnw("Failed to append history", "session", s.id, "error", err)
		}
	}
}

// applyPartial печатает разницу между показанным текстом и новой гипотезой.
func (e *Engine) applyPartial(s *session, text string) {
	if text == s.lastPartial {
		return
	}
	bs, typeText := typer.Reconcile(s.lastPartial, text)
	if err := e.eraseAndType(bs, typeText); err != nil {
		e.logger.Errorw("Failed to type partial text", "session", s.id, "error", err)
		return
	}
	s.lastPartial = text
	if e.cfg.DebugMode {
		e.logger.Debugw("Streaming", "session", s.id, "text", text)
	}
}

func (e *Engine) eraseAndType(backspaces int, text string) error {
	if backspaces > 0 {
		if err := e.out.Backspace(backspaces); err != nil {
			return err
		}
	}
	if text != "" {
		return e.out.TypeText(text)
	}
	return nil
}

// shutdown останавливает активную сессию и дожидается её уборки.
func (e *Engine) shutdown() {
	e.mu.Lock()
	s := e.active
	if s != nil {
		e.active = nil
		s.stopped.Store(true)
		s.cancel()
		go e.cleanup(s)
	}
	e.mu.Unlock()
	if s != nil {
		select {
		case <-s.done:
		case <-time.After(e.cfg.CommitWait + time.Second):
		}
	}
}
