package notify

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	soundplayer "DictationClient/internal/service/sound/player"

	"github.com/gen2brain/beeep"
	"go.uber.org/zap"
)

// Notifier инкапсулирует звуковые сигналы записи и системные уведомления.
type Notifier struct {
	logger    *zap.SugaredLogger
	pathStart string
	pathStop  string
	toasts    bool
	ply       soundplayer.Player
}

// New создаёт нотификатор. Если путь(и) пустые, будут использованы дефолты:
// start: sound/start.wav, stop: sound/stop.wav (сначала пытаемся рядом с бинарём).
func New(logger *zap.SugaredLogger, pathStart, pathStop string, toasts bool) *Notifier {
	resolve := func(def string) string {
		// Путь по умолчанию: рядом с бинарём
		if exe, err := os.Executable(); err == nil {
			dir := filepath.Dir(exe)
			cand := filepath.Join(dir, def)
			if _, statErr := os.Stat(cand); statErr == nil {
				return cand
			}
		}
		// fallback: от текущей рабочей директории
		return filepath.FromSlash(def)
	}

	if strings.TrimSpace(pathStart) == "" {
		pathStart = resolve(filepath.Join("sound", "start.wav"))
	}
	if strings.TrimSpace(pathStop) == "" {
		pathStop = resolve(filepath.Join("sound", "stop.wav"))
	}

	return &Notifier{
		logger:    logger,
		pathStart: pathStart,
		pathStop:  pathStop,
		toasts:    toasts,
		ply:       soundplayer.New(),
	}
}

// play проигрывает звуковой сигнал. Ошибки логируются и возвращаются,
// чтобы вызывающий мог принять решение (например, проигнорировать).
func (n *Notifier) play(ctx context.Context, path string) error {
	// Проверяем отмену контекста до начала
	select {
	case <-ctx.Done():
		return context.Cause(ctx)
	default:
	}

	f, err := os.Open(path)
	if err != nil {
		if n.logger != nil {
			n.logger.Warnw("Не удалось открыть звуковой файл сигнала", "path", path, "error", err)
		}
		return err
	}

	var rc io.ReadCloser = f
	defer rc.Close()

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext == "" {
		ext = "wav" // по умолчанию
	}

	if err := n.ply.Play(ext, rc); err != nil {
		if n.logger != nil {
			n.logger.Warnw("Не удалось воспроизвести звуковой сигнал", "path", path, "error", err)
		}
		return err
	}
	return nil
}

// PlayStart проигрывает сигнал начала записи. Не блокирует вызывающего.
func (n *Notifier) PlayStart(ctx context.Context) {
	go func() { _ = n.play(ctx, n.pathStart) }()
}

// PlayStop проигрывает сигнал окончания записи. Не блокирует вызывающего.
func (n *Notifier) PlayStop(ctx context.Context) {
	go func() { _ = n.play(ctx, n.pathStop) }()
}

// Toast показывает системное уведомление (если включено).
func (n *Notifier) Toast(title, message string) {
	if !n.toasts {
		return
	}
	if err := beeep.Notify(title, message, ""); err != nil && n.logger != nil {
		n.logger.Warnw("Не удалось показать уведомление", "error", err)
	}
}
