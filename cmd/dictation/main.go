package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"DictationClient/internal/app/dictation"
	"DictationClient/internal/config"
	"DictationClient/internal/service/history"
	"DictationClient/internal/service/hotkey"
	"DictationClient/internal/service/notify"
	"DictationClient/internal/service/typer"

	"go.uber.org/zap"
)

func main() {

	cfg := config.NewConfig()
	// создаём предустановленный регистратор zap
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}

	// делаем регистратор SugaredLogger
	sugar := logger.Sugar()
	//сброс буфера логгера
	defer func() {
		if err := logger.Sync(); err != nil {
			sugar.Errorw("Failed to sync logger", "error", err)
		}
	}()

	sugar.Infow(
		"Starting dictation",
		"Mode", cfg.Mode,
		"Hotkey", cfg.Hotkey,
		"DebugMode", cfg.DebugMode,
	)

	// Контекст и отмена по Ctrl+C
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Вставка текста: системная клавиатура, при недоступности — вывод в лог
	var out typer.Inserter
	out, err = typer.NewKeyboard(cfg.PasteSettle)
	if err != nil {
		sugar.Warnw("Keyboard insertion unavailable, falling back to console output", "error", err)
		out = typer.NewConsole(sugar)
	}

	cues := notify.New(sugar, cfg.StartSoundPath, cfg.StopSoundPath, cfg.Notification)

	// Журнал транскриптов опционален: при ошибке открытия работаем без него
	var hist dictation.History
	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.DBPath)
		if err != nil {
			sugar.Warnw("Failed to open history store, continuing without it", "error", err, "path", cfg.History.DBPath)
		} else {
			defer func() { _ = store.Close() }()
			hist = store
		}
	}

	hk, err := hotkey.New(hotkey.Config{Hotkey: cfg.Hotkey})
	if err != nil {
		sugar.Errorw("Failed to register hotkey", "error", err, "hotkey", cfg.Hotkey)
		return
	}

	engine := dictation.New(cfg, sugar, out, cues, hist)
	if err := engine.Run(ctx, hk); err != nil && ctx.Err() == nil {
		sugar.Errorw("Dictation stopped with error", "error", err)
		return
	}
	sugar.Infow("Dictation stopped")
}
