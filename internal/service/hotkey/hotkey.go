package hotkey

import (
	"context"
	"fmt"
	"time"
)

// Event нажатие глобальной горячей клавиши (toggle записи).
type Event struct {
	At time.Time
}

// Service минимальный интерфейс слушателя горячей клавиши.
type Service interface {
	Run(ctx context.Context) error
	Events() <-chan Event
}

// Config параметры слушателя.
type Config struct {
	// Hotkey строка вида "ctrl+shift+d": модификаторы и основная клавиша через '+'
	Hotkey string
}

type service struct {
	cfg Config

	mods uint32
	vk   uint32

	out chan Event
}

// New создаёт сервис с платформенным слушателем (Windows).
func New(cfg Config) (Service, error) {
	mods, vk, err := ParseHotkey(cfg.Hotkey)
	if err != nil {
		return nil, fmt.Errorf("hotkey: %w", err)
	}
	return &service{cfg: cfg, mods: mods, vk: vk, out: make(chan Event, 8)}, nil
}

func (s *service) Events() <-chan Event { return s.out }

// Run запускает платформенный слушатель и ретранслирует нажатия до отмены контекста.
func (s *service) Run(ctx context.Context) error {
	wl, err := newWinListener(s.mods, s.vk)
	if err != nil {
		return err
	}
	defer close(s.out)
	return wl.run(ctx, s.out)
}

// Реализация под Windows в файле windows_listener_windows.go
type winListener interface {
	run(ctx context.Context, out chan<- Event) error
}
