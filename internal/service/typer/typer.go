package typer

import (
	"time"

	"go.uber.org/zap"
)

// Inserter вставляет текст в окно с фокусом.
type Inserter interface {
	// TypeText печатает текст посимвольно (эмуляция клавиатуры).
	TypeText(text string) error
	// Backspace стирает n символов перед курсором.
	Backspace(n int) error
	// Paste вставляет текст через буфер обмена (Ctrl+V), с восстановлением
	// прежнего содержимого буфера.
	Paste(text string) error
}

// NewKeyboard создаёт платформенный Inserter (Windows). На других платформах
// возвращает ошибку — вызывающий может откатиться на NewConsole.
func NewKeyboard(pasteSettle time.Duration) (Inserter, error) {
	if pasteSettle <= 0 {
		pasteSettle = 50 * time.Millisecond
	}
	return newKeyboard(pasteSettle)
}

// Console выводит текст в лог вместо эмуляции клавиатуры.
// Удобен для дебага и как фолбэк на платформах без поддержки вставки.
type Console struct {
	logger *zap.SugaredLogger
}

func NewConsole(logger *zap.SugaredLogger) *Console { return &Console{logger: logger} }

func (c *Console) TypeText(text string) error {
	c.logger.Infow("type", "text", text)
	return nil
}

func (c *Console) Backspace(n int) error {
	c.logger.Infow("backspace", "count", n)
	return nil
}

func (c *Console) Paste(text string) error {
	c.logger.Infow("paste", "text", text)
	return nil
}
