package audio

import (
	"context"
	"errors"
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// Capture захватывает звук с микрофона чанками фиксированной длительности.
// Формат: mono, int16, SampleRate Гц. Требует PortAudio (DLL/so в PATH или рядом с бинарём).
type Capture struct {
	sampleRate int
	chunkMS    int
	chunks     chan []int16
}

// NewCapture создаёт захват без открытия устройства.
func NewCapture(sampleRate, chunkMS int) *Capture {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	if chunkMS <= 0 {
		chunkMS = 250
	}
	return &Capture{
		sampleRate: sampleRate,
		chunkMS:    chunkMS,
		chunks:     make(chan []int16, 16),
	}
}

// Chunks возвращает канал с чанками сэмплов. Закрывается по завершении Run.
func (c *Capture) Chunks() <-chan []int16 { return c.chunks }

// Run открывает входной поток и читает чанки до отмены контекста.
// Блокирующий Read сам задаёт темп (реальное время микрофона), отдельный
// тикер не нужен. При отставании потребителя чанк дропается, чтобы не
// блокировать чтение из PortAudio.
func (c *Capture) Run(ctx context.Context) error {
	defer close(c.chunks)

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudio init: %w", err)
	}
	defer func() { _ = portaudio.Terminate() }()

	samplesPerChunk := c.sampleRate * c.chunkMS / 1000
	if samplesPerChunk <= 0 {
		samplesPerChunk = 4000 // ~250мс при 16кГц
	}
	buf := make([]int16, samplesPerChunk)

	// 1 входной канал (mono), 0 выходных, int16 буфер
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(c.sampleRate), len(buf), buf)
	if err != nil {
		return fmt.Errorf("open input stream: %w", err)
	}
	defer func() {
		_ = stream.Stop()
		_ = stream.Close()
	}()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("start stream: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return context.Cause(ctx)
		default:
		}
		if err := stream.Read(); err != nil {
			// Overflow не фатален: часть сэмплов потеряна, продолжаем читать
			if errors.Is(err, portaudio.InputOverflowed) {
				continue
			}
			if ctx.Err() != nil {
				return context.Cause(ctx)
			}
			return fmt.Errorf("read mic: %w", err)
		}
		out := make([]int16, len(buf))
		copy(out, buf)
		select {
		case c.chunks <- out:
		default:
			// потребитель отстаёт — дропаем чанк
		}
	}
}
