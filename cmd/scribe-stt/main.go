// Консольный клиент Scribe STT: стримит WAV-файл или микрофон и печатает результаты.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"DictationClient/internal/service/audio"
	"DictationClient/internal/service/stt/scribe"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func main() {
	var (
		wavPath    string
		endpoint   string
		modelID    string
		lang       string
		chunkMS    int
		sampleRate int
		startJSON  string
		commitJSON string
		printParts bool
		useMic     bool
	)

	flag.StringVar(&wavPath, "wav", "", "путь к WAV файлу (16kHz mono PCM16) для псевдореалтайм-стрима")
	flag.StringVar(&endpoint, "endpoint", "wss://api.elevenlabs.io/v1/speech-to-text/realtime", "WebSocket endpoint ElevenLabs Scribe")
	flag.StringVar(&modelID, "model", "scribe_v2_realtime", "идентификатор модели распознавания")
	flag.StringVar(&lang, "lang", "", "язык распознавания (пусто — автоопределение)")
	flag.IntVar(&chunkMS, "chunk-ms", 250, "длительность чанка в миллисекундах")
	flag.IntVar(&sampleRate, "sample-rate", 16000, "частота дискретизации (Гц)")
	flag.StringVar(&startJSON, "start-json", "", "опциональный стартовый JSON, отправляемый текстовым фреймом после подключения")
	flag.StringVar(&commitJSON, "commit-json", "", "опциональный JSON коммита вместо стандартного {\"type\":\"commit\"}")
	flag.BoolVar(&printParts, "print-partials", false, "печатать промежуточные гипотезы")
	flag.BoolVar(&useMic, "mic", false, "захватывать звук с микрофона через PortAudio; если задан, -wav игнорируется")
	flag.Parse()

	apiKey := strings.TrimSpace(os.Getenv("ELEVENLABS_API_KEY"))
	if apiKey == "" {
		log.Fatal("ELEVENLABS_API_KEY не задан в окружении")
	}

	client, err := scribe.New(scribe.Config{
		Endpoint:      endpoint,
		APIKey:        apiKey,
		ModelID:       modelID,
		Language:      lang,
		SampleRate:    sampleRate,
		StartJSON:     startJSON,
		CommitJSON:    commitJSON,
		AllowPartials: printParts,
	})
	if err != nil {
		log.Fatalf("init stt client: %v", err)
	}

	// Контекст и отмена по Ctrl+C
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := client.Start(ctx); err != nil {
		log.Fatalf("start stt stream: %v", err)
	}
	defer func() { _ = client.Close() }()

	// Чтение результатов в отдельной горутине
	done := make(chan struct{})
	go func() {
		defer close(done)
		for r := range client.Results() {
			if r.Final {
				fmt.Printf("[FINAL] %s\n", r.Text)
			} else if printParts {
				fmt.Printf("[PART] %s\r", r.Text)
			}
		}
	}()

	// Источник аудио: микрофон или WAV-файл в псевдореалтайме.
	if useMic {
		if err := streamMic(ctx, client, sampleRate, chunkMS); err != nil && ctx.Err() == nil {
			log.Fatalf("stream mic: %v", err)
		}
	} else {
		if wavPath == "" {
			log.Println("не указан -wav и не задан -mic: укажите один из источников аудио")
			return
		}
		if err := streamWAV(ctx, client, wavPath, sampleRate, chunkMS); err != nil {
			log.Fatalf("stream wav: %v", err)
		}
	}

	// Коммитим поток и дожидаемся финального результата
	if err := client.Commit(); err != nil {
		log.Printf("commit: %v", err)
	}
	time.Sleep(2 * time.Second)
	_ = client.Close()
	<-done
}

func streamWAV(ctx context.Context, client *scribe.Client, path string, expectedSR, chunkMS int) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return errors.New("wav: неверный или неподдерживаемый файл")
	}
	// Считаем всю дорожку в память (для простоты), затем будем отдавать чанками времени.
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return fmt.Errorf("wav decode: %w", err)
	}
	if buf == nil || buf.Format == nil {
		return errors.New("wav: пустой буфер или отсутствует формат")
	}
	if buf.Format.NumChannels != 1 {
		return fmt.Errorf("wav: требуется mono, получено %d канал(ов)", buf.Format.NumChannels)
	}
	if buf.Format.SampleRate != expectedSR {
		return fmt.Errorf("wav: требуется %d Hz, получено %d Hz", expectedSR, buf.Format.SampleRate)
	}
	if buf.SourceBitDepth != 16 {
		return fmt.Errorf("wav: требуется 16-bit PCM, получено %d-bit", buf.SourceBitDepth)
	}

	raw := toInt16(buf)

	if chunkMS <= 0 {
		chunkMS = 250
	}
	samplesPerChunk := expectedSR * chunkMS / 1000
	if samplesPerChunk <= 0 {
		samplesPerChunk = 4000 // ~250мс при 16кГц
	}

	ticker := time.NewTicker(time.Duration(chunkMS) * time.Millisecond)
	defer ticker.Stop()

	for i := 0; i < len(raw); i += samplesPerChunk {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		end := i + samplesPerChunk
		if end > len(raw) {
			end = len(raw)
		}
		if end > i {
			if err := client.SendPCM16(raw[i:end]); err != nil {
				return err
			}
		}
		// Псевдореалтайм: ждём длительность чанка
		<-ticker.C
	}
	return nil
}

// toInt16 переводит данные IntBuffer (16-bit PCM в []int) в []int16 с насыщением.
func toInt16(buf *goaudio.IntBuffer) []int16 {
	dst := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		dst[i] = int16(v)
	}
	return dst
}

// streamMic читает чанки микрофона и отправляет их в STT до отмены контекста.
func streamMic(ctx context.Context, client *scribe.Client, sampleRate, chunkMS int) error {
	mic := audio.NewCapture(sampleRate, chunkMS)
	errCh := make(chan error, 1)
	go func() { errCh <- mic.Run(ctx) }()

	for chunk := range mic.Chunks() {
		if err := client.SendPCM16(chunk); err != nil {
			return err
		}
	}
	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
