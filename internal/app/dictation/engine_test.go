package dictation

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"DictationClient/internal/config"
	"DictationClient/internal/service/stt/scribe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeTranscriber записывает вызовы и отдаёт результаты из канала, которым управляет тест.
type fakeTranscriber struct {
	mu        sync.Mutex
	started   bool
	committed bool
	closed    bool
	sent      [][]int16
	results   chan scribe.Result
	closeOnce sync.Once
	startErr  error
}

func newFakeTranscriber() *fakeTranscriber {
	return &fakeTranscriber{results: make(chan scribe.Result, 16)}
}

func (f *fakeTranscriber) Start(ctx context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.mu.Lock()
	f.started = true
	f.mu.Unlock()
	return nil
}

func (f *fakeTranscriber) SendPCM16(samples []int16) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]int16, len(samples))
	copy(cp, samples)
	f.sent = append(f.sent, cp)
	return nil
}

func (f *fakeTranscriber) Commit() error {
	f.mu.Lock()
	f.committed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeTranscriber) Results() <-chan scribe.Result { return f.results }

func (f *fakeTranscriber) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.closeOnce.Do(func() { close(f.results) })
	return nil
}

func (f *fakeTranscriber) isCommitted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.committed
}

func (f *fakeTranscriber) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeTranscriber) emit(text string, final bool) {
	f.results <- scribe.Result{Text: text, Final: final, Timestamp: time.Now()}
}

// fakeSource отдаёт чанки, которые тест кладёт в feed, и закрывает выход по отмене контекста.
type fakeSource struct {
	feed   chan []int16
	chunks chan []int16
}

func newFakeSource() *fakeSource {
	return &fakeSource{feed: make(chan []int16, 16), chunks: make(chan []int16, 16)}
}

func (f *fakeSource) Run(ctx context.Context) error {
	defer close(f.chunks)
	for {
		select {
		case <-ctx.Done():
			return context.Cause(ctx)
		case c := <-f.feed:
			f.chunks <- c
		}
	}
}

func (f *fakeSource) Chunks() <-chan []int16 { return f.chunks }

// fakeOut регистрирует последовательность операций вставки.
type fakeOut struct {
	mu  sync.Mutex
	ops []string
}

func (f *fakeOut) TypeText(text string) error { f.add("type:" + text); return nil }
func (f *fakeOut) Backspace(n int) error      { f.add("bs:" + strconv.Itoa(n)); return nil }
func (f *fakeOut) Paste(text string) error    { f.add("paste:" + text); return nil }

func (f *fakeOut) add(op string) {
	f.mu.Lock()
	f.ops = append(f.ops, op)
	f.mu.Unlock()
}

func (f *fakeOut) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.ops))
	copy(out, f.ops)
	return out
}

type fakeCues struct {
	mu            sync.Mutex
	starts, stops int
	toasts        []string
}

func (f *fakeCues) PlayStart(ctx context.Context) { f.mu.Lock(); f.starts++; f.mu.Unlock() }
func (f *fakeCues) PlayStop(ctx context.Context)  { f.mu.Lock(); f.stops++; f.mu.Unlock() }
func (f *fakeCues) Toast(title, message string) {
	f.mu.Lock()
	f.toasts = append(f.toasts, message)
	f.mu.Unlock()
}

type fakeHistory struct {
	mu   sync.Mutex
	rows []string
}

func (f *fakeHistory) Append(ctx context.Context, sessionID, mode, text string) error {
	f.mu.Lock()
	f.rows = append(f.rows, text)
	f.mu.Unlock()
	return nil
}

func (f *fakeHistory) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.rows))
	copy(out, f.rows)
	return out
}

func testConfig(mode string) *config.Config {
	cfg := config.Defaults()
	cfg.Mode = mode
	cfg.SenderDrain = 5 * time.Millisecond
	cfg.CommitWait = time.Second
	return cfg
}

func testEngine(t *testing.T, mode string) (*Engine, *fakeOut, *fakeCues, *fakeHistory, []*fakeTranscriber, []*fakeSource) {
	t.Helper()
	out := &fakeOut{}
	cues := &fakeCues{}
	hist := &fakeHistory{}
	trs := []*fakeTranscriber{newFakeTranscriber(), newFakeTranscriber()}
	srcs := []*fakeSource{newFakeSource(), newFakeSource()}

	e := New(testConfig(mode), zap.NewNop().Sugar(), out, cues, hist)
	var trIdx, srcIdx int
	e.newTranscriber = func() (Transcriber, error) {
		tr := trs[trIdx]
		trIdx++
		return tr, nil
	}
	e.newSource = func() (Source, error) {
		src := srcs[srcIdx]
		srcIdx++
		return src, nil
	}
	return e, out, cues, hist, trs, srcs
}

func TestBatchLifecycle(t *testing.T) {
	e, out, cues, hist, trs, srcs := testEngine(t, config.ModeBatch)
	ctx := context.Background()
	tr, src := trs[0], srcs[0]

	e.Toggle(ctx)
	require.True(t, e.Recording())
	assert.Equal(t, 1, cues.starts)

	src.feed <- []int16{1, 2, 3}
	require.Eventually(t, func() bool { return tr.sentCount() == 1 }, time.Second, 5*time.Millisecond)

	e.Toggle(ctx)
	require.False(t, e.Recording())
	assert.Equal(t, 1, cues.stops)

	// commit уходит в фоне после паузы дослания
	require.Eventually(t, tr.isCommitted, time.Second, 5*time.Millisecond)

	tr.emit("привет мир", true)
	require.Eventually(t, func() bool {
		ops := out.snapshot()
		return len(ops) == 1 && ops[0] == "paste:привет мир"
	}, time.Second, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		rows := hist.snapshot()
		return len(rows) == 1 && rows[0] == "привет мир"
	}, time.Second, 5*time.Millisecond)
}

func TestStreamingPartials(t *testing.T) {
	e, out, _, _, trs, _ := testEngine(t, config.ModeStreaming)
	ctx := context.Background()
	tr := trs[0]

	e.Toggle(ctx)
	tr.emit("hello", false)
	tr.emit("hello wor", false)
	tr.emit("help", false) // гипотеза откатилась — стираем и печатаем заново

	// дожидаемся применения гипотез: после остановки промежуточные события отбрасываются
	require.Eventually(t, func() bool { return len(out.snapshot()) == 4 }, time.Second, 5*time.Millisecond)
	e.Toggle(ctx)
	require.Eventually(t, tr.isCommitted, time.Second, 5*time.Millisecond)
	tr.emit("helped", true)

	want := []string{"type:hello", "type: wor", "bs:9", "type:help", "type:ed"}
	require.Eventually(t, func() bool { return len(out.snapshot()) == len(want) }, time.Second, 5*time.Millisecond)
	assert.Equal(t, want, out.snapshot())
}

func TestPartialAfterStopIgnored(t *testing.T) {
	e, out, _, _, trs, _ := testEngine(t, config.ModeStreaming)
	ctx := context.Background()
	tr := trs[0]

	e.Toggle(ctx)
	e.Toggle(ctx)
	tr.emit("запоздавшая гипотеза", false)
	require.Eventually(t, tr.isCommitted, time.Second, 5*time.Millisecond)

	// даём pump время обработать (и отбросить) событие
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, out.snapshot())
}

func TestStaleFinalNotInserted(t *testing.T) {
	e, out, _, hist, trs, _ := testEngine(t, config.ModeBatch)
	ctx := context.Background()

	// первая сессия остановлена, затем сразу начата вторая
	e.Toggle(ctx)
	e.Toggle(ctx)
	e.Toggle(ctx)
	require.True(t, e.Recording())

	// финал первой сессии приходит уже при живой второй — вставки нет
	trs[0].emit("старый текст", true)
	assert.Eventually(t, func() bool {
		rows := hist.snapshot()
		return len(rows) == 1 && rows[0] == "старый текст"
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, out.snapshot())

	// вторая сессия завершается штатно
	e.Toggle(ctx)
	require.Eventually(t, trs[1].isCommitted, time.Second, 5*time.Millisecond)
	trs[1].emit("новый текст", true)
	require.Eventually(t, func() bool {
		ops := out.snapshot()
		return len(ops) == 1 && ops[0] == "paste:новый текст"
	}, time.Second, 5*time.Millisecond)
}

func TestEmptyFinalProducesNothing(t *testing.T) {
	e, out, _, hist, trs, _ := testEngine(t, config.ModeBatch)
	ctx := context.Background()
	tr := trs[0]

	e.Toggle(ctx)
	e.Toggle(ctx)
	require.Eventually(t, tr.isCommitted, time.Second, 5*time.Millisecond)
	tr.emit("   ", true)

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, out.snapshot())
	assert.Empty(t, hist.snapshot())
}

func TestStartFailureLeavesEngineIdle(t *testing.T) {
	e, _, cues, _, trs, _ := testEngine(t, config.ModeBatch)
	trs[0].startErr = context.DeadlineExceeded

	e.Toggle(context.Background())
	assert.False(t, e.Recording())
	assert.Equal(t, 0, cues.starts)
	assert.NotEmpty(t, cues.toasts)

	// после неудачи можно стартовать снова (вторая фабрика)
	e.Toggle(context.Background())
	assert.True(t, e.Recording())
}
