package scribe

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseServerMessage(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		want    Result
		ok      bool
	}{
		{
			name:    "partial",
			payload: `{"type":"partial_transcript","text":"hello wor"}`,
			want:    Result{Text: "hello wor", Final: false},
			ok:      true,
		},
		{
			name:    "committed",
			payload: `{"type":"committed_transcript","text":"hello world"}`,
			want:    Result{Text: "hello world", Final: true},
			ok:      true,
		},
		{
			name:    "session started is service event",
			payload: `{"type":"session_started","session_id":"abc"}`,
			ok:      false,
		},
		{
			name:    "fallback transcript final",
			payload: `{"transcript":"готово","final":true}`,
			want:    Result{Text: "готово", Final: true},
			ok:      true,
		},
		{
			name:    "fallback is_final",
			payload: `{"text":"almost","is_final":false}`,
			want:    Result{Text: "almost", Final: false},
			ok:      true,
		},
		{
			name:    "garbage",
			payload: `{"unrelated":42}`,
			ok:      false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := parseServerMessage([]byte(tc.payload))
			require.Equal(t, tc.ok, ok)
			if ok {
				assert.Equal(t, tc.want.Text, got.Text)
				assert.Equal(t, tc.want.Final, got.Final)
			}
		})
	}
}

func TestNewValidation(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err, "без API ключа клиент создаваться не должен")

	c, err := New(Config{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "scribe_v2_realtime", c.cfg.ModelID)
	assert.Equal(t, 16000, c.cfg.SampleRate)
}

// testServer поднимает WebSocket-эхо с заданным сценарием ответов.
func testServer(t *testing.T, handler func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		handler(conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestClientStreamRoundtrip(t *testing.T) {
	gotAudio := make(chan audioChunk, 1)
	gotCommit := make(chan string, 1)

	srv := testServer(t, func(conn *websocket.Conn) {
		// первый фрейм — аудио-чанк
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var ch audioChunk
		require.NoError(t, json.Unmarshal(data, &ch))
		gotAudio <- ch

		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"partial_transcript","text":"раз два"}`))

		// второй фрейм — commit
		_, data, err = conn.ReadMessage()
		if err != nil {
			return
		}
		gotCommit <- string(data)
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"committed_transcript","text":"раз два три"}`))
	})

	c, err := New(Config{
		Endpoint:      wsURL(srv),
		APIKey:        "test-key",
		SampleRate:    16000,
		AllowPartials: true,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Start(ctx))
	defer func() { _ = c.Close() }()

	samples := []int16{0, 1, -1, 32767, -32768}
	require.NoError(t, c.SendPCM16(samples))

	select {
	case ch := <-gotAudio:
		assert.Equal(t, 16000, ch.SampleRate)
		raw, err := base64.StdEncoding.DecodeString(ch.AudioBase64)
		require.NoError(t, err)
		// little-endian PCM16
		require.Len(t, raw, 2*len(samples))
		assert.Equal(t, byte(0x01), raw[2])
		assert.Equal(t, byte(0x00), raw[3])
		assert.Equal(t, byte(0xFF), raw[4])
		assert.Equal(t, byte(0xFF), raw[5])
	case <-ctx.Done():
		t.Fatal("сервер не получил аудио-чанк")
	}

	var part Result
	select {
	case part = <-c.Results():
	case <-ctx.Done():
		t.Fatal("не дождались частичного результата")
	}
	assert.Equal(t, "раз два", part.Text)
	assert.False(t, part.Final)

	require.NoError(t, c.Commit())
	select {
	case frame := <-gotCommit:
		assert.JSONEq(t, `{"type":"commit"}`, frame)
	case <-ctx.Done():
		t.Fatal("сервер не получил commit")
	}

	var fin Result
	select {
	case fin = <-c.Results():
	case <-ctx.Done():
		t.Fatal("не дождались финального результата")
	}
	assert.Equal(t, "раз два три", fin.Text)
	assert.True(t, fin.Final)
}

func TestClientSkipsPartialsWhenDisabled(t *testing.T) {
	srv := testServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"partial_transcript","text":"skip me"}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"committed_transcript","text":"keep me"}`))
		// подождём, пока клиент дочитает
		time.Sleep(100 * time.Millisecond)
	})

	c, err := New(Config{Endpoint: wsURL(srv), APIKey: "test-key", AllowPartials: false})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Start(ctx))
	defer func() { _ = c.Close() }()

	select {
	case r := <-c.Results():
		assert.True(t, r.Final)
		assert.Equal(t, "keep me", r.Text)
	case <-ctx.Done():
		t.Fatal("не дождались результата")
	}
}

func TestSendWithoutStart(t *testing.T) {
	c, err := New(Config{APIKey: "k"})
	require.NoError(t, err)
	assert.Error(t, c.SendPCM16([]int16{1}))
	assert.Error(t, c.Commit())
	assert.NoError(t, c.Close())
}
