package voice

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lordslab/lordslab/internal/audio"
)

func newVoiceTestServer(t *testing.T, handler func(conn *websocket.Conn)) (endpoint string, closeServer func()) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		handler(conn)
	}))
	return "ws" + strings.TrimPrefix(srv.URL, "http"), srv.Close
}

// readSetup consumes and decodes the client setup message.
func readSetup(conn *websocket.Conn) (map[string]any, error) {
	var msg map[string]any
	if err := conn.ReadJSON(&msg); err != nil {
		return nil, err
	}
	setup, _ := msg["setup"].(map[string]any)
	if setup == nil {
		return nil, errors.New("first message is not setup")
	}
	return setup, nil
}

func ackSetup(conn *websocket.Conn) error {
	return conn.WriteJSON(map[string]any{"setupComplete": map[string]any{}})
}

func closeNormal(conn *websocket.Conn) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(2*time.Second))
	_ = conn.Close()
}

func TestStart_MissingCredential(t *testing.T) {
	t.Parallel()

	terminated := make(chan string, 1)
	s := NewSession(Config{
		Model:       "models/test",
		OnTerminate: func(msg string) { terminated <- msg },
	})

	err := s.Start(context.Background())
	if !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("Start error = %v, want ErrMissingCredential", err)
	}
	if s.State() != StateTerminated {
		t.Fatalf("state = %s, want terminated", s.State())
	}
	select {
	case msg := <-terminated:
		if msg == "" {
			t.Fatalf("termination message is empty")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("OnTerminate never fired")
	}
}

func TestSession_StreamsAudioAndTranscripts(t *testing.T) {
	t.Parallel()

	wantPCM := []byte{1, 0, 2, 0, 3, 0, 4, 0}
	endpoint, closeServer := newVoiceTestServer(t, func(conn *websocket.Conn) {
		defer closeNormal(conn)
		setup, err := readSetup(conn)
		if err != nil {
			t.Errorf("readSetup: %v", err)
			return
		}
		if setup["model"] != "models/test-live" {
			t.Errorf("setup model = %v", setup["model"])
		}
		if err := ackSetup(conn); err != nil {
			return
		}
		_ = conn.WriteJSON(map[string]any{
			"serverContent": map[string]any{
				"inputTranscription":  map[string]any{"text": "how did I do today"},
				"outputTranscription": map[string]any{"text": "you led with real effort"},
				"modelTurn": map[string]any{
					"parts": []any{map[string]any{
						"inlineData": map[string]any{
							"mimeType": "audio/pcm;rate=24000",
							"data":     base64.StdEncoding.EncodeToString(wantPCM),
						},
					}},
				},
				"turnComplete": true,
			},
		})
	})
	defer closeServer()

	s := NewSession(Config{
		APIKey:       "test-key",
		Model:        "models/test-live",
		SystemPrompt: "You are a leadership coach.",
		Endpoint:     endpoint,
	})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Close()

	var (
		gotOpen, gotTurn bool
		gotAudio         []byte
		gotSpeakers      []Speaker
	)
	for event := range s.Events() {
		switch e := event.(type) {
		case OpenEvent:
			gotOpen = true
		case AudioEvent:
			gotAudio = e.PCM
		case TranscriptEvent:
			gotSpeakers = append(gotSpeakers, e.Entry.Speaker)
		case TurnCompleteEvent:
			gotTurn = true
		}
	}

	if err := s.Err(); err != nil {
		t.Fatalf("session err = %v", err)
	}
	if !gotOpen || !gotTurn {
		t.Fatalf("open=%v turnComplete=%v, want both", gotOpen, gotTurn)
	}
	if string(gotAudio) != string(wantPCM) {
		t.Fatalf("audio = %v, want %v", gotAudio, wantPCM)
	}
	if len(gotSpeakers) != 2 || gotSpeakers[0] != SpeakerUser || gotSpeakers[1] != SpeakerCoach {
		t.Fatalf("transcript speakers = %v", gotSpeakers)
	}
	if got := len(s.TranscriptEntries()); got != 2 {
		t.Fatalf("transcript window holds %d entries, want 2", got)
	}
}

func TestSession_SendFrameReachesServer(t *testing.T) {
	t.Parallel()

	received := make(chan []byte, 1)
	endpoint, closeServer := newVoiceTestServer(t, func(conn *websocket.Conn) {
		defer closeNormal(conn)
		if _, err := readSetup(conn); err != nil {
			return
		}
		if err := ackSetup(conn); err != nil {
			return
		}
		var msg struct {
			RealtimeInput *struct {
				MediaChunks []struct {
					MIMEType string `json:"mimeType"`
					Data     string `json:"data"`
				} `json:"mediaChunks"`
			} `json:"realtimeInput"`
		}
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if err := json.Unmarshal(payload, &msg); err != nil || msg.RealtimeInput == nil {
			t.Errorf("unexpected frame payload: %s", payload)
			return
		}
		chunk := msg.RealtimeInput.MediaChunks[0]
		if chunk.MIMEType != audio.CaptureMIME {
			t.Errorf("mime = %q, want %q", chunk.MIMEType, audio.CaptureMIME)
		}
		pcm, _ := base64.StdEncoding.DecodeString(chunk.Data)
		received <- pcm
	})
	defer closeServer()

	s := NewSession(Config{APIKey: "test-key", Model: "models/test-live", Endpoint: endpoint})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Close()

	samples := []float32{0, 0.5, -0.5, 1.0}
	if err := s.SendFrame(samples); err != nil {
		t.Fatalf("SendFrame: %v", err)
	}

	select {
	case pcm := <-received:
		want := audio.EncodeFrame(samples)
		if string(pcm) != string(want) {
			t.Fatalf("server received %v, want %v", pcm, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("frame never reached server")
	}
}

func TestDroppedFrames_CountsQueueEvictions(t *testing.T) {
	t.Parallel()

	s := NewSession(Config{QueueDepth: 1})
	s.queue.Push([]byte{1})
	s.queue.Push([]byte{2})
	s.queue.Push([]byte{3})
	if got := s.DroppedFrames(); got != 2 {
		t.Fatalf("DroppedFrames = %d, want 2", got)
	}
}

func TestSendFrame_BeforeStart(t *testing.T) {
	t.Parallel()

	s := NewSession(Config{APIKey: "k", Model: "m"})
	if err := s.SendFrame([]float32{0}); err == nil {
		t.Fatalf("SendFrame on idle session should fail")
	}
}

func TestClose_IdempotentAndSafeBeforeStart(t *testing.T) {
	t.Parallel()

	terminated := make(chan string, 1)
	s := NewSession(Config{OnTerminate: func(msg string) { terminated <- msg }})
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if s.State() != StateTerminated {
		t.Fatalf("state = %s, want terminated", s.State())
	}
	if msg := <-terminated; msg != "" {
		t.Fatalf("clean close message = %q, want empty", msg)
	}
}

func TestSession_TransportErrorTerminates(t *testing.T) {
	t.Parallel()

	endpoint, closeServer := newVoiceTestServer(t, func(conn *websocket.Conn) {
		if _, err := readSetup(conn); err != nil {
			return
		}
		if err := ackSetup(conn); err != nil {
			return
		}
		// Drop the connection without a close frame.
		_ = conn.Close()
	})
	defer closeServer()

	terminated := make(chan string, 1)
	s := NewSession(Config{
		APIKey:      "test-key",
		Model:       "models/test-live",
		Endpoint:    endpoint,
		OnTerminate: func(msg string) { terminated <- msg },
	})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case msg := <-terminated:
		if msg == "" {
			t.Fatalf("transport failure produced no termination message")
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("session never terminated")
	}
	if err := s.Err(); err == nil {
		t.Fatalf("Err() = nil after transport failure")
	}
	if s.State() != StateTerminated {
		t.Fatalf("state = %s, want terminated", s.State())
	}
}

func TestSession_RejectedSetup(t *testing.T) {
	t.Parallel()

	endpoint, closeServer := newVoiceTestServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		if _, err := readSetup(conn); err != nil {
			return
		}
		_ = conn.WriteJSON(map[string]any{"serverContent": map[string]any{}})
	})
	defer closeServer()

	s := NewSession(Config{APIKey: "test-key", Model: "models/test-live", Endpoint: endpoint})
	if err := s.Start(context.Background()); err == nil {
		t.Fatalf("Start should fail when setup is not acknowledged")
	}
	if s.State() != StateTerminated {
		t.Fatalf("state = %s, want terminated", s.State())
	}
}
