package voice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/lordslab/lordslab/internal/audio"
)

// State is the session lifecycle phase.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateStreaming
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

const connectTimeout = 15 * time.Second

// ErrMissingCredential is returned by Start when no API key is configured.
var ErrMissingCredential = errors.New("missing Gemini API key; voice lab is disabled")

// Event is a session event delivered on Events().
type Event interface {
	eventType() string
}

// OpenEvent signals the setup handshake completed and streaming began.
type OpenEvent struct {
	SessionID string
}

func (OpenEvent) eventType() string { return "open" }

// AudioEvent carries one inbound PCM16 chunk at 24kHz.
type AudioEvent struct {
	PCM []byte
}

func (AudioEvent) eventType() string { return "audio" }

// TranscriptEvent carries one transcript fragment.
type TranscriptEvent struct {
	Entry Entry
}

func (TranscriptEvent) eventType() string { return "transcript" }

// InterruptedEvent signals the model was cut off; queued playback for the
// current turn should be flushed.
type InterruptedEvent struct{}

func (InterruptedEvent) eventType() string { return "interrupted" }

// TurnCompleteEvent marks the end of a model turn.
type TurnCompleteEvent struct{}

func (TurnCompleteEvent) eventType() string { return "turn_complete" }

// Config configures a Session.
type Config struct {
	APIKey       string
	Model        string
	SystemPrompt string

	// Endpoint overrides DefaultEndpoint (tests point it at a local server).
	Endpoint string
	Dialer   *websocket.Dialer

	// QueueDepth bounds the outbound frame queue (default 32 frames).
	QueueDepth int
	// TranscriptWindow bounds the in-memory transcript (default 50 entries).
	TranscriptWindow int

	// OnTerminate fires exactly once when the session ends, with a
	// human-readable message on abnormal termination and "" on a clean stop.
	// The caller reverts UI state; the session never reconnects on its own.
	OnTerminate func(message string)
}

// Session is one voice-lab conversation. All mutable state lives on the
// session object; create, Start, then Close. A terminated session is not
// reusable.
type Session struct {
	cfg Config
	id  string

	conn       *websocket.Conn
	queue      *frameQueue
	transcript *Transcript

	events chan Event
	done   chan struct{}
	stop   chan struct{}

	state        atomic.Int32
	writeMu      sync.Mutex
	closing      atomic.Bool
	finishMu     sync.Once
	eventsMu     sync.Mutex
	eventsClosed bool

	errMu sync.Mutex
	err   error
}

// NewSession creates an idle session.
func NewSession(cfg Config) *Session {
	return &Session{
		cfg:        cfg,
		id:         uuid.NewString(),
		queue:      newFrameQueue(cfg.QueueDepth),
		transcript: NewTranscript(cfg.TranscriptWindow),
		events:     make(chan Event, 256),
		done:       make(chan struct{}),
		stop:       make(chan struct{}),
	}
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle phase.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Events yields session events. The channel closes when the session ends.
func (s *Session) Events() <-chan Event {
	return s.events
}

// TranscriptEntries returns a copy of the bounded transcript window.
func (s *Session) TranscriptEntries() []Entry {
	return s.transcript.Entries()
}

// DroppedFrames reports outbound frames evicted under backpressure.
func (s *Session) DroppedFrames() int64 {
	return s.queue.Dropped()
}

// Start dials the endpoint, performs the setup handshake, and spawns the
// send and receive loops. It fails fast on a missing credential, a dial
// error, or a handshake error; none of these are retried.
func (s *Session) Start(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateConnecting)) {
		return fmt.Errorf("session is %s, not idle", s.State())
	}
	if strings.TrimSpace(s.cfg.APIKey) == "" {
		s.finish(ErrMissingCredential)
		return ErrMissingCredential
	}

	endpoint := s.cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	dialer := s.cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	dialCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, connectTimeout)
		defer cancel()
	}

	conn, _, err := dialer.DialContext(dialCtx, endpoint+"?key="+s.cfg.APIKey, nil)
	if err != nil {
		err = fmt.Errorf("connecting voice session: %w", err)
		s.finish(err)
		return err
	}
	s.conn = conn

	if err := s.handshake(); err != nil {
		_ = conn.Close()
		s.finish(err)
		return err
	}

	s.state.Store(int32(StateStreaming))
	slog.Info("voice session streaming", "session", s.id, "model", s.cfg.Model)
	s.emit(OpenEvent{SessionID: s.id})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.readLoop() })
	g.Go(func() error { return s.sendLoop(gctx) })
	go func() {
		err := g.Wait()
		if s.closing.Load() {
			err = nil
		}
		s.finish(err)
	}()
	return nil
}

func (s *Session) handshake() error {
	setup := clientSetupMessage{Setup: &setupPayload{
		Model:                    s.cfg.Model,
		GenerationConfig:         &generationConfig{ResponseModalities: []string{"AUDIO"}},
		InputAudioTranscription:  &struct{}{},
		OutputAudioTranscription: &struct{}{},
	}}
	if s.cfg.SystemPrompt != "" {
		setup.Setup.SystemInstruction = &contentPayload{
			Parts: []partPayload{{Text: s.cfg.SystemPrompt}},
		}
	}
	if err := s.writeJSON(setup); err != nil {
		return fmt.Errorf("sending setup: %w", err)
	}

	_ = s.conn.SetReadDeadline(time.Now().Add(connectTimeout))
	defer s.conn.SetReadDeadline(time.Time{})

	_, payload, err := s.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("reading setup ack: %w", err)
	}
	var msg serverMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("decoding setup ack: %w", err)
	}
	if msg.SetupComplete == nil {
		return errors.New("voice session rejected setup")
	}
	return nil
}

// SendFrame encodes captured float samples and enqueues them for transmit.
// Frames enqueued at capacity evict the oldest pending frame.
func (s *Session) SendFrame(samples []float32) error {
	if s.State() != StateStreaming {
		return fmt.Errorf("session is %s, not streaming", s.State())
	}
	s.queue.Push(audio.EncodeFrame(samples))
	return nil
}

// SendText injects a typed user turn into the conversation.
func (s *Session) SendText(text string) error {
	if s.State() != StateStreaming {
		return fmt.Errorf("session is %s, not streaming", s.State())
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	s.transcript.Append(Entry{Speaker: SpeakerUser, Text: text})
	return s.writeJSON(clientContentMessage{ClientContent: &clientContent{
		Turns:        []contentPayload{{Role: "user", Parts: []partPayload{{Text: text}}}},
		TurnComplete: true,
	}})
}

func (s *Session) sendLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stop:
			return nil
		case frame := <-s.queue.Frames():
			msg := clientRealtimeMessage{RealtimeInput: &realtimeInput{
				MediaChunks: []inlineBlob{{
					MIMEType: audio.CaptureMIME,
					Data:     audio.EncodeBase64(frame),
				}},
			}}
			if err := s.writeJSON(msg); err != nil {
				return fmt.Errorf("sending audio frame: %w", err)
			}
		}
	}
}

func (s *Session) readLoop() error {
	defer close(s.stop)
	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("voice session transport: %w", err)
		}
		var msg serverMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			return fmt.Errorf("decoding server message: %w", err)
		}
		if msg.ServerContent != nil {
			s.handleServerContent(msg.ServerContent)
		}
	}
}

func (s *Session) handleServerContent(sc *serverContent) {
	if sc.Interrupted {
		s.emit(InterruptedEvent{})
	}
	if sc.InputTranscription != nil && sc.InputTranscription.Text != "" {
		e := Entry{Speaker: SpeakerUser, Text: sc.InputTranscription.Text}
		s.transcript.Append(e)
		s.emit(TranscriptEvent{Entry: e})
	}
	if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" {
		e := Entry{Speaker: SpeakerCoach, Text: sc.OutputTranscription.Text}
		s.transcript.Append(e)
		s.emit(TranscriptEvent{Entry: e})
	}
	if sc.ModelTurn != nil {
		for _, part := range sc.ModelTurn.Parts {
			if part.InlineData == nil || !strings.HasPrefix(part.InlineData.MIMEType, "audio/pcm") {
				continue
			}
			pcm, err := audio.DecodeBase64PCM(part.InlineData.Data)
			if err != nil {
				slog.Warn("discarding undecodable audio chunk", "session", s.id, "error", err)
				continue
			}
			s.emit(AudioEvent{PCM: pcm})
		}
	}
	if sc.TurnComplete {
		s.emit(TurnCompleteEvent{})
	}
}

func (s *Session) writeJSON(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(v)
}

func (s *Session) emit(e Event) {
	s.eventsMu.Lock()
	defer s.eventsMu.Unlock()
	if s.eventsClosed {
		return
	}
	select {
	case s.events <- e:
	default:
		// Never let a stalled consumer block the read loop.
	}
}

// Close tears the session down: best effort, idempotent, and safe to call
// before Start. Teardown errors are swallowed.
func (s *Session) Close() error {
	s.closing.Store(true)
	if s.conn != nil {
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(2*time.Second))
		s.writeMu.Unlock()
		_ = s.conn.Close()
	} else {
		// Never started; settle the lifecycle directly.
		s.finish(nil)
	}
	<-s.done
	return nil
}

// Err returns the terminal error, if any, once the session has ended.
func (s *Session) Err() error {
	<-s.done
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// finish settles the session exactly once: records the terminal error,
// flips the state, closes channels, and fires the termination callback.
func (s *Session) finish(err error) {
	s.finishMu.Do(func() {
		if err != nil && !errors.Is(err, context.Canceled) {
			s.errMu.Lock()
			s.err = err
			s.errMu.Unlock()
		}
		s.state.Store(int32(StateTerminated))
		s.eventsMu.Lock()
		s.eventsClosed = true
		close(s.events)
		s.eventsMu.Unlock()
		close(s.done)

		message := ""
		s.errMu.Lock()
		if s.err != nil {
			message = s.err.Error()
		}
		s.errMu.Unlock()
		if dropped := s.queue.Dropped(); dropped > 0 {
			slog.Warn("voice session dropped outbound frames", "session", s.id, "dropped", dropped)
		}
		slog.Info("voice session terminated", "session", s.id, "message", message)
		if s.cfg.OnTerminate != nil {
			s.cfg.OnTerminate(message)
		}
	})
}
