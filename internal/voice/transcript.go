package voice

import "sync"

// Speaker identifies who produced a transcript fragment.
type Speaker string

const (
	SpeakerUser  Speaker = "user"
	SpeakerCoach Speaker = "coach"
)

// Entry is one transcript fragment. Entries live only for the session.
type Entry struct {
	Speaker Speaker
	Text    string
}

// Transcript keeps a bounded recent window of entries. When the window is
// full the oldest entry is discarded.
type Transcript struct {
	mu      sync.Mutex
	max     int
	entries []Entry
}

// NewTranscript creates a window holding at most max entries.
func NewTranscript(max int) *Transcript {
	if max <= 0 {
		max = 50
	}
	return &Transcript{max: max}
}

// Append adds an entry, evicting the oldest if the window is full.
func (t *Transcript) Append(e Entry) {
	if e.Text == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, e)
	if len(t.entries) > t.max {
		t.entries = t.entries[len(t.entries)-t.max:]
	}
}

// Entries returns a copy of the current window, oldest first.
func (t *Transcript) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}
