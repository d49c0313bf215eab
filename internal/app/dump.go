package app

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lordslab/lordslab/internal/audio"
)

// sessionDump accumulates inbound session audio and writes it out as a
// single WAV file when the session ends.
type sessionDump struct {
	dir string
	now func() time.Time

	mu  sync.Mutex
	pcm []byte
}

func newSessionDump(dir string) *sessionDump {
	return &sessionDump{dir: dir, now: time.Now}
}

func (d *sessionDump) append(pcm []byte) {
	d.mu.Lock()
	d.pcm = append(d.pcm, pcm...)
	d.mu.Unlock()
}

// write saves the collected audio and returns the file path. It returns ""
// when the session produced no audio.
func (d *sessionDump) write() (string, error) {
	d.mu.Lock()
	pcm := d.pcm
	d.pcm = nil
	d.mu.Unlock()
	if len(pcm) == 0 {
		return "", nil
	}

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating dump directory: %w", err)
	}
	name := fmt.Sprintf("lordslab-%s.wav", d.now().Format("20060102-150405"))
	path := filepath.Join(d.dir, name)
	if err := os.WriteFile(path, audio.WAVFromPlaybackPCM(pcm), 0o644); err != nil {
		return "", fmt.Errorf("writing session audio: %w", err)
	}
	return path, nil
}
