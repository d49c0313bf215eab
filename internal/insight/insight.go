// Package insight produces the short AI-generated leadership message shown
// after an athlete submits their session metrics. Generation is best effort:
// any failure falls back to a canned message and is never surfaced as an
// error, so the UI can never block or crash on it.
package insight

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/lordslab/lordslab/internal/metrics"
)

// generator is the narrow text-generation surface. Implemented by the
// Gemini-backed client and by test fakes.
type generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Fallbacks are returned when generation fails for any reason.
var Fallbacks = []string{
	"Great leaders show up even on hard days. Today counted.",
	"Consistency beats intensity. Log it, learn from it, lead with it.",
	"Your effort sets the tone for the whole team. Keep stacking days.",
	"Attitude is a choice you made well today. Make it again tomorrow.",
}

const requestTimeout = 12 * time.Second

// Requester turns session metrics into a leadership insight.
type Requester struct {
	gen  generator
	pick func(n int) int
}

// NewRequester creates a Requester over gen. A nil gen (no credential
// configured) always falls back.
func NewRequester(gen generator) *Requester {
	return &Requester{gen: gen, pick: rand.IntN}
}

// Request returns insight text for the given metrics. It never returns an
// empty string and never fails; on any error a fallback is returned.
func (r *Requester) Request(ctx context.Context, m metrics.Metrics) string {
	if r.gen == nil {
		return r.fallback()
	}
	if err := m.Validate(); err != nil {
		slog.Warn("insight requested with invalid metrics", "error", err)
		return r.fallback()
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	text, err := r.gen.Generate(ctx, Prompt(m))
	if err != nil {
		slog.Warn("insight generation failed, using fallback", "error", err)
		return r.fallback()
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return r.fallback()
	}
	return text
}

func (r *Requester) fallback() string {
	return Fallbacks[r.pick(len(Fallbacks))]
}
