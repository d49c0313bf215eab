package insight

import (
	"fmt"

	"github.com/lordslab/lordslab/internal/metrics"
)

// Prompt builds the natural-language generation prompt embedding the
// athlete's current self-reported ratings.
func Prompt(m metrics.Metrics) string {
	return fmt.Sprintf(
		"You are a leadership coach for youth athletes. An athlete just rated "+
			"their training session: effort %.1f out of 5, attitude %.1f out of 5. "+
			"Reply with a single short, encouraging leadership insight (one or two "+
			"sentences, no preamble) tailored to those ratings.",
		m.Effort, m.Attitude,
	)
}
