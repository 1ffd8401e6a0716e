package usecase

import "strings"

// transcriptAccumulator holds committed and interim recognition text.
// It is not safe for concurrent use; RecordingSession guards it.
type transcriptAccumulator struct {
	committed string
	interim   string
}

// apply commits finals and replaces the interim segment wholesale.
func (a *transcriptAccumulator) apply(finals []string, interim string) {
	for _, segment := range finals {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		a.committed += segment + " "
	}
	a.interim = interim
}

func (a *transcriptAccumulator) discardInterim() {
	a.interim = ""
}

// rewrite replaces committed text, e.g. with a speaker-labeled transcript.
func (a *transcriptAccumulator) rewrite(text string) {
	a.committed = strings.TrimSpace(text) + " "
}

func (a *transcriptAccumulator) reset() {
	a.committed = ""
	a.interim = ""
}

// final is the committed text as emitted at stop.
func (a *transcriptAccumulator) final() string {
	return strings.TrimSpace(a.committed)
}

func (a *transcriptAccumulator) live() string {
	return strings.TrimSpace(a.committed + a.interim)
}
