// Package spinner renders a single-line terminal spinner for long
// operations that would otherwise print nothing.
package spinner

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

var frames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner animates frames next to a message that can change while it runs.
type Spinner struct {
	w io.Writer

	mu       sync.Mutex
	message  string
	maxWidth int

	done     chan struct{}
	cleared  chan struct{}
	stopOnce sync.Once
}

// Start displays an animated spinner with the given message on w.
// Call Stop to halt the spinner and clear the line.
func Start(w io.Writer, message string) *Spinner {
	s := &Spinner{
		w:       w,
		message: message,
		done:    make(chan struct{}),
		cleared: make(chan struct{}),
	}
	go s.loop()
	return s
}

// SetMessage swaps the text shown next to the spinner. The line repaints
// on the next frame.
func (s *Spinner) SetMessage(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// Stop halts the animation and clears the line. Safe to call more than once.
func (s *Spinner) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
	<-s.cleared
}

func (s *Spinner) loop() {
	i := 0
	for {
		select {
		case <-s.done:
			s.mu.Lock()
			width := s.maxWidth
			s.mu.Unlock()
			fmt.Fprintf(s.w, "\r%s\r", strings.Repeat(" ", width+2)) //nolint:errcheck
			close(s.cleared)
			return
		case <-time.After(80 * time.Millisecond):
			s.mu.Lock()
			message := s.message
			if len(message) > s.maxWidth {
				s.maxWidth = len(message)
			}
			// Pad to the widest message seen so a shorter one overwrites
			// the whole line.
			pad := s.maxWidth - len(message)
			s.mu.Unlock()
			fmt.Fprintf(s.w, "\r%s %s%s", frames[i%len(frames)], message, strings.Repeat(" ", pad)) //nolint:errcheck
			i++
		}
	}
}
