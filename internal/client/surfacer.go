package client

import (
	"fmt"
	"io"

	"learnhub.io/notifier/internal/domain"
)

// Surfacer shows a freshly pushed notification outside the inbox view, such
// as a desktop banner. Failures are ignored by the session.
type Surfacer interface {
	Surface(n domain.Notification) error
}

// SurfacerFunc adapts a function to Surfacer.
type SurfacerFunc func(n domain.Notification) error

// Surface implements Surfacer.
func (f SurfacerFunc) Surface(n domain.Notification) error { return f(n) }

type nopSurfacer struct{}

func (nopSurfacer) Surface(domain.Notification) error { return nil }

// TerminalSurfacer rings the terminal bell and prints the title.
type TerminalSurfacer struct {
	W io.Writer
}

// Surface implements Surfacer.
func (s TerminalSurfacer) Surface(n domain.Notification) error {
	_, err := fmt.Fprintf(s.W, "\a🔔 %s: %s\n", n.Title, n.Message)
	return err
}
