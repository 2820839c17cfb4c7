// Package notifier delivers formatted offer messages over the configured
// channels.
package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Dispatcher is one delivery channel. Send posts text, optionally with an
// image (channels that support captions attach the text to the image).
type Dispatcher interface {
	Name() string
	Send(ctx context.Context, text, imageURL string) error
}

// Fanout sends the message through every dispatcher. A failing channel is
// logged and skipped; the error return is non-nil only when every channel
// failed, so one broken token never silences the others.
func Fanout(ctx context.Context, dispatchers []Dispatcher, text, imageURL string) ([]string, error) {
	if len(dispatchers) == 0 {
		return nil, fmt.Errorf("no dispatch channels configured")
	}

	var delivered []string
	var failures []string
	for _, d := range dispatchers {
		if err := d.Send(ctx, text, imageURL); err != nil {
			slog.Warn("Dispatch failed", "channel", d.Name(), "error", err)
			failures = append(failures, fmt.Sprintf("%s: %v", d.Name(), err))
			continue
		}
		delivered = append(delivered, d.Name())
	}

	if len(delivered) == 0 {
		return nil, fmt.Errorf("all channels failed: %s", strings.Join(failures, "; "))
	}
	return delivered, nil
}
