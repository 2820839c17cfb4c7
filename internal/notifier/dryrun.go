package notifier

import (
	"context"
	"log/slog"
)

// DryRun logs the would-be message instead of sending anything. It never
// fails, so dry runs exercise the whole pipeline except delivery.
type DryRun struct{}

func (DryRun) Name() string { return "dry-run" }

func (DryRun) Send(_ context.Context, text, imageURL string) error {
	slog.Info("DRY RUN, message not sent", "image", imageURL)
	for _, line := range splitLines(text) {
		slog.Info("DRY RUN | " + line)
	}
	return nil
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	return append(lines, s[start:])
}
