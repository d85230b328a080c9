// Package logging sets up the process-wide slog handler and carries
// per-task log context (job_id, image_id) the way the source's
// ThreadingLocalContextFilter does, but idiomatically: via context.Context
// rather than thread-local storage, since a goroutine has no analogous
// storage of its own. A context value is immutable once attached, so a
// goroutine spawned with its parent's context automatically inherits the
// parent's logging fields, mirroring "threads started during a task inherit
// their starting context."
package logging

import (
	"context"
	"log/slog"
	"os"
)

type contextKey struct{}

// New builds the process's base logger: a text handler at the requested
// level, matching the teacher's slog setup in main.go.
func New(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

// WithJob returns a context whose logger is the parent's logger with
// job_id/image_id bound as fields. Pass the result's logger to
// FromContext in any goroutine fed this context.
func WithJob(ctx context.Context, base *slog.Logger, jobID, imageID string) context.Context {
	logger := base.With("job_id", jobID, "image_id", imageID)
	return context.WithValue(ctx, contextKey{}, logger)
}

// WithRegion further narrows a job-scoped context down to one region.
func WithRegion(ctx context.Context, regionID string) context.Context {
	logger := FromContext(ctx).With("region_id", regionID)
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the logger bound to ctx, or slog.Default() if none was
// ever attached.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(contextKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}
