// Package nlog wires up structured logging for the compile pipeline: a
// text handler on stderr always, and an additional JSON handler when the
// CLI's --log-json flag is set, fanned out with slog-multi.
package nlog

import (
	"io"
	"log/slog"

	slogmulti "github.com/samber/slog-multi"
)

// New builds the compiler's root logger. When json is true, stderr
// receives both a human-readable text stream and a machine-readable JSON
// stream via slogmulti.Fanout; otherwise just text.
func New(stderr io.Writer, json bool) *slog.Logger {
	text := slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	if !json {
		return slog.New(text)
	}
	jsonH := slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	return slog.New(slogmulti.Fanout(text, jsonH))
}

// Phase logs one compile-pipeline stage's duration, the event shape
// the CLI's stages (parse, codegen, elf-write, and a final total)
// report through.
func Phase(l *slog.Logger, name string, durationMS int64, extra ...any) {
	args := append([]any{"phase", name, "ms", durationMS}, extra...)
	l.Info("compile phase complete", args...)
}
