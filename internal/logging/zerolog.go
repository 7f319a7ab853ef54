package logging

import (
	"context"
	"os"

	"github.com/rs/zerolog"
)

// ZerologLogger adapts zerolog to the Logger interface. Used in development
// for human-readable console output.
type ZerologLogger struct {
	l zerolog.Logger
}

func NewZerologLogger(l zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{l: l}
}

// NewConsoleLogger builds a ZerologLogger with console formatting on stderr.
func NewConsoleLogger() *ZerologLogger {
	w := zerolog.ConsoleWriter{Out: os.Stderr}
	return NewZerologLogger(zerolog.New(w).With().Timestamp().Logger())
}

func (z *ZerologLogger) Debug(ctx context.Context, msg string, args ...any) {
	z.l.Debug().Fields(kvFields(args)).Msg(msg)
}

func (z *ZerologLogger) Info(ctx context.Context, msg string, args ...any) {
	z.l.Info().Fields(kvFields(args)).Msg(msg)
}

func (z *ZerologLogger) Warn(ctx context.Context, msg string, args ...any) {
	z.l.Warn().Fields(kvFields(args)).Msg(msg)
}

func (z *ZerologLogger) Error(ctx context.Context, msg string, args ...any) {
	z.l.Error().Fields(kvFields(args)).Msg(msg)
}

func (z *ZerologLogger) With(args ...any) Logger {
	return &ZerologLogger{l: z.l.With().Fields(kvFields(args)).Logger()}
}

// kvFields converts variadic key–value pairs into the map zerolog expects.
// A trailing key without a value is dropped; non-string keys are ignored.
func kvFields(args []any) map[string]any {
	if len(args) == 0 {
		return nil
	}
	fields := make(map[string]any, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		k, ok := args[i].(string)
		if !ok {
			continue
		}
		fields[k] = args[i+1]
	}
	return fields
}
