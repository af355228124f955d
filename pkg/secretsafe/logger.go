package secretsafe

import "go.uber.org/zap"

// Logger wraps a zap.SugaredLogger and masks every formatted argument and the
// final message before it reaches the underlying core. Workflow execution
// logs request/response bodies and headers that may carry bearer tokens or
// API keys, so every log call in the engine goes through here rather than
// directly through zap.
type Logger struct {
	sugar  *zap.SugaredLogger
	masker *Masker
}

// NewLogger wraps z with the default masker.
func NewLogger(z *zap.Logger) *Logger {
	return &Logger{sugar: z.Sugar(), masker: Default}
}

func (l *Logger) maskArgs(args []interface{}) []interface{} {
	out := make([]interface{}, len(args))
	for i, a := range args {
		if s, ok := a.(string); ok {
			out[i] = l.masker.MaskString(s)
		} else {
			out[i] = a
		}
	}
	return out
}

func (l *Logger) Debugw(msg string, kv ...interface{}) {
	l.sugar.Debugw(l.masker.MaskString(msg), l.maskArgs(kv)...)
}

func (l *Logger) Infow(msg string, kv ...interface{}) {
	l.sugar.Infow(l.masker.MaskString(msg), l.maskArgs(kv)...)
}

func (l *Logger) Warnw(msg string, kv ...interface{}) {
	l.sugar.Warnw(l.masker.MaskString(msg), l.maskArgs(kv)...)
}

func (l *Logger) Errorw(msg string, kv ...interface{}) {
	l.sugar.Errorw(l.masker.MaskString(msg), l.maskArgs(kv)...)
}

// Criticalw logs an unrecoverable condition (a circuit permanently open, a
// workflow aborting with no path to continue). zap has no CRITICAL level
// above error that doesn't also panic or exit the process, so this tags the
// entry with a severity field instead, at Error level.
func (l *Logger) Criticalw(msg string, kv ...interface{}) {
	args := append([]interface{}{"severity", "critical"}, l.maskArgs(kv)...)
	l.sugar.Errorw(l.masker.MaskString(msg), args...)
}

// Sync flushes buffered log entries. Call it before process exit.
func (l *Logger) Sync() error {
	return l.sugar.Sync()
}
