// Package logging defines the injectable logger interface threaded through
// every GitGov component, grounded on the teacher's server/cursor.Logger
// (LogDebug(msg, keyValuePairs...)) generalized to the full level set the
// teacher's plugin.API exposes (LogDebug/LogInfo/LogWarn/LogError).
package logging

import (
	"github.com/sirupsen/logrus"
)

// Logger is implemented by anything that can record structured,
// key-value-pair log lines. Components depend on this interface, never on
// logrus directly, so callers can supply their own adapter (e.g. a test
// spy, or a host application's existing logger).
type Logger interface {
	LogDebug(msg string, keyValuePairs ...any)
	LogInfo(msg string, keyValuePairs ...any)
	LogWarn(msg string, keyValuePairs ...any)
	LogError(msg string, keyValuePairs ...any)
}

// LogrusLogger is the default Logger, backed by a *logrus.Logger. The pack's
// indirect dependency on logrus (via the teacher) makes it the house
// structured-logging choice absent a host-supplied Logger.
type LogrusLogger struct {
	entry *logrus.Entry
}

// NewLogrus builds a LogrusLogger writing through l, or a freshly
// constructed *logrus.Logger with JSON output when l is nil.
func NewLogrus(l *logrus.Logger) *LogrusLogger {
	if l == nil {
		l = logrus.New()
		l.SetFormatter(&logrus.JSONFormatter{})
	}
	return &LogrusLogger{entry: logrus.NewEntry(l)}
}

func fields(keyValuePairs []any) logrus.Fields {
	f := make(logrus.Fields, len(keyValuePairs)/2)
	for i := 0; i+1 < len(keyValuePairs); i += 2 {
		key, ok := keyValuePairs[i].(string)
		if !ok {
			continue
		}
		f[key] = keyValuePairs[i+1]
	}
	return f
}

func (l *LogrusLogger) LogDebug(msg string, keyValuePairs ...any) {
	l.entry.WithFields(fields(keyValuePairs)).Debug(msg)
}

func (l *LogrusLogger) LogInfo(msg string, keyValuePairs ...any) {
	l.entry.WithFields(fields(keyValuePairs)).Info(msg)
}

func (l *LogrusLogger) LogWarn(msg string, keyValuePairs ...any) {
	l.entry.WithFields(fields(keyValuePairs)).Warn(msg)
}

func (l *LogrusLogger) LogError(msg string, keyValuePairs ...any) {
	l.entry.WithFields(fields(keyValuePairs)).Error(msg)
}

var _ Logger = (*LogrusLogger)(nil)

// Nop discards every log line; useful as a default in tests and in
// components constructed without an explicit Logger.
type Nop struct{}

func (Nop) LogDebug(string, ...any) {}
func (Nop) LogInfo(string, ...any)  {}
func (Nop) LogWarn(string, ...any)  {}
func (Nop) LogError(string, ...any) {}

var _ Logger = Nop{}
