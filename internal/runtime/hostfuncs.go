package runtime

import "log/slog"

// logObject provides log.Debug/Info/Warn/Error methods for Risor scripts.
type logObject struct {
	logger *slog.Logger
}

func (l *logObject) Debug(msg string) {
	l.logger.Debug(msg, "source", "risor")
}

func (l *logObject) Info(msg string) {
	l.logger.Info(msg, "source", "risor")
}

func (l *logObject) Warn(msg string) {
	l.logger.Warn(msg, "source", "risor")
}

func (l *logObject) Error(msg string) {
	l.logger.Error(msg, "source", "risor")
}
