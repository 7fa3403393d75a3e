package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger returns the logger used across drop-it. DROPIT_LOG_LEVEL
// (debug, info, warn, error) overrides the default info level.
func NewLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
	})

	log.SetLevel(logrus.InfoLevel)
	if raw := os.Getenv("DROPIT_LOG_LEVEL"); raw != "" {
		if level, err := logrus.ParseLevel(raw); err == nil {
			log.SetLevel(level)
		}
	}
	return log
}
