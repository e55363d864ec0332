package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Init configures the global logrus logger. Level names follow logrus
// conventions (debug, info, warn, error); anything unknown falls back to info.
func Init(level string) {
	logrus.SetOutput(os.Stdout)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logrus.SetLevel(parsed)
}
