package glowroot

import (
	"github.com/pkg/errors"

	"github.com/varsh009/glowroot/internal/log"
)

var errInvalidLogLevel = errors.New("invalid log level")

// SetLogLevel changes the logging level of the engine's internal
// logger. Valid levels: DEBUG, INFO, WARN, ERROR.
func SetLogLevel(level string) error {
	l, ok := log.ParseLevel(level)
	if !ok {
		return errInvalidLogLevel
	}
	log.SetLevel(l)
	return nil
}

// GetLogLevel returns the current logging level.
func GetLogLevel() string {
	return log.LevelStr[log.GetLevel()]
}
