package concurrency

import (
	"github.com/fluxorio/exchanger/pkg/core"
)

// Logger is the subset of core.Logger the pool writes to
type Logger interface {
	Errorf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

var _ Logger = core.Logger(nil)

func defaultLogger(name string) Logger {
	return core.NewDefaultLogger().WithFields(map[string]interface{}{"pool": name})
}
