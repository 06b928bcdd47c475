package kvstore

import "go.uber.org/zap"

// badgerLogger adapts a zap.SugaredLogger to badger's Logger interface
// (Errorf/Warningf/Infof/Debugf), matching the teacher's pattern of
// injecting a structured logger into lower-level components rather than
// letting them write to stdout directly.
type badgerLogger struct {
	log *zap.SugaredLogger
}

func newBadgerLogger(log *zap.SugaredLogger) *badgerLogger {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &badgerLogger{log: log.Named("badger")}
}

func (l *badgerLogger) Errorf(format string, args ...interface{})   { l.log.Errorf(format, args...) }
func (l *badgerLogger) Warningf(format string, args ...interface{}) { l.log.Warnf(format, args...) }
func (l *badgerLogger) Infof(format string, args ...interface{})    { l.log.Infof(format, args...) }
func (l *badgerLogger) Debugf(format string, args ...interface{})   { l.log.Debugf(format, args...) }
