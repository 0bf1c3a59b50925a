package config

import (
	"github.com/pion/logging"
	"github.com/sirupsen/logrus"
)

type pionFactory struct {
	log   *logrus.Entry
	level logrus.Level
}

// PionLoggerFactory routes the logs of the WebRTC stack into log. Scopes
// show up in the "scope" field; messages above level are dropped.
func PionLoggerFactory(log *logrus.Entry, level logrus.Level) logging.LoggerFactory {
	return &pionFactory{log: log, level: level}
}

func (f *pionFactory) NewLogger(scope string) logging.LeveledLogger {
	return &pionLogger{
		log:   f.log.WithField("scope", scope),
		level: f.level,
	}
}

type pionLogger struct {
	log   *logrus.Entry
	level logrus.Level
}

var _ logging.LeveledLogger = (*pionLogger)(nil)

func (l *pionLogger) enabled(level logrus.Level) bool { return level <= l.level }

// pion traces are logged at debug level
func (l *pionLogger) Trace(msg string) {
	if l.enabled(logrus.DebugLevel) {
		l.log.Debug(msg)
	}
}

func (l *pionLogger) Tracef(format string, args ...interface{}) {
	if l.enabled(logrus.DebugLevel) {
		l.log.Debugf(format, args...)
	}
}

func (l *pionLogger) Debug(msg string) {
	if l.enabled(logrus.DebugLevel) {
		l.log.Debug(msg)
	}
}

func (l *pionLogger) Debugf(format string, args ...interface{}) {
	if l.enabled(logrus.DebugLevel) {
		l.log.Debugf(format, args...)
	}
}

func (l *pionLogger) Info(msg string) {
	if l.enabled(logrus.InfoLevel) {
		l.log.Info(msg)
	}
}

func (l *pionLogger) Infof(format string, args ...interface{}) {
	if l.enabled(logrus.InfoLevel) {
		l.log.Infof(format, args...)
	}
}

func (l *pionLogger) Warn(msg string) {
	if l.enabled(logrus.WarnLevel) {
		l.log.Warn(msg)
	}
}

func (l *pionLogger) Warnf(format string, args ...interface{}) {
	if l.enabled(logrus.WarnLevel) {
		l.log.Warnf(format, args...)
	}
}

func (l *pionLogger) Error(msg string) {
	if l.enabled(logrus.ErrorLevel) {
		l.log.Error(msg)
	}
}

func (l *pionLogger) Errorf(format string, args ...interface{}) {
	if l.enabled(logrus.ErrorLevel) {
		l.log.Errorf(format, args...)
	}
}
