// Package testlog routes logrus output into testing.T.Log, so that logs
// only show up for failed tests.
package testlog

import (
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
)

type adapter struct {
	t      testing.TB
	prefix string

	mu   sync.Mutex
	done bool
}

func (a *adapter) Write(d []byte) (int, error) {
	n := len(d)
	if n > 0 && d[n-1] == '\n' {
		d = d[:n-1]
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	// goroutines may outlive the test
	if a.done {
		return n, nil
	}
	if a.prefix != "" {
		a.t.Log(a.prefix + ": " + string(d))
		return n, nil
	}
	a.t.Log(string(d))
	return n, nil
}

func New(t testing.TB) *logrus.Logger {
	a := &adapter{t: t}
	t.Cleanup(func() {
		a.mu.Lock()
		a.done = true
		a.mu.Unlock()
	})
	logger := logrus.New()
	logger.Out = a
	logger.Level = logrus.DebugLevel
	return logger
}

func Entry(t testing.TB, prefix string) *logrus.Entry {
	return New(t).WithField("prefix", prefix)
}
