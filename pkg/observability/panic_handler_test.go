package observability

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func capturedLogger() (*logrus.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	return logger, &buf
}

func TestRecoverPanic(t *testing.T) {
	logger, buf := capturedLogger()

	func() {
		defer RecoverPanic(logger, "test loop")
		panic("boom")
	}()

	out := buf.String()
	assert.Contains(t, out, "Recovered from panic")
	assert.Contains(t, out, "boom")
	assert.Contains(t, out, "test loop")
}

func TestRecoverPanic_NoPanic(t *testing.T) {
	logger, buf := capturedLogger()

	func() {
		defer RecoverPanic(logger, "test loop")
	}()

	assert.Empty(t, buf.String())
}

func TestRecoverPanicWithCallback(t *testing.T) {
	logger, buf := capturedLogger()

	called := false
	func() {
		defer RecoverPanicWithCallback(logger, "worker", func() { called = true })
		panic("kaboom")
	}()

	assert.True(t, called, "callback must run after a recovered panic")
	assert.Contains(t, buf.String(), "kaboom")
}

func TestRecoverPanicWithCallback_NoPanic(t *testing.T) {
	logger, buf := capturedLogger()

	called := false
	func() {
		defer RecoverPanicWithCallback(logger, "worker", func() { called = true })
	}()

	assert.False(t, called, "callback must not run without a panic")
	assert.Empty(t, buf.String())
}

func TestRecoverPanicWithCallback_NilCallback(t *testing.T) {
	logger, buf := capturedLogger()

	assert.NotPanics(t, func() {
		func() {
			defer RecoverPanicWithCallback(logger, "worker", nil)
			panic("boom")
		}()
	})
	assert.Contains(t, buf.String(), "boom")
}
