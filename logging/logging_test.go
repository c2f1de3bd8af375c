package logging

import (
	"testing"

	"go.viam.com/test"
)

func TestNewTestLoggerIsUsable(t *testing.T) {
	logger := NewTestLogger(t)

	test.That(t, logger, test.ShouldNotBeNil)
	logger.Info("hello")
}

func TestNamedAppendsDottedSuffix(t *testing.T) {
	logger := NewTestLogger(t)

	child := logger.Named("motion")

	test.That(t, child.name, test.ShouldEqual, "test.motion")
}
