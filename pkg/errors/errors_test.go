package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRootCause(t *testing.T) {
	cause := New("connection reset")
	wrapped := WithContext(WithContext(cause, "read stream"), "mirror file")

	assert.Equal(t, cause, RootCause(wrapped))
	assert.Equal(t, cause, RootCause(cause))
	assert.Equal(t, "mirror file: read stream: connection reset", wrapped.Error())
}

func TestFriendlyError(t *testing.T) {
	err := NewFriendlyError("%q doesn't exist", "/some/path")
	assert.Equal(t, `"/some/path" doesn't exist`, err.Error())

	wrapped := WithContext(err, "watch files")
	friendly, ok := RootCause(wrapped).(FriendlyError)
	assert.True(t, ok)
	assert.Equal(t, err, friendly)
}
