package transport

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorWrapping(t *testing.T) {
	cause := errors.New("connection refused")

	connErr := &ConnectionError{Host: "10.0.0.5", Err: cause}
	assert.ErrorIs(t, connErr, cause)
	assert.Contains(t, connErr.Error(), "10.0.0.5")

	wrapped := fmt.Errorf("deploy: %w", connErr)
	var target *ConnectionError
	assert.True(t, errors.As(wrapped, &target))
	assert.Equal(t, "10.0.0.5", target.Host)

	xferErr := &TransferError{Host: "h", Path: "/tmp/images.tar.gz", Err: cause}
	assert.ErrorIs(t, xferErr, cause)
	assert.Contains(t, xferErr.Error(), "/tmp/images.tar.gz")

	execErr := &ExecutionError{Host: "h", Stderr: "no space left", Err: cause}
	assert.ErrorIs(t, execErr, cause)
}
