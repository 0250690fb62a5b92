package transport

import "fmt"

// ConnectionError is a failure to reach the host or complete the handshake
// for non-auth reasons (unreachable, port closed, timeout). Terminal for the
// task in this run; resume state lets a later run continue the transfer.
type ConnectionError struct {
	Host string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Host, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// TransferError is an I/O failure mid-transfer. Progress persisted so far is
// retained for resumption.
type TransferError struct {
	Host string
	Path string
	Err  error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer %s to %s: %v", e.Path, e.Host, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// ExecutionError means the post-transfer remote command failed: it could not
// be started, the connection dropped mid-run, or it exited non-zero. Captured
// output is carried along.
type ExecutionError struct {
	Host   string
	Stdout string
	Stderr string
	Err    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("remote execution on %s: %v", e.Host, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
