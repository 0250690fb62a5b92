// Package transport owns one authenticated SSH connection per target and the
// operations performed over it: resumable file transfer and remote command
// execution. Sessions are never shared across targets and are closed
// deterministically on every exit path.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"example.com/convoy/pkg/credential"
	"example.com/convoy/pkg/logger"
	"golang.org/x/crypto/ssh"
	"golang.org/x/sync/errgroup"
)

// DefaultTimeout bounds dialing and the handshake when no timeout is
// configured.
const DefaultTimeout = 10 * time.Second

// Session is one authenticated connection to one host.
type Session struct {
	client *ssh.Client
	host   string
	addr   string
}

// Open dials the resolved endpoint and tries each credential candidate in
// order until one authenticates. Candidates are never retried. A network
// failure is a ConnectionError; running out of candidates is an
// AuthExhaustedError carrying the methods attempted.
func Open(ctx context.Context, res credential.Resolution, timeout time.Duration) (*Session, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	addr := net.JoinHostPort(res.Host, fmt.Sprintf("%d", res.Port))

	var attempted []string
	for _, cand := range res.Candidates {
		attempted = append(attempted, cand.Label)

		method, err := cand.GetMethod()
		if err != nil {
			logger.Logger.Debug("credential unavailable", "host", res.Host,
				"method", cand.Label, "error", err)
			continue
		}

		cfg := &ssh.ClientConfig{
			User: res.User,
			Auth: []ssh.AuthMethod{method},
			// TODO: integrate known_hosts verification
			HostKeyCallback: ssh.InsecureIgnoreHostKey(),
			Timeout:         timeout,
		}

		client, err := dial(ctx, addr, cfg, timeout)
		if err != nil {
			var connErr *ConnectionError
			if errors.As(err, &connErr) {
				return nil, connErr
			}
			logger.Logger.Debug("authentication failed", "host", res.Host,
				"user", res.User, "method", cand.Label, "error", err)
			continue
		}
		logger.Logger.Info("connected", "host", res.Host, "user", res.User,
			"method", string(cand.Kind))
		return &Session{client: client, host: res.Host, addr: addr}, nil
	}

	return nil, &credential.AuthExhaustedError{Host: res.Host, Methods: attempted}
}

// dial establishes the TCP connection explicitly so the context and timeout
// bound the handshake as well as the connect.
func dial(ctx context.Context, addr string, cfg *ssh.ClientConfig, timeout time.Duration) (*ssh.Client, error) {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &ConnectionError{Host: addr, Err: err}
	}
	// The ssh handshake can hang without a deadline on the raw conn.
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(timeout))
	}
	ncc, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})
	return ssh.NewClient(ncc, chans, reqs), nil
}

// Host returns the resolved host this session is connected to.
func (s *Session) Host() string { return s.host }

// Close releases the underlying connection.
func (s *Session) Close() error {
	return s.client.Close()
}

// ExecResult carries the verbatim outcome of a remote command.
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// ExecuteRemote runs command on the host and blocks until the remote process
// exits. The exit status and captured streams are returned without
// interpretation; a non-zero exit is not an error. ExecutionError is returned
// only when the command could not be started or the connection dropped, with
// whatever partial output was captured.
func (s *Session) ExecuteRemote(ctx context.Context, command string) (ExecResult, error) {
	session, err := s.client.NewSession()
	if err != nil {
		return ExecResult{}, &ExecutionError{Host: s.host, Err: err}
	}
	defer session.Close()

	stdout, err := session.StdoutPipe()
	if err != nil {
		return ExecResult{}, &ExecutionError{Host: s.host, Err: err}
	}
	stderr, err := session.StderrPipe()
	if err != nil {
		return ExecResult{}, &ExecutionError{Host: s.host, Err: err}
	}

	var outBuf, errBuf bytes.Buffer
	var g errgroup.Group
	g.Go(func() error {
		_, err := io.Copy(&outBuf, stdout)
		return err
	})
	g.Go(func() error {
		_, err := io.Copy(&errBuf, stderr)
		return err
	})

	logger.Logger.Debug("executing remote command", "host", s.host, "command", command)
	if err := session.Start(command); err != nil {
		return ExecResult{}, &ExecutionError{Host: s.host, Err: err}
	}

	done := make(chan error, 1)
	go func() {
		done <- session.Wait()
	}()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		_ = g.Wait()
		return ExecResult{Stdout: outBuf.String(), Stderr: errBuf.String()},
			&ExecutionError{Host: s.host, Stdout: outBuf.String(), Stderr: errBuf.String(), Err: ctx.Err()}
	case waitErr := <-done:
		_ = g.Wait()
		result := ExecResult{Stdout: outBuf.String(), Stderr: errBuf.String()}
		if waitErr == nil {
			return result, nil
		}
		if exitErr, ok := waitErr.(*ssh.ExitError); ok {
			result.ExitCode = exitErr.ExitStatus()
			return result, nil
		}
		// Connection dropped or the remote never reported an exit status.
		return result, &ExecutionError{Host: s.host, Stdout: result.Stdout,
			Stderr: result.Stderr, Err: waitErr}
	}
}
