package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"example.com/convoy/pkg/credential"
	"example.com/convoy/pkg/logger"
	"example.com/convoy/pkg/models"
	"example.com/convoy/pkg/resume"
	"example.com/convoy/pkg/transport"
)

// Pipeline is the full per-target flow: resolve credentials, open a session,
// transfer with resume, run the post-transfer action, close.
type Pipeline struct {
	Resolver     *credential.Resolver
	Resume       *resume.Store
	Timeout      time.Duration
	ShowProgress bool
	// GlobalPost is the run-wide post-transfer action; per-target actions
	// override it field by field.
	GlobalPost *models.PostAction
}

// Deploy executes one task to a terminal outcome. Every error is captured in
// the outcome; the session is released on every exit path.
func (p *Pipeline) Deploy(ctx context.Context, task Task) (out models.TransferOutcome) {
	start := time.Now()
	out.Target = task.Target
	defer func() {
		out.Duration = time.Since(start)
		out.Success = out.Err == nil
	}()

	res := p.Resolver.Resolve(task.Target)
	logger.Logger.Debug("resolved credentials", "host", task.Target.Host,
		"user", res.User, "methods", res.Methods())

	sess, err := transport.Open(ctx, res, p.Timeout)
	if err != nil {
		out.Err = err
		return out
	}
	defer sess.Close()

	sent, err := sess.TransferFile(ctx, transport.Transfer{
		LocalPath:    task.LocalPath,
		RemotePath:   task.RemotePath,
		RemoteHost:   task.Target.Host,
		Store:        p.Resume,
		ShowProgress: p.ShowProgress,
	})
	out.BytesSent = sent
	if err != nil {
		out.Err = err
		return out
	}

	post := mergePost(p.GlobalPost, task.Target.Post)
	if post != nil && post.Command != "" {
		command := postCommand(post, task.RemotePath)
		result, err := sess.ExecuteRemote(ctx, command)
		if err != nil {
			out.Err = err
			return out
		}
		if result.ExitCode != 0 {
			out.Err = postExitError(task.Target.Host, result)
			return out
		}
		logger.Logger.Info("post-transfer action completed", "host", task.Target.Host)
	}

	return out
}

// postExitError turns a non-zero post-command exit into an ExecutionError so
// callers can tell a failed action apart from transfer or connection failures.
func postExitError(host string, result transport.ExecResult) error {
	return &transport.ExecutionError{
		Host:   host,
		Stdout: result.Stdout,
		Stderr: result.Stderr,
		Err:    fmt.Errorf("post command exited %d: %s", result.ExitCode, strings.TrimSpace(result.Stderr)),
	}
}

// mergePost overlays the per-target action on the global one, field by field.
func mergePost(global, perTarget *models.PostAction) *models.PostAction {
	if global == nil && perTarget == nil {
		return nil
	}
	merged := models.PostAction{}
	if global != nil {
		merged = *global
	}
	if perTarget != nil {
		if perTarget.Command != "" {
			merged.Command = perTarget.Command
		}
		if perTarget.UseSudo {
			merged.UseSudo = true
		}
		if perTarget.SudoPassword != "" {
			merged.SudoPassword = perTarget.SudoPassword
		}
	}
	return &merged
}

// postCommand substitutes the {tar_path} placeholder and applies the sudo
// wrap when requested.
func postCommand(post *models.PostAction, remotePath string) string {
	command := strings.ReplaceAll(post.Command, "{tar_path}", remotePath)
	if post.UseSudo {
		if post.SudoPassword != "" {
			command = fmt.Sprintf("echo '%s' | sudo -S -p '' %s", post.SudoPassword, command)
		} else {
			command = "sudo " + command
		}
	}
	return command
}
