package runner

import (
	"errors"
	"testing"

	"example.com/convoy/pkg/models"
	"example.com/convoy/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergePost(t *testing.T) {
	assert.Nil(t, mergePost(nil, nil))

	global := &models.PostAction{Command: "docker load -i {tar_path}", UseSudo: true}

	merged := mergePost(global, nil)
	assert.Equal(t, *global, *merged)

	merged = mergePost(nil, &models.PostAction{Command: "podman load -i {tar_path}"})
	assert.Equal(t, "podman load -i {tar_path}", merged.Command)
	assert.False(t, merged.UseSudo)

	merged = mergePost(global, &models.PostAction{SudoPassword: "pw"})
	assert.Equal(t, "docker load -i {tar_path}", merged.Command)
	assert.True(t, merged.UseSudo)
	assert.Equal(t, "pw", merged.SudoPassword)
}

func TestPostCommandSubstitution(t *testing.T) {
	post := &models.PostAction{Command: "docker load -i {tar_path} && rm {tar_path}"}
	assert.Equal(t,
		"docker load -i /tmp/images.tar.gz && rm /tmp/images.tar.gz",
		postCommand(post, "/tmp/images.tar.gz"))
}

func TestPostExitError(t *testing.T) {
	err := postExitError("node-1", transport.ExecResult{
		ExitCode: 125,
		Stdout:   "partial",
		Stderr:   "no such image\n",
	})

	var execErr *transport.ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, "node-1", execErr.Host)
	assert.Equal(t, "partial", execErr.Stdout)
	assert.Equal(t, "no such image\n", execErr.Stderr)
	assert.Contains(t, err.Error(), "exited 125")
}

func TestPostCommandSudo(t *testing.T) {
	post := &models.PostAction{Command: "docker load -i {tar_path}", UseSudo: true}
	assert.Equal(t, "sudo docker load -i /tmp/i.tar.gz", postCommand(post, "/tmp/i.tar.gz"))

	post.SudoPassword = "s3cret"
	assert.Equal(t,
		"echo 's3cret' | sudo -S -p '' docker load -i /tmp/i.tar.gz",
		postCommand(post, "/tmp/i.tar.gz"))
}
