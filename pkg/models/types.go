package models

import (
	"time"

	"gopkg.in/yaml.v3"
)

// Duration accepts both "10s" strings and plain second counts in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	// A bare integer decodes into a string too, so the int case goes first.
	var n int64
	if err := value.Decode(&n); err == nil {
		*d = Duration(time.Duration(n) * time.Second)
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// TransportOptions holds the transport-level SSH settings. The same shape is
// used globally and (minus Timeout/SSHConfig) per target; per-target values
// take precedence during credential resolution.
type TransportOptions struct {
	KeyFile     string   `yaml:"key_file,omitempty"`
	Password    string   `yaml:"password,omitempty"`
	User        string   `yaml:"user,omitempty"`
	AllowAgent  *bool    `yaml:"allow_agent,omitempty"`
	LookForKeys *bool    `yaml:"look_for_keys,omitempty"`
	Timeout     Duration `yaml:"timeout,omitempty"`
	SSHConfig   string   `yaml:"ssh_config,omitempty"`
}

// PostAction is the post-transfer action executed on a target after a
// successful upload. Command may contain a {tar_path} placeholder which is
// replaced with the remote artifact path.
type PostAction struct {
	Command      string `yaml:"command"`
	UseSudo      bool   `yaml:"use_sudo,omitempty"`
	SudoPassword string `yaml:"sudo_password,omitempty"`
}

// Target identifies one remote endpoint. Immutable during a run.
type Target struct {
	Host        string      `yaml:"host"`
	User        string      `yaml:"user,omitempty"`
	Port        uint16      `yaml:"port,omitempty"`
	KeyFile     string      `yaml:"key_file,omitempty"`
	Password    string      `yaml:"password,omitempty"`
	AllowAgent  *bool       `yaml:"allow_agent,omitempty"`
	LookForKeys *bool       `yaml:"look_for_keys,omitempty"`
	Post        *PostAction `yaml:"post,omitempty"`
}

// Addr returns host:port with the default SSH port applied.
func (t Target) Addr() (string, uint16) {
	port := t.Port
	if port == 0 {
		port = 22
	}
	return t.Host, port
}

// TransferOutcome is the terminal result for one target.
type TransferOutcome struct {
	Target    Target
	Success   bool
	BytesSent int64
	Duration  time.Duration
	Err       error
}
