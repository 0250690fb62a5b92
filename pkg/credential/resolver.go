// Package credential computes the ordered list of authentication candidates
// for a target. Precedence, highest first: per-target key file, global key
// file, agent-held keys, auto-discovered keys, per-target password, global
// password, SSH-config identities. File-based keys are checked for existence
// once, at resolution time; a missing key file is logged and excluded, never
// attempted.
package credential

import (
	"fmt"
	"os"
	"path/filepath"

	"example.com/convoy/pkg/logger"
	"example.com/convoy/pkg/models"
	"example.com/convoy/pkg/sshconf"
)

// DefaultUser is the identity used when neither the target, the global
// options nor the SSH config name one.
const DefaultUser = "root"

// discoveredKeyNames are the file names probed in the key directory when
// look_for_keys is enabled, in attempt order.
var discoveredKeyNames = []string{"id_rsa", "id_ecdsa", "id_ed25519"}

// Resolver turns a Target plus global transport options and the optional SSH
// client config into an ordered candidate list.
type Resolver struct {
	Global    models.TransportOptions
	SSHConfig *sshconf.Config // may be nil

	// KeyDir is the auto-discovery directory; defaults to ~/.ssh.
	KeyDir string
	// AgentSocket overrides $SSH_AUTH_SOCK; mainly for tests.
	AgentSocket string
}

// Resolution fixes the endpoint, the identity and the candidates for one
// target. The candidate list is never mutated after construction.
type Resolution struct {
	Host       string
	Port       uint16
	User       string
	Candidates []Candidate
}

// Methods returns the ordered candidate labels, for diagnostics.
func (r Resolution) Methods() []string {
	out := make([]string, 0, len(r.Candidates))
	for _, c := range r.Candidates {
		out = append(out, c.Label)
	}
	return out
}

// Resolve computes the resolution for one target. It never fails: an empty
// candidate list surfaces later as AuthExhaustedError when the session opens.
func (r *Resolver) Resolve(target models.Target) Resolution {
	var entry sshconf.Entry
	if r.SSHConfig != nil {
		entry, _ = r.SSHConfig.Lookup(target.Host)
	}

	res := Resolution{
		Host: target.Host,
		Port: target.Port,
		User: target.User,
	}
	if entry.HostName != "" {
		res.Host = entry.HostName
	}
	if res.Port == 0 {
		res.Port = entry.Port
	}
	if res.Port == 0 {
		res.Port = 22
	}
	if res.User == "" {
		res.User = r.Global.User
	}
	if res.User == "" {
		res.User = entry.User
	}
	if res.User == "" {
		res.User = DefaultUser
	}

	allowAgent := boolOption(target.AllowAgent, r.Global.AllowAgent, true)
	lookForKeys := boolOption(target.LookForKeys, r.Global.LookForKeys, true)

	seen := map[string]bool{}
	addKey := func(kind Kind, path string) bool {
		path = ExpandHome(path)
		if path == "" || seen[path] {
			return false
		}
		if _, err := os.Stat(path); err != nil {
			logger.Logger.Warn("key file not found, skipping credential",
				"host", target.Host, "key_file", path)
			return false
		}
		seen[path] = true
		res.Candidates = append(res.Candidates, Candidate{
			Kind:  kind,
			Label: fmt.Sprintf("%s(%s)", kind, path),
			auth:  &KeyAuth{Path: path},
		})
		return true
	}

	explicitKey := false
	if target.KeyFile != "" {
		explicitKey = addKey(KindKeyFile, target.KeyFile) || explicitKey
	}
	if r.Global.KeyFile != "" {
		explicitKey = addKey(KindKeyFile, r.Global.KeyFile) || explicitKey
	}

	if allowAgent {
		socket := r.AgentSocket
		if socket == "" {
			socket = os.Getenv("SSH_AUTH_SOCK")
		}
		if socket != "" {
			res.Candidates = append(res.Candidates, Candidate{
				Kind:  KindAgent,
				Label: string(KindAgent),
				auth:  &AgentAuth{Socket: socket},
			})
		}
	}

	if lookForKeys {
		dir := r.KeyDir
		if dir == "" {
			if home, err := os.UserHomeDir(); err == nil {
				dir = filepath.Join(home, ".ssh")
			}
		}
		for _, name := range discoveredKeyNames {
			if dir == "" {
				break
			}
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err != nil {
				continue
			}
			if seen[path] {
				continue
			}
			seen[path] = true
			res.Candidates = append(res.Candidates, Candidate{
				Kind:  KindDiscovered,
				Label: fmt.Sprintf("%s(%s)", KindDiscovered, path),
				auth:  &KeyAuth{Path: path},
			})
		}
	}

	havePassword := false
	if target.Password != "" {
		havePassword = true
		res.Candidates = append(res.Candidates, Candidate{
			Kind:  KindPassword,
			Label: string(KindPassword),
			auth:  &PasswordAuth{Password: target.Password},
		})
	}
	if r.Global.Password != "" && r.Global.Password != target.Password {
		havePassword = true
		res.Candidates = append(res.Candidates, Candidate{
			Kind:  KindPassword,
			Label: string(KindPassword),
			auth:  &PasswordAuth{Password: r.Global.Password},
		})
	}

	// SSH-config identities only apply when no explicit key or password
	// matched at a higher precedence level.
	if !explicitKey && !havePassword {
		for _, path := range entry.IdentityFiles {
			addKey(KindSSHConfig, path)
		}
	}

	return res
}

func boolOption(perTarget, global *bool, def bool) bool {
	if perTarget != nil {
		return *perTarget
	}
	if global != nil {
		return *global
	}
	return def
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			return home + path[1:]
		}
	}
	return path
}
