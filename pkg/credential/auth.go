package credential

import (
	"fmt"
	"net"
	"os"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// Kind classifies how a candidate authenticates.
type Kind string

const (
	KindKeyFile    Kind = "key_file"
	KindAgent      Kind = "agent"
	KindDiscovered Kind = "discovered_key"
	KindPassword   Kind = "password"
	KindSSHConfig  Kind = "ssh_config_identity"
)

// AuthMethod builds the underlying ssh.AuthMethod for one credential.
type AuthMethod interface {
	GetMethod() (ssh.AuthMethod, error)
}

// Candidate is one concrete authentication method, attempted in priority
// order during session establishment. Never mutated after construction.
type Candidate struct {
	Kind  Kind
	Label string
	auth  AuthMethod
}

func (c Candidate) GetMethod() (ssh.AuthMethod, error) {
	return c.auth.GetMethod()
}

// PasswordAuth authenticates with a plain password.
type PasswordAuth struct {
	Password string
}

func (p *PasswordAuth) GetMethod() (ssh.AuthMethod, error) {
	return ssh.Password(p.Password), nil
}

// KeyAuth authenticates with a private key file.
type KeyAuth struct {
	Path       string
	Passphrase string
}

func (k *KeyAuth) GetMethod() (ssh.AuthMethod, error) {
	keyData, err := os.ReadFile(k.Path)
	if err != nil {
		return nil, err
	}
	var signer ssh.Signer
	if k.Passphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(keyData, []byte(k.Passphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(keyData)
	}
	if err != nil {
		return nil, fmt.Errorf("parse private key %s: %w", k.Path, err)
	}
	return ssh.PublicKeys(signer), nil
}

// AgentAuth offers every key held by the SSH agent at Socket.
type AgentAuth struct {
	Socket string
}

func (a *AgentAuth) GetMethod() (ssh.AuthMethod, error) {
	conn, err := net.Dial("unix", a.Socket)
	if err != nil {
		return nil, fmt.Errorf("dial ssh agent: %w", err)
	}
	// The agent connection stays open for the lifetime of the handshake; the
	// process exit reclaims it, which is fine for a CLI run.
	ag := agent.NewClient(conn)
	return ssh.PublicKeysCallback(ag.Signers), nil
}
