// Package sshconf loads the subset of the OpenSSH client configuration that
// matters for credential resolution: HostName, User, Port and IdentityFile,
// looked up by host alias. The file is read once per run into an explicit
// lookup table; it is never consulted as an ambient side channel.
package sshconf

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path"
	"strconv"
	"strings"
)

// Entry is the merged configuration for one host alias.
type Entry struct {
	HostName      string
	User          string
	Port          uint16
	IdentityFiles []string
}

type block struct {
	patterns []string
	entry    Entry
}

// Config is an immutable set of parsed Host blocks.
type Config struct {
	blocks []block
}

// DefaultPath returns ~/.ssh/config, or "" when the home directory is unknown.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return path.Join(home, ".ssh", "config")
}

// Load reads and parses an OpenSSH client config file.
func Load(filePath string) (*Config, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	cfg, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filePath, err)
	}
	return cfg, nil
}

// Parse reads Host blocks from r. Unknown keywords and Match blocks are
// skipped; only the keywords relevant to resolution are retained.
func Parse(r io.Reader) (*Config, error) {
	cfg := &Config{}
	var cur *block

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		key := strings.ToLower(fields[0])
		args := fields[1:]

		switch key {
		case "host":
			if cur != nil {
				cfg.blocks = append(cfg.blocks, *cur)
			}
			cur = &block{patterns: args}
		case "match":
			// Match blocks are not supported; close the current block so
			// their options are not attributed to the previous Host.
			if cur != nil {
				cfg.blocks = append(cfg.blocks, *cur)
				cur = nil
			}
		case "hostname":
			if cur != nil && len(args) > 0 {
				cur.entry.HostName = args[0]
			}
		case "user":
			if cur != nil && len(args) > 0 {
				cur.entry.User = args[0]
			}
		case "port":
			if cur != nil && len(args) > 0 {
				p, err := strconv.ParseUint(args[0], 10, 16)
				if err != nil {
					return nil, fmt.Errorf("invalid port %q", args[0])
				}
				cur.entry.Port = uint16(p)
			}
		case "identityfile":
			if cur != nil && len(args) > 0 {
				cur.entry.IdentityFiles = append(cur.entry.IdentityFiles, args[0])
			}
		}
	}
	if cur != nil {
		cfg.blocks = append(cfg.blocks, *cur)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Lookup merges all blocks whose pattern matches alias, in file order with
// first-obtained-value-wins semantics (matching OpenSSH behaviour). The
// second return value reports whether any block matched.
func (c *Config) Lookup(alias string) (Entry, bool) {
	var merged Entry
	found := false
	for _, b := range c.blocks {
		if !matches(b.patterns, alias) {
			continue
		}
		found = true
		if merged.HostName == "" {
			merged.HostName = b.entry.HostName
		}
		if merged.User == "" {
			merged.User = b.entry.User
		}
		if merged.Port == 0 {
			merged.Port = b.entry.Port
		}
		merged.IdentityFiles = append(merged.IdentityFiles, b.entry.IdentityFiles...)
	}
	return merged, found
}

// matches implements Host pattern lists: globs with * and ?, and negation
// with a leading !. A negated match excludes the alias from the whole list.
func matches(patterns []string, alias string) bool {
	matched := false
	for _, p := range patterns {
		negate := strings.HasPrefix(p, "!")
		if negate {
			p = p[1:]
		}
		ok, err := path.Match(p, alias)
		if err != nil || !ok {
			continue
		}
		if negate {
			return false
		}
		matched = true
	}
	return matched
}
