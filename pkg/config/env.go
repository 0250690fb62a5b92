package config

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"

	"example.com/convoy/pkg/credential"
	"example.com/convoy/pkg/logger"
)

// Layer is one ordered source of variables. Layers are merged
// highest-precedence-last: system < env files (in order) < inline env.
type Layer map[string]string

// SystemLayer snapshots the process environment.
func SystemLayer() Layer {
	layer := Layer{}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			layer[k] = v
		}
	}
	return layer
}

// FileLayer parses a KEY=VALUE env file. Blank lines and # comments are
// skipped; single or double quotes around values are stripped.
func FileLayer(path string) (Layer, error) {
	f, err := os.Open(credential.ExpandHome(path))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	layer := Layer{}
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			logger.Logger.Warn("skipping invalid env line", "path", path, "line", lineNum)
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if len(value) >= 2 && (value[0] == '"' || value[0] == '\'') && value[len(value)-1] == value[0] {
			value = value[1 : len(value)-1]
		}
		layer[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return layer, nil
}

// MergeLayers merges layers in order; later layers win.
func MergeLayers(layers ...Layer) map[string]string {
	merged := map[string]string{}
	for _, layer := range layers {
		for k, v := range layer {
			merged[k] = v
		}
	}
	return merged
}

var (
	bracedVar = regexp.MustCompile(`\$\{([^}]+)\}`)
	bareVar   = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
)

// Expand substitutes variable references in value. Supported forms:
// ${VAR}, $VAR, ${VAR:-default} (default when unset) and ${VAR:?message}
// (error when unset). Unknown plain references are left as-is.
func Expand(value string, vars map[string]string) (string, error) {
	var expandErr error
	result := bracedVar.ReplaceAllStringFunc(value, func(match string) string {
		expr := match[2 : len(match)-1]

		if name, def, ok := strings.Cut(expr, ":-"); ok {
			if v, found := vars[strings.TrimSpace(name)]; found {
				return v
			}
			return def
		}
		if name, msg, ok := strings.Cut(expr, ":?"); ok {
			name = strings.TrimSpace(name)
			v, found := vars[name]
			if !found {
				if expandErr == nil {
					expandErr = fmt.Errorf("required variable not set: %s (%s)", name, msg)
				}
				return match
			}
			return v
		}
		if v, found := vars[expr]; found {
			return v
		}
		return match
	})
	if expandErr != nil {
		return "", expandErr
	}
	result = bareVar.ReplaceAllStringFunc(result, func(match string) string {
		if v, found := vars[match[1:]]; found {
			return v
		}
		return match
	})
	return result, nil
}
