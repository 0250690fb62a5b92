package credential

import (
	"fmt"
	"strings"
)

// AuthExhaustedError reports that every candidate for a target failed or was
// unavailable. It carries the ordered list of methods attempted for
// diagnostics. Non-retriable within the same run.
type AuthExhaustedError struct {
	Host    string
	Methods []string
}

func (e *AuthExhaustedError) Error() string {
	if len(e.Methods) == 0 {
		return fmt.Sprintf("authentication exhausted for %s: no credentials available", e.Host)
	}
	return fmt.Sprintf("authentication exhausted for %s: tried %s", e.Host, strings.Join(e.Methods, ", "))
}
