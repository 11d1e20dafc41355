package policy

import (
	"strings"

	clierr "github.com/ggonzalez94/mfi-cli/internal/errors"
)

// CheckCommandAllowed enforces the --enable-commands allowlist. An entry
// allows the exact command path and every command below it, so "bank"
// allows "bank get" and "bank update". An empty allowlist allows everything.
func CheckCommandAllowed(allowlist []string, commandPath string) error {
	if len(allowlist) == 0 {
		return nil
	}
	normPath := normalize(commandPath)
	for _, allowed := range allowlist {
		norm := normalize(allowed)
		if norm == "" {
			continue
		}
		if norm == normPath || strings.HasPrefix(normPath, norm+" ") {
			return nil
		}
	}
	return clierr.New(clierr.CodeBlocked, "command "+normPath+" blocked by --enable-commands policy")
}

func normalize(v string) string {
	parts := strings.Fields(strings.ToLower(strings.TrimSpace(v)))
	return strings.Join(parts, " ")
}
