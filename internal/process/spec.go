package process

import (
	"os/exec"
	"strings"

	"github.com/loykin/devserver/internal/logger"
)

// Spec describes one server process to spawn. Env must already be the fully
// merged "K=V" list; merging happens upstream.
type Spec struct {
	Name    string        `json:"name"`
	Command string        `json:"command"`
	WorkDir string        `json:"work_dir"`
	Env     []string      `json:"env"`
	Debug   bool          `json:"debug"` // mirror child stdout to the controller, line-prefixed
	Log     logger.Config `json:"log"`   // optional rotating file capture
}

// BuildCommand constructs an *exec.Cmd for spec.Command.
// It honors an explicit shell invocation already present in the command
// string (e.g. "sh -c 'echo hi'") without double-wrapping, falls back to
// /bin/sh -c when shell metacharacters are present, and execs directly
// otherwise.
func (s *Spec) BuildCommand() *exec.Cmd {
	cmdStr := strings.TrimSpace(s.Command)
	if cmdStr == "" {
		// #nosec G204
		return exec.Command("/bin/true")
	}
	if _, afterC, ok := parseExplicitShell(cmdStr); ok {
		// Absolute shell path avoids PATH dependency when Env is overridden.
		// #nosec G204
		return exec.Command("/bin/sh", "-c", afterC)
	}
	if strings.ContainsAny(cmdStr, "|&;<>*?`$\"'(){}[]~") {
		// #nosec G204
		return exec.Command("/bin/sh", "-c", cmdStr)
	}
	parts := strings.Fields(cmdStr)
	name := parts[0]
	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}
	// #nosec G204
	return exec.Command(name, args...)
}

// parseExplicitShell detects patterns like "sh -c <ARG>" or "/bin/sh -c <ARG>"
// at the beginning of cmdStr. It returns (shellPath, afterCArg, true) when
// matched, preserving the substring after "-c " to keep quoting intact.
func parseExplicitShell(cmdStr string) (string, string, bool) {
	trim := strings.TrimLeft(cmdStr, " \t")
	candidates := []string{"sh -c ", "/bin/sh -c ", "/usr/bin/sh -c "}
	for _, p := range candidates {
		if strings.HasPrefix(trim, p) {
			after := trim[len(p):]
			if n := len(after); n >= 2 {
				if (after[0] == '\'' && after[n-1] == '\'') || (after[0] == '"' && after[n-1] == '"') {
					after = after[1 : n-1]
				}
			}
			return strings.Fields(p)[0], after, true
		}
	}
	return "", "", false
}
