package manager

import (
	"errors"
	"fmt"
	"time"

	"github.com/loykin/devserver/internal/conflict"
	"github.com/loykin/devserver/internal/logger"
	"github.com/loykin/devserver/internal/readiness"
)

// ErrNoCommand marks a server entry that omitted the required command.
var ErrNoCommand = errors.New("server entry has no command")

// Spec describes one logical server to bring up for the session.
// Command is the only required field. A zero Port means the server is
// considered ready the moment it is spawned; no probing happens.
type Spec struct {
	Name           string            `json:"name" mapstructure:"name"`
	Command        string            `json:"command" mapstructure:"command"`
	WorkDir        string            `json:"work_dir" mapstructure:"work_dir"`
	Env            []string          `json:"env" mapstructure:"env"`
	Host           string            `json:"host" mapstructure:"host"`
	Port           int               `json:"port" mapstructure:"port"`
	Protocol       string            `json:"protocol" mapstructure:"protocol"`
	BasePath       string            `json:"base_path" mapstructure:"base_path"`
	ConflictPolicy string            `json:"conflict_policy" mapstructure:"conflict_policy"`
	LaunchTimeout  time.Duration     `json:"launch_timeout" mapstructure:"launch_timeout"`
	Readiness      readiness.Options `json:"readiness" mapstructure:"readiness"`
	Debug          bool              `json:"debug" mapstructure:"debug"`
	Log            logger.Config     `json:"log" mapstructure:"log"`
}

// resolved is a Spec after validation, with defaults applied and the
// string-typed fields parsed into their enums.
type resolved struct {
	Spec
	policy conflict.Policy
	proto  readiness.Protocol
	opts   readiness.Options
}

func (s Spec) resolve(index int) (resolved, error) {
	r := resolved{Spec: s}
	if s.Command == "" {
		return r, fmt.Errorf("entry %d (%s): %w", index, s.Name, ErrNoCommand)
	}
	if r.Name == "" {
		r.Name = fmt.Sprintf("server-%d", index)
	}
	if r.Host == "" {
		r.Host = "localhost"
	}
	if s.Port < 0 {
		return r, fmt.Errorf("entry %d (%s): negative port %d", index, r.Name, s.Port)
	}
	var err error
	if r.policy, err = conflict.ParsePolicy(s.ConflictPolicy); err != nil {
		return r, fmt.Errorf("entry %d (%s): %w", index, r.Name, err)
	}
	if r.proto, err = readiness.ParseProtocol(s.Protocol); err != nil {
		return r, fmt.Errorf("entry %d (%s): %w", index, r.Name, err)
	}
	r.opts = s.Readiness
	if r.opts.Timeout == 0 {
		r.opts.Timeout = s.LaunchTimeout
	}
	return r, nil
}
