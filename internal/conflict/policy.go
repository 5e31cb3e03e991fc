package conflict

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPolicy is the sentinel matched by errors.Is for unparseable
// conflict policy strings.
var ErrInvalidPolicy = errors.New("invalid conflict policy")

// Policy is the rule applied when a configured port is already occupied.
type Policy uint8

const (
	PolicyAsk Policy = iota // confirm with the operator before killing
	PolicyError
	PolicyIgnore
	PolicyKill
)

// policyNames is the wire form of each policy; order matches the constants.
var policyNames = [...]string{"ask", "error", "ignore", "kill"}

func (p Policy) String() string {
	if int(p) < len(policyNames) {
		return policyNames[p]
	}
	return fmt.Sprintf("policy(%d)", p)
}

// ParsePolicy maps a config string to a Policy. Empty selects ask.
func ParsePolicy(s string) (Policy, error) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "", "ask":
		return PolicyAsk, nil
	case "error":
		return PolicyError, nil
	case "ignore":
		return PolicyIgnore, nil
	case "kill":
		return PolicyKill, nil
	}
	return 0, fmt.Errorf("%w %q (valid: ask, error, ignore, kill)", ErrInvalidPolicy, s)
}

// UnmarshalText lets Policy decode directly from config files.
func (p *Policy) UnmarshalText(text []byte) error {
	v, err := ParsePolicy(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

func (p Policy) MarshalText() ([]byte, error) { return []byte(p.String()), nil }
