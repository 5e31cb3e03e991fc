package conflict

import (
	"errors"
	"testing"
	"time"

	"github.com/loykin/devserver/internal/netprobe"
)

func TestParsePolicy(t *testing.T) {
	cases := []struct {
		in   string
		want Policy
		ok   bool
	}{
		{"", PolicyAsk, true},
		{"ask", PolicyAsk, true},
		{"ERROR", PolicyError, true},
		{" ignore ", PolicyIgnore, true},
		{"kill", PolicyKill, true},
		{"force", 0, false},
		{"abort", 0, false},
	}
	for _, c := range cases {
		got, err := ParsePolicy(c.in)
		if c.ok && (err != nil || got != c.want) {
			t.Fatalf("ParsePolicy(%q) = %v, %v; want %v", c.in, got, err, c.want)
		}
		if !c.ok && !errors.Is(err, ErrInvalidPolicy) {
			t.Fatalf("ParsePolicy(%q) = %v, want ErrInvalidPolicy", c.in, err)
		}
	}
}

// FuzzParsePolicy checks the parser never panics and round-trips every value
// it accepts.
func FuzzParsePolicy(f *testing.F) {
	for _, s := range []string{"", "ask", "error", "ignore", "kill", "KILL", " ask ", "force"} {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, s string) {
		p, err := ParsePolicy(s)
		if err != nil {
			return
		}
		back, err := ParsePolicy(p.String())
		if err != nil || back != p {
			t.Fatalf("round trip of %q failed: %v", p, err)
		}
	})
}

func TestResolveError(t *testing.T) {
	r := &Resolver{}
	act, err := r.Resolve(PolicyError, "api", 4000)
	if act != ActionAbort {
		t.Fatalf("action = %v, want abort", act)
	}
	var pe *PortInUseError
	if !errors.As(err, &pe) || pe.Port != 4000 || pe.Name != "api" {
		t.Fatalf("expected PortInUseError for api:4000, got %v", err)
	}
}

func TestResolveIgnore(t *testing.T) {
	r := &Resolver{}
	act, err := r.Resolve(PolicyIgnore, "api", 4000)
	if err != nil || act != ActionSkipSpawn {
		t.Fatalf("got %v, %v; want skip-spawn, nil", act, err)
	}
}

func TestResolveKill(t *testing.T) {
	killed := 0
	r := &Resolver{
		Find: func(port int) ([]netprobe.ProcInfo, error) {
			return []netprobe.ProcInfo{{PID: 123, Name: "node"}}, nil
		},
		Kill: func(port int, wait time.Duration) error {
			if port != 4000 {
				t.Fatalf("killed port %d, want 4000", port)
			}
			killed++
			return nil
		},
	}
	act, err := r.Resolve(PolicyKill, "api", 4000)
	if err != nil || act != ActionSpawn {
		t.Fatalf("got %v, %v; want spawn, nil", act, err)
	}
	if killed != 1 {
		t.Fatalf("kill invoked %d times, want 1", killed)
	}
}

func TestResolveKillFailure(t *testing.T) {
	boom := errors.New("still listening")
	r := &Resolver{
		Find: func(port int) ([]netprobe.ProcInfo, error) { return nil, nil },
		Kill: func(port int, wait time.Duration) error { return boom },
	}
	act, err := r.Resolve(PolicyKill, "api", 4000)
	if act != ActionAbort || !errors.Is(err, boom) {
		t.Fatalf("got %v, %v; want abort wrapping kill error", act, err)
	}
}

func TestResolveAskAccepted(t *testing.T) {
	killed := 0
	r := &Resolver{
		Confirm: func(q string) (bool, error) { return true, nil },
		Find:    func(port int) ([]netprobe.ProcInfo, error) { return nil, nil },
		Kill: func(port int, wait time.Duration) error {
			killed++
			return nil
		},
	}
	act, err := r.Resolve(PolicyAsk, "api", 4000)
	if err != nil || act != ActionSpawn {
		t.Fatalf("got %v, %v; want spawn, nil", act, err)
	}
	if killed != 1 {
		t.Fatalf("kill invoked %d times, want 1", killed)
	}
}

func TestResolveAskDeclined(t *testing.T) {
	exit := -1
	r := &Resolver{
		Confirm: func(q string) (bool, error) { return false, nil },
		Find:    func(port int) ([]netprobe.ProcInfo, error) { return nil, nil },
		Kill: func(port int, wait time.Duration) error {
			t.Fatal("kill must not run after decline")
			return nil
		},
		Fatal: func(code int) { exit = code },
	}
	act, err := r.Resolve(PolicyAsk, "api", 4000)
	if exit != 1 {
		t.Fatalf("Fatal called with %d, want 1", exit)
	}
	if act != ActionAbort || err == nil {
		t.Fatalf("got %v, %v; want abort with error", act, err)
	}
}

func TestResolveAskPromptError(t *testing.T) {
	r := &Resolver{
		Confirm: func(q string) (bool, error) { return false, errors.New("no tty") },
		Find:    func(port int) ([]netprobe.ProcInfo, error) { return nil, nil },
		Fatal:   func(code int) { t.Fatal("Fatal must not run on prompt error") },
	}
	act, err := r.Resolve(PolicyAsk, "api", 4000)
	if act != ActionAbort || err == nil {
		t.Fatalf("got %v, %v; want abort with error", act, err)
	}
}
