//go:build !windows

package devserver

import (
	"context"
	"errors"
	"testing"
)

func TestFacadeRoundTrip(t *testing.T) {
	m := New()
	defer m.Teardown(context.Background(), "")

	if err := m.Setup(context.Background(), Spec{Name: "bg", Command: "sleep 30"}); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	procs := m.GetManagedProcesses()
	if len(procs) != 1 || procs[0].Name != "bg" {
		t.Fatalf("managed processes = %+v", procs)
	}
	m.Teardown(context.Background(), "")
	if len(m.GetManagedProcesses()) != 0 {
		t.Fatal("registry should be empty after teardown")
	}
}

func TestFacadeErrorKinds(t *testing.T) {
	m := New()
	err := m.Setup(context.Background(), Spec{Name: "broken"})
	if !errors.Is(err, ErrNoCommand) {
		t.Fatalf("expected ErrNoCommand, got %v", err)
	}

	err = m.Setup(context.Background(), Spec{Name: "badpolicy", Command: "true", ConflictPolicy: "force"})
	if !errors.Is(err, ErrInvalidPolicy) {
		t.Fatalf("expected ErrInvalidPolicy, got %v", err)
	}
}

func TestSetGlobalEnv(t *testing.T) {
	m := New()
	m.SetGlobalEnv([]string{"SESSION=abc", "malformed"})
	got := m.inner.Env().Merge(nil)
	found := false
	for _, kv := range got {
		if kv == "SESSION=abc" {
			found = true
		}
	}
	if !found {
		t.Fatalf("SESSION override missing from merged env")
	}
}
