package env

import (
	"strings"
	"testing"
)

func findKV(t *testing.T, list []string, key string) (string, bool) {
	t.Helper()
	for _, kv := range list {
		if strings.HasPrefix(kv, key+"=") {
			return strings.TrimPrefix(kv, key+"="), true
		}
	}
	return "", false
}

func TestMergePrecedence(t *testing.T) {
	e := New()
	e.env = Var{"A": "os", "B": "os"} // skip FromOS for determinism
	e.Set("B", "global")
	got := e.Merge([]string{"B=server", "C=extra"})
	if v, ok := findKV(t, got, "A"); !ok || v != "os" {
		t.Fatalf("A=%q ok=%v, want os", v, ok)
	}
	if v, _ := findKV(t, got, "B"); v != "server" {
		t.Fatalf("B=%q, want per-server override to win", v)
	}
	if v, _ := findKV(t, got, "C"); v != "extra" {
		t.Fatalf("C=%q, want extra", v)
	}
}

func TestMergeExpansion(t *testing.T) {
	e := New()
	e.env = Var{"HOME": "/home/u"}
	got := e.Merge([]string{"DATA=${HOME}/data"})
	if v, _ := findKV(t, got, "DATA"); v != "/home/u/data" {
		t.Fatalf("DATA=%q, want /home/u/data", v)
	}
}

func TestMergeSkipsMalformed(t *testing.T) {
	e := New()
	e.env = Var{}
	got := e.Merge([]string{"novalue", "=empty-key", "OK=1"})
	if len(got) != 1 {
		t.Fatalf("got %v, want only OK=1", got)
	}
}

func TestUnset(t *testing.T) {
	e := New()
	e.env = Var{}
	e.Set("X", "1")
	e.Unset("X")
	if _, ok := findKV(t, e.Merge(nil), "X"); ok {
		t.Fatalf("X should have been unset")
	}
}
