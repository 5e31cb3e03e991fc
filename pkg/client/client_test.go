package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestServersAndTeardown(t *testing.T) {
	var gotTeardownBody map[string]string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/healthz":
			_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
		case "/servers":
			_ = json.NewEncoder(w).Encode([]Status{{Index: 0, Name: "api", PID: 42, Port: 4000, Alive: true}})
		case "/teardown":
			if r.Method != http.MethodPost {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			_ = json.NewDecoder(r.Body).Decode(&gotTeardownBody)
			_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	c := New(Config{BaseURL: ts.URL})
	ctx := context.Background()

	if !c.IsReachable(ctx) {
		t.Fatal("controller should be reachable")
	}

	servers, err := c.Servers(ctx)
	if err != nil {
		t.Fatalf("Servers: %v", err)
	}
	if len(servers) != 1 || servers[0].Name != "api" || !servers[0].Alive {
		t.Fatalf("servers = %+v", servers)
	}

	if err := c.Teardown(ctx, "echo done"); err != nil {
		t.Fatalf("Teardown: %v", err)
	}
	if gotTeardownBody["post_command"] != "echo done" {
		t.Fatalf("teardown body = %v", gotTeardownBody)
	}
}

func TestAPIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "boom"})
	}))
	defer ts.Close()

	c := New(Config{BaseURL: ts.URL})
	if _, err := c.Servers(context.Background()); err == nil {
		t.Fatal("expected error from 500 response")
	}
	if c.IsReachable(context.Background()) {
		t.Fatal("500 healthz should not count as reachable")
	}
}
