package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func fakeAPI(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/calls", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["from"] != "79000000001" || body["to"] != "9000000002" {
			t.Errorf("unexpected call body %v", body)
		}
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"status":"accepted","correlation_id":"42"}`))
	})
	mux.HandleFunc("/api/v1/trunks", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"trunks":[{"id":"100","capacity":3,"available":1,"busy":false}]}`))
	})
	mux.HandleFunc("/api/v1/recordings/pending", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"ledger offline"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCallCommand(t *testing.T) {
	srv := fakeAPI(t)
	out, err := run(t, "--host", srv.URL, "call", "--from", "79000000001", "--to", "9000000002", "--id", "42")
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if strings.TrimSpace(out) != "accepted 42" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestCallRequiresNumbers(t *testing.T) {
	srv := fakeAPI(t)
	if _, err := run(t, "--host", srv.URL, "call", "--from", "79000000001"); err == nil {
		t.Fatalf("expected missing flag error")
	}
}

func TestTrunksCommand(t *testing.T) {
	srv := fakeAPI(t)
	out, err := run(t, "--host", srv.URL, "trunks")
	if err != nil {
		t.Fatalf("trunks: %v", err)
	}
	if !strings.Contains(out, "TRUNK") || !strings.Contains(out, "100") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestAPIErrorSurfaces(t *testing.T) {
	srv := fakeAPI(t)
	_, err := run(t, "--host", srv.URL, "recordings")
	if err == nil || !strings.Contains(err.Error(), "ledger offline") {
		t.Fatalf("expected api error, got %v", err)
	}
}
