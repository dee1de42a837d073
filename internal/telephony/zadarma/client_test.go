package zadarma

import (
	"context"
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
)

type recordedRequest struct {
	method string
	path   string
	params url.Values
	auth   string
}

type fakeAPI struct {
	mu       sync.Mutex
	requests []recordedRequest
	replies  map[string]string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	if r.Method == http.MethodPost {
		raw, _ := io.ReadAll(r.Body)
		params, _ = url.ParseQuery(string(raw))
	}
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{method: r.Method, path: r.URL.Path, params: params, auth: r.Header.Get("Authorization")})
	reply, ok := f.replies[r.URL.Path]
	f.mu.Unlock()
	if !ok {
		reply = `{"status":"success"}`
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, reply)
}

func (f *fakeAPI) last() recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func newTestClient(t *testing.T, api *fakeAPI, pbxID string) *Client {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	c, err := NewClient(Config{Key: "key", Secret: "secret", BaseURL: srv.URL, PBXID: pbxID, MaxChannels: 3})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func expectedSignature(method string, params url.Values) string {
	query := params.Encode()
	h := md5.New()
	io.WriteString(h, query)
	mac := hmac.New(sha1.New, []byte("secret"))
	io.WriteString(mac, method+query+fmt.Sprintf("%x", h.Sum(nil)))
	return "key:" + base64.StdEncoding.EncodeToString([]byte(hex.EncodeToString(mac.Sum(nil))))
}

func TestNewClientRequiresCredentials(t *testing.T) {
	if _, err := NewClient(Config{Key: "k"}); err == nil {
		t.Fatalf("expected configuration error without secret")
	}
}

func TestCallbackSignsRequest(t *testing.T) {
	api := &fakeAPI{replies: map[string]string{methodCallback: `{"status":"success","from":100,"to":"9000000002"}`}}
	c := newTestClient(t, api, "1234")

	res, err := c.Callback(context.Background(), "100", "9000000002")
	if err != nil {
		t.Fatalf("callback: %v", err)
	}
	if !res.OK() {
		t.Fatalf("expected success, got %+v", res)
	}

	req := api.last()
	if req.method != http.MethodGet || req.path != methodCallback {
		t.Fatalf("unexpected request %s %s", req.method, req.path)
	}
	if req.params.Get("from") != "100" || req.params.Get("to") != "9000000002" || req.params.Get("format") != "json" {
		t.Fatalf("unexpected params: %v", req.params)
	}
	if want := expectedSignature(methodCallback, req.params); req.auth != want {
		t.Fatalf("signature mismatch: got %q want %q", req.auth, want)
	}
}

func TestSetRedirectUsesPBXNumber(t *testing.T) {
	api := &fakeAPI{replies: map[string]string{methodRedirection: `{"status":"error","message":"redirect busy"}`}}
	c := newTestClient(t, api, "1234")

	res, err := c.SetRedirect(context.Background(), "100", "79000000001")
	if err != nil {
		t.Fatalf("set redirect: %v", err)
	}
	if res.OK() || res.Message != "redirect busy" {
		t.Fatalf("expected provider failure to surface as status, got %+v", res)
	}

	req := api.last()
	if req.method != http.MethodPost {
		t.Fatalf("expected POST, got %s", req.method)
	}
	if got := req.params.Get("pbx_number"); got != "1234-100" {
		t.Fatalf("unexpected pbx_number %q", got)
	}
	if req.params.Get("destination") != "79000000001" || req.params.Get("status") != "on" || req.params.Get("set_caller_id") != "on" {
		t.Fatalf("unexpected params: %v", req.params)
	}
	if want := expectedSignature(methodRedirection, req.params); req.auth != want {
		t.Fatalf("signature mismatch")
	}
}

func TestSetRedirectDiscoversPBXID(t *testing.T) {
	api := &fakeAPI{replies: map[string]string{methodInternal: `{"status":"success","pbx_id":4321,"numbers":[100,101]}`}}
	c := newTestClient(t, api, "")

	if _, err := c.SetRedirect(context.Background(), "101", "7900"); err != nil {
		t.Fatalf("set redirect: %v", err)
	}
	if got := api.last().params.Get("pbx_number"); got != "4321-101" {
		t.Fatalf("unexpected pbx_number %q", got)
	}
}

func TestTrunkNumbers(t *testing.T) {
	api := &fakeAPI{replies: map[string]string{methodInternal: `{"status":"success","pbx_id":"4321","numbers":[100,"101"]}`}}
	c := newTestClient(t, api, "")

	trunks, err := c.TrunkNumbers(context.Background())
	if err != nil {
		t.Fatalf("trunk numbers: %v", err)
	}
	if len(trunks) != 2 || trunks[0].ID != "100" || trunks[1].ID != "101" {
		t.Fatalf("unexpected trunks: %+v", trunks)
	}
	for _, tn := range trunks {
		if tn.Capacity != 3 {
			t.Fatalf("expected configured capacity, got %d", tn.Capacity)
		}
	}

	if _, err := c.ClearRedirect(context.Background(), "100"); err != nil {
		t.Fatalf("clear redirect: %v", err)
	}
	req := api.last()
	if req.params.Get("pbx_number") != "4321-100" || req.params.Get("status") != "off" {
		t.Fatalf("unexpected clear params: %v", req.params)
	}
}

func TestTrunkNumbersProviderError(t *testing.T) {
	api := &fakeAPI{replies: map[string]string{methodInternal: `{"status":"error","message":"no pbx"}`}}
	c := newTestClient(t, api, "")

	if _, err := c.TrunkNumbers(context.Background()); err == nil || !strings.Contains(err.Error(), "no pbx") {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestRecordingLink(t *testing.T) {
	cases := []struct {
		reply string
		want  string
	}{
		{`{"status":"success","link":"https://files/rec1.mp3"}`, "https://files/rec1.mp3"},
		{`{"status":"success","links":["https://files/rec2.mp3"]}`, "https://files/rec2.mp3"},
		{`{"status":"error","message":"not ready"}`, ""},
	}

	for _, tc := range cases {
		api := &fakeAPI{replies: map[string]string{methodRecord: tc.reply}}
		c := newTestClient(t, api, "1")
		got, err := c.RecordingLink(context.Background(), "rec-1")
		if err != nil {
			t.Fatalf("recording link: %v", err)
		}
		if got != tc.want {
			t.Errorf("reply %s: got %q want %q", tc.reply, got, tc.want)
		}
		if api.last().params.Get("call_id") != "rec-1" {
			t.Errorf("expected call_id parameter")
		}
	}
}
