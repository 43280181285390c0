package graphapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/cuboid-ai/callingbot/internal/signaling"
)

// fakeGraph stands up a token endpoint and a Graph API endpoint and records
// what the client sends.
type fakeGraph struct {
	tokenSrv *httptest.Server
	apiSrv   *httptest.Server

	tokenRequests atomic.Int64
	lastAuth      atomic.Value // string
	lastPath      atomic.Value // string
	lastBody      atomic.Value // string
	apiStatus     atomic.Int64
}

func newFakeGraph(t *testing.T, expiresIn int) *fakeGraph {
	t.Helper()
	fg := &fakeGraph{}
	fg.apiStatus.Store(int64(http.StatusAccepted))

	fg.tokenSrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse token form: %v", err)
		}
		if r.Form.Get("grant_type") != "client_credentials" {
			t.Errorf("grant_type = %q", r.Form.Get("grant_type"))
		}
		n := fg.tokenRequests.Add(1)
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": fmt.Sprintf("token-%d", n),
			"expires_in":   expiresIn,
		})
	}))
	t.Cleanup(fg.tokenSrv.Close)

	fg.apiSrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fg.lastAuth.Store(r.Header.Get("Authorization"))
		fg.lastPath.Store(r.Method + " " + r.URL.Path)
		var body strings.Builder
		if r.Body != nil {
			buf := make([]byte, 4096)
			for {
				n, err := r.Body.Read(buf)
				body.Write(buf[:n])
				if err != nil {
					break
				}
			}
		}
		fg.lastBody.Store(body.String())
		w.WriteHeader(int(fg.apiStatus.Load()))
	}))
	t.Cleanup(fg.apiSrv.Close)

	return fg
}

func (fg *fakeGraph) client(t *testing.T) *Client {
	t.Helper()
	c, err := New(Config{
		TenantID:     "tenant-1",
		ClientID:     "client-1",
		ClientSecret: "secret",
		BaseURL:      fg.apiSrv.URL,
		TokenURL:     fg.tokenSrv.URL,
		MediaBlob:    "media-blob",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	_, err := New(Config{ClientID: "c", ClientSecret: "s"})
	if err == nil || !strings.Contains(err.Error(), "TenantID") {
		t.Errorf("expected TenantID error, got %v", err)
	}
	_, err = New(Config{})
	if err == nil {
		t.Fatal("expected error for empty config")
	}
	// All three missing fields should be reported at once.
	for _, want := range []string{"TenantID", "ClientID", "ClientSecret"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q: %v", want, err)
		}
	}
}

func TestAnswer_SendsMediaConfig(t *testing.T) {
	t.Parallel()

	fg := newFakeGraph(t, 3600)
	c := fg.client(t)

	err := c.Answer(context.Background(), "call-1", "https://bot.example/api/calling", []string{signaling.ModalityAudio})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}

	if got := fg.lastPath.Load(); got != "POST /communications/calls/call-1/answer" {
		t.Errorf("path = %q", got)
	}
	if got := fg.lastAuth.Load(); got != "Bearer token-1" {
		t.Errorf("authorization = %q", got)
	}

	var body answerRequest
	if err := json.Unmarshal([]byte(fg.lastBody.Load().(string)), &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if body.CallbackURI != "https://bot.example/api/calling" {
		t.Errorf("callbackUri = %q", body.CallbackURI)
	}
	if len(body.AcceptedModalities) != 1 || body.AcceptedModalities[0] != "audio" {
		t.Errorf("acceptedModalities = %v", body.AcceptedModalities)
	}
	if body.MediaConfig.ODataType != "#microsoft.graph.appHostedMediaConfig" {
		t.Errorf("media config type = %q", body.MediaConfig.ODataType)
	}
	if body.MediaConfig.Blob != "media-blob" {
		t.Errorf("media blob = %q", body.MediaConfig.Blob)
	}
}

func TestReject_SendsReason(t *testing.T) {
	t.Parallel()

	fg := newFakeGraph(t, 3600)
	c := fg.client(t)

	if err := c.Reject(context.Background(), "call-2", signaling.RejectBusy); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if got := fg.lastPath.Load(); got != "POST /communications/calls/call-2/reject" {
		t.Errorf("path = %q", got)
	}
	if got := fg.lastBody.Load().(string); !strings.Contains(got, `"reason":"busy"`) {
		t.Errorf("body = %q", got)
	}
}

func TestHangup_Deletes(t *testing.T) {
	t.Parallel()

	fg := newFakeGraph(t, 3600)
	fg.apiStatus.Store(int64(http.StatusNoContent))
	c := fg.client(t)

	if err := c.Hangup(context.Background(), "call-3"); err != nil {
		t.Fatalf("Hangup: %v", err)
	}
	if got := fg.lastPath.Load(); got != "DELETE /communications/calls/call-3" {
		t.Errorf("path = %q", got)
	}
}

func TestTokenCaching(t *testing.T) {
	t.Parallel()

	fg := newFakeGraph(t, 3600)
	c := fg.client(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := c.Hangup(ctx, "call-1"); err != nil {
			t.Fatalf("Hangup %d: %v", i, err)
		}
	}
	if got := fg.tokenRequests.Load(); got != 1 {
		t.Errorf("token requests = %d, want 1 (cached)", got)
	}
}

func TestTokenRefreshNearExpiry(t *testing.T) {
	t.Parallel()

	// expires_in below the skew forces a refresh on every call.
	fg := newFakeGraph(t, 30)
	c := fg.client(t)
	ctx := context.Background()

	if err := c.Hangup(ctx, "call-1"); err != nil {
		t.Fatalf("Hangup: %v", err)
	}
	if err := c.Hangup(ctx, "call-1"); err != nil {
		t.Fatalf("Hangup: %v", err)
	}
	if got := fg.tokenRequests.Load(); got != 2 {
		t.Errorf("token requests = %d, want 2 (refreshed)", got)
	}
}

func TestErrorStatusSurfaces(t *testing.T) {
	t.Parallel()

	fg := newFakeGraph(t, 3600)
	fg.apiStatus.Store(int64(http.StatusForbidden))
	c := fg.client(t)

	err := c.Answer(context.Background(), "call-1", "https://bot.example", []string{"audio"})
	if err == nil {
		t.Fatal("expected error for 403 response")
	}
	if !strings.Contains(err.Error(), "403") {
		t.Errorf("error should mention status: %v", err)
	}
}
