package integration_test

import (
	"bytes"
	"context"
	"crypto/rsa"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mediagate/internal/domain"
	"mediagate/internal/media"
	"mediagate/internal/media/adapter/fsblob"
	"mediagate/internal/media/adapter/inmem"
	"mediagate/internal/media/adapter/tokenauth"
	"mediagate/internal/media/middleware"
	"mediagate/internal/platform/server"
	"mediagate/internal/platform/telemetry"
	"mediagate/internal/testutil"
)

type mediaStack struct {
	baseURL string
	store   *inmem.Store
	kid     string
	priv    *rsa.PrivateKey
	payload []byte
}

// startStack wires the full delivery service: JWKS server, metadata
// store, filesystem blob store, middleware chain and HTTP server.
func startStack(t *testing.T, burst int) *mediaStack {
	t.Helper()

	kid, priv, pub := testutil.GenerateTestKeyPair(t)
	jwksSrv := httptest.NewServer(testutil.MockJWKSHandler(kid, pub))
	t.Cleanup(jwksSrv.Close)

	payload := testutil.Payload(2048)
	root := t.TempDir()
	store := inmem.NewStore()
	for _, res := range []domain.Resource{
		{ID: "pub-1", Path: "videos/pub.mp4", Size: 2048, ContentType: "video/mp4", Visibility: domain.VisibilityPublic},
		{ID: "mem-1", Path: "videos/members.mp4", Size: 2048, ContentType: "video/mp4", Visibility: domain.VisibilityMembers},
		{ID: "prv-1", Path: "videos/private.mp4", Size: 2048, ContentType: "video/mp4", Visibility: domain.VisibilityPrivate, OwnerID: "owner-1"},
		{ID: "img-1", Path: "avatars/owner-1.png", Size: 2048, ContentType: "image/png", Visibility: domain.VisibilityPrivate, Class: domain.ClassProfileImage, OwnerID: "owner-1"},
	} {
		store.Add(res)
		testutil.WriteBlob(t, root, res.Path, payload)
	}

	validator := tokenauth.NewValidator(tokenauth.NewJWKSClient(jwksSrv.URL, 1*time.Minute))
	delivery := media.NewHandler(media.Deps{
		Identity: validator,
		Store:    store,
		Blobs:    fsblob.New(root),
	})

	shutdown, err := telemetry.Setup(context.Background(), "mediagate-test")
	if err != nil {
		t.Fatalf("telemetry setup: %v", err)
	}
	t.Cleanup(func() { shutdown(context.Background()) })

	now := time.Now()
	rl := inmem.NewRateLimiter(100, burst, func() time.Time { return now })
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	mux := http.NewServeMux()
	mux.Handle("GET /media/{path...}", delivery)
	mux.Handle("GET /metrics", telemetry.MetricsHandler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	handler := middleware.Chain(
		mux,
		middleware.RequestID,
		middleware.Logging(logger),
		middleware.Recovery,
		middleware.RateLimit(rl, nil),
	)

	addr := freeAddr(t)
	srv := server.New(addr, handler)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() {
		if err := srv.Run(ctx); err != nil {
			t.Logf("server error: %v", err)
		}
	}()

	baseURL := "http://" + addr
	waitForReady(t, baseURL+"/healthz")

	return &mediaStack{baseURL: baseURL, store: store, kid: kid, priv: priv, payload: payload}
}

func (s *mediaStack) token(t *testing.T, p domain.Principal) string {
	t.Helper()
	return testutil.IssueTestToken(t, s.kid, s.priv, p, 15*time.Minute)
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("finding free port: %v", err)
	}
	addr := l.Addr().String()
	l.Close()
	return addr
}

func waitForReady(t *testing.T, url string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("server did not become ready at %s", url)
}

func TestDeliveryFlow(t *testing.T) {
	stack := startStack(t, 200)

	member := domain.Principal{ID: "member-7", Groups: []string{"members"}, Active: true}
	owner := domain.Principal{ID: "owner-1", Groups: []string{"members"}, Active: true}

	t.Run("anonymous public full content", func(t *testing.T) {
		resp, err := http.Get(stack.baseURL + "/media/videos/pub.mp4")
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		if got := resp.Header.Get("Accept-Ranges"); got != "bytes" {
			t.Errorf("Accept-Ranges = %q, want %q", got, "bytes")
		}
		if got := resp.Header.Get("Content-Type"); got != "video/mp4" {
			t.Errorf("Content-Type = %q, want video/mp4", got)
		}
		body, _ := io.ReadAll(resp.Body)
		if !bytes.Equal(body, stack.payload) {
			t.Errorf("body mismatch: got %d bytes", len(body))
		}
	})

	t.Run("ranged request returns 206 with exact slice", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, stack.baseURL+"/media/videos/pub.mp4", nil)
		req.Header.Set("Range", "bytes=100-299")

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusPartialContent {
			t.Fatalf("expected 206, got %d", resp.StatusCode)
		}
		if got := resp.Header.Get("Content-Range"); got != "bytes 100-299/2048" {
			t.Errorf("Content-Range = %q", got)
		}
		body, _ := io.ReadAll(resp.Body)
		if !bytes.Equal(body, stack.payload[100:300]) {
			t.Errorf("range body mismatch: got %d bytes", len(body))
		}
	})

	t.Run("suffix range serves the tail", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, stack.baseURL+"/media/videos/pub.mp4", nil)
		req.Header.Set("Range", "bytes=-100")

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusPartialContent {
			t.Fatalf("expected 206, got %d", resp.StatusCode)
		}
		if got := resp.Header.Get("Content-Range"); got != "bytes 1948-2047/2048" {
			t.Errorf("Content-Range = %q", got)
		}
	})

	t.Run("unsatisfiable range returns 416 with total size", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, stack.baseURL+"/media/videos/pub.mp4", nil)
		req.Header.Set("Range", "bytes=5000-")

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusRequestedRangeNotSatisfiable {
			t.Fatalf("expected 416, got %d", resp.StatusCode)
		}
		if got := resp.Header.Get("Content-Range"); got != "bytes */2048" {
			t.Errorf("Content-Range = %q", got)
		}
	})

	t.Run("malformed range falls back to full content", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, stack.baseURL+"/media/videos/pub.mp4", nil)
		req.Header.Set("Range", "bytes=0-99,200-299")

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		body, _ := io.ReadAll(resp.Body)
		if len(body) != 2048 {
			t.Errorf("expected full 2048 bytes, got %d", len(body))
		}
	})

	t.Run("anonymous members-tier request returns 403", func(t *testing.T) {
		resp, err := http.Get(stack.baseURL + "/media/videos/members.mp4")
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", resp.StatusCode)
		}
		var errResp domain.ErrorResponse
		json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Message != "access denied" {
			t.Errorf("denial body = %q, want generic message", errResp.Message)
		}
	})

	t.Run("member token via header unlocks members tier", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, stack.baseURL+"/media/videos/members.mp4", nil)
		req.Header.Set("Authorization", "Bearer "+stack.token(t, member))

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
	})

	t.Run("member token via cookie unlocks members tier", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, stack.baseURL+"/media/videos/members.mp4", nil)
		req.AddCookie(&http.Cookie{Name: media.AccessTokenCookie, Value: stack.token(t, member)})

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
	})

	t.Run("header credential wins over cookie", func(t *testing.T) {
		// Valid cookie plus garbage header: the header is the resolved
		// credential, so the request degrades to anonymous and is denied.
		req, _ := http.NewRequest(http.MethodGet, stack.baseURL+"/media/videos/members.mp4", nil)
		req.Header.Set("Authorization", "Bearer not-a-token")
		req.AddCookie(&http.Cookie{Name: media.AccessTokenCookie, Value: stack.token(t, member)})

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", resp.StatusCode)
		}
	})

	t.Run("private resource owner only", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, stack.baseURL+"/media/videos/private.mp4", nil)
		req.Header.Set("Authorization", "Bearer "+stack.token(t, owner))

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("owner: expected 200, got %d", resp.StatusCode)
		}

		req, _ = http.NewRequest(http.MethodGet, stack.baseURL+"/media/videos/private.mp4", nil)
		req.Header.Set("Authorization", "Bearer "+stack.token(t, member))

		resp, err = http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("non-owner: expected 403, got %d", resp.StatusCode)
		}
	})

	t.Run("privileged caller cannot read private resources", func(t *testing.T) {
		staff := domain.Principal{ID: "staff-1", Groups: []string{"staff"}, Privileged: true, Active: true}
		req, _ := http.NewRequest(http.MethodGet, stack.baseURL+"/media/videos/private.mp4", nil)
		req.Header.Set("Authorization", "Bearer "+stack.token(t, staff))

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", resp.StatusCode)
		}
	})

	t.Run("profile image is public despite private tier", func(t *testing.T) {
		resp, err := http.Get(stack.baseURL + "/media/avatars/owner-1.png")
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
	})

	t.Run("expired token degrades to anonymous", func(t *testing.T) {
		expired := testutil.IssueTestToken(t, stack.kid, stack.priv, member, -1*time.Minute)
		req, _ := http.NewRequest(http.MethodGet, stack.baseURL+"/media/videos/members.mp4", nil)
		req.Header.Set("Authorization", "Bearer "+expired)

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", resp.StatusCode)
		}
	})

	t.Run("unknown path returns 404", func(t *testing.T) {
		resp, err := http.Get(stack.baseURL + "/media/videos/nope.mp4")
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", resp.StatusCode)
		}
	})

	t.Run("soft-deleted resource returns 404", func(t *testing.T) {
		stack.store.Add(domain.Resource{ID: "gone-1", Path: "videos/gone.mp4", Size: 2048, Visibility: domain.VisibilityPublic})
		stack.store.SoftDelete("gone-1")

		resp, err := http.Get(stack.baseURL + "/media/videos/gone.mp4")
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", resp.StatusCode)
		}
	})

	t.Run("views are recorded per delivery", func(t *testing.T) {
		before := stack.store.Views("pub-1")
		resp, err := http.Get(stack.baseURL + "/media/videos/pub.mp4")
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if got := stack.store.Views("pub-1"); got != before+1 {
			t.Errorf("views = %d, want %d", got, before+1)
		}
	})

	t.Run("request ID propagated", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, stack.baseURL+"/media/videos/pub.mp4", nil)
		req.Header.Set("X-Request-ID", "custom-req-id")

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		resp.Body.Close()

		if got := resp.Header.Get("X-Request-ID"); got != "custom-req-id" {
			t.Errorf("X-Request-ID = %q", got)
		}
	})

	t.Run("metrics endpoint serves prometheus text", func(t *testing.T) {
		resp, err := http.Get(stack.baseURL + "/metrics")
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		body, _ := io.ReadAll(resp.Body)
		if !strings.Contains(string(body), "# ") {
			t.Error("expected prometheus exposition output")
		}
	})
}

func TestDeliveryRateLimiting(t *testing.T) {
	stack := startStack(t, 5)

	var lastStatus int
	for i := range 20 {
		resp, err := http.Get(stack.baseURL + "/media/videos/pub.mp4")
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		lastStatus = resp.StatusCode

		if resp.StatusCode == http.StatusTooManyRequests {
			break
		}
	}
	if lastStatus != http.StatusTooManyRequests {
		t.Fatalf("expected a 429 after burst exhaustion, last status: %d", lastStatus)
	}

	resp, err := http.Get(stack.baseURL + "/media/videos/pub.mp4")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}
