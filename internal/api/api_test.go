package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/starford/sm/internal/pkgservice"
	"github.com/starford/sm/internal/testutil"
)

// testEnv builds the canonical workspace, syncs it into a fresh index and
// returns a router over it. An empty token means auth is disabled.
func testEnv(t *testing.T, token string) (http.Handler, testutil.Workspace) {
	t.Helper()
	return testEnvWithSSE(t, token, nil)
}

func testEnvWithSSE(t *testing.T, token string, sseHandler http.Handler) (http.Handler, testutil.Workspace) {
	t.Helper()
	w := testutil.TestWorkspace(t)
	svc := pkgservice.NewService(testutil.TestStore(t, w), testutil.TestDB(t), nil)
	if err := svc.Sync(context.Background()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	return NewRouter(svc, token != "", token, sseHandler), w
}

func get(t *testing.T, router http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func resolveURL(id, module string) string {
	q := url.Values{}
	q.Set("from", testutil.CallerFile)
	q.Set("id", id)
	if module != "" {
		q.Set("module", module)
	}
	return "/resolve?" + q.Encode()
}

func TestResolveEndpoint(t *testing.T) {
	router, w := testEnv(t, "")

	resp := get(t, router, resolveURL("org.pinf.lib", "component"))
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.Code, resp.Body.String())
	}
	var res ResolveResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if res.From != w.Caller() {
		t.Errorf("from = %q, want %q", res.From, w.Caller())
	}
	if res.Found.Package != "../../../../../node_modules/org.pinf.lib" {
		t.Errorf("package = %q", res.Found.Package)
	}
	if res.Found.Module != "lib/component.js" {
		t.Errorf("module = %q", res.Found.Module)
	}
}

func TestResolveEndpoint_OmitsEmptyModule(t *testing.T) {
	router, _ := testEnv(t, "")

	resp := get(t, router, resolveURL("github.com~pinf~org.pinf.lib", ""))
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.Code, resp.Body.String())
	}
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		t.Fatal(err)
	}
	var found map[string]any
	if err := json.Unmarshal(raw["found"], &found); err != nil {
		t.Fatalf("decode found: %v", err)
	}
	if _, ok := found["module"]; ok {
		t.Errorf("found.module should be omitted: %v", found)
	}
	if found["package"] != "../../../../github.com~pinf~org.pinf.lib~0/source/installed/master" {
		t.Errorf("package = %v", found["package"])
	}
	for _, key := range []string{"from", "origin"} {
		var v string
		if err := json.Unmarshal(raw[key], &v); err != nil || v == "" {
			t.Errorf("%s = %s, want a non-empty string", key, raw[key])
		}
	}
}

func TestResolveEndpoint_Errors(t *testing.T) {
	router, _ := testEnv(t, "")

	cases := []struct {
		name   string
		target string
		status int
	}{
		{"missing params", "/resolve", http.StatusBadRequest},
		{"invalid identifier", resolveURL("not a valid id///", ""), http.StatusBadRequest},
		{"invalid module", resolveURL("org.pinf.lib", "../x"), http.StatusBadRequest},
		{"outside workspace", "/resolve?from=%2Fetc%2Fpasswd&id=org.pinf.lib", http.StatusBadRequest},
		{"not found", resolveURL("org.nonexistent.pkg", ""), http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := get(t, router, tc.target)
			if resp.Code != tc.status {
				t.Errorf("status = %d, want %d (body %s)", resp.Code, tc.status, resp.Body.String())
			}
		})
	}
}

func TestResolveEndpoint_NotFoundListsProbed(t *testing.T) {
	router, _ := testEnv(t, "")

	resp := get(t, router, resolveURL("org.nonexistent.pkg", ""))
	var body NotFoundResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Probed) == 0 {
		t.Error("expected probed roots in the 404 body")
	}
}

func TestListPackages(t *testing.T) {
	router, _ := testEnv(t, "")

	resp := get(t, router, "/packages?area=flat")
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}
	var body PackageListResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Total != 1 || len(body.Packages) != 1 || body.Packages[0].Path != testutil.FlatPackage {
		t.Errorf("body = %+v", body)
	}

	resp = get(t, router, "/packages?limit=1")
	body = PackageListResponse{}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if body.Total != 3 || len(body.Packages) != 1 {
		t.Errorf("paged body = %+v", body)
	}
}

func TestListPackages_ByKey(t *testing.T) {
	router, _ := testEnv(t, "")

	resp := get(t, router, "/packages?key=github.com~pinf~org.pinf.lib")
	var body PackageListResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Total != 1 || body.Packages[0].Path != testutil.DepsPackage {
		t.Errorf("body = %+v", body)
	}
}

func TestListPackages_InvalidArea(t *testing.T) {
	router, _ := testEnv(t, "")
	if resp := get(t, router, "/packages?area=vendor"); resp.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.Code)
	}
}

func TestGetPackage(t *testing.T) {
	router, _ := testEnv(t, "")

	resp := get(t, router, "/packages/"+testutil.FlatPackage)
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.Code, resp.Body.String())
	}
	var d PackageDetail
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		t.Fatal(err)
	}
	if d.Name != "org.pinf.lib" || d.Version != "0.1.4" {
		t.Errorf("detail = %+v", d)
	}

	if resp := get(t, router, "/packages/node_modules%2Forg.pinf.lib"); resp.Code != http.StatusOK {
		t.Errorf("encoded path status = %d", resp.Code)
	}
	if resp := get(t, router, "/packages/node_modules/nope"); resp.Code != http.StatusNotFound {
		t.Errorf("missing package = %d, want 404", resp.Code)
	}
}

func TestGetDescriptor(t *testing.T) {
	router, _ := testEnv(t, "")

	resp := get(t, router, "/descriptor/"+testutil.DepsPackage)
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.Code, resp.Body.String())
	}
	var d Descriptor
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		t.Fatal(err)
	}
	if d.Version != "0.1.4" {
		t.Errorf("descriptor = %+v", d)
	}
	if resp := get(t, router, "/descriptor/node_modules/nope"); resp.Code != http.StatusNotFound {
		t.Errorf("missing descriptor = %d, want 404", resp.Code)
	}
}

func TestSyncEndpoint(t *testing.T) {
	router, w := testEnv(t, "")
	w.WriteFile(t, "node_modules/org.pinf.new/package.json", `{"name": "org.pinf.new", "version": "1.0.0"}`)

	req := httptest.NewRequest(http.MethodPost, "/sync", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("sync status = %d", rec.Code)
	}
	if resp := get(t, router, "/packages/node_modules/org.pinf.new"); resp.Code != http.StatusOK {
		t.Errorf("new install not visible after sync: %d", resp.Code)
	}
}

func TestSearchEndpoint(t *testing.T) {
	router, _ := testEnv(t, "")

	resp := get(t, router, "/search?q=pinf")
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}
	var body SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Results) == 0 {
		t.Error("expected search hits for pinf")
	}
}

func TestSearchMissingQuery(t *testing.T) {
	router, _ := testEnv(t, "")
	if resp := get(t, router, "/search"); resp.Code != http.StatusBadRequest {
		t.Errorf("search no query = %d, want 400", resp.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	router, _ := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/packages", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed list = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	router, _ := testEnv(t, "secret123")
	if resp := get(t, router, "/packages"); resp.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", resp.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	router, _ := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/packages", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	router, _ := testEnv(t, "")
	if resp := get(t, router, "/packages"); resp.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", resp.Code)
	}
}

// sseStub writes headers and blocks until the request context is done.
var sseStub = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	router, _ := testEnvWithSSE(t, "secret", sseStub)
	if resp := get(t, router, "/events"); resp.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", resp.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	router, _ := testEnvWithSSE(t, "tok", sseStub)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE with valid token = %d, want 200", w.Code)
	}
}
