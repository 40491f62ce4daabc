package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL, "secret", WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c, srv
}

func TestNewClientRequiresCredentials(t *testing.T) {
	if _, err := NewClient("", "tok"); err == nil {
		t.Fatal("expected error for missing base URL")
	}
	if _, err := NewClient("https://example.test", ""); err == nil {
		t.Fatal("expected error for missing token")
	}
}

func TestResolveEndpoint(t *testing.T) {
	c, err := NewClient("https://elis.example.test/", "tok")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if got := c.resolve("documents"); got != "https://elis.example.test/api/v1/documents" {
		t.Fatalf("unexpected relative resolution: %s", got)
	}
	abs := "https://elis.example.test/api/v1/pages/7"
	if got := c.resolve(abs); got != abs {
		t.Fatalf("absolute URL must pass through, got %s", got)
	}
}

func TestGetJSONSendsBearerToken(t *testing.T) {
	var gotAuth string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		io.WriteString(w, `{"width":1240,"height":1754}`)
	}))

	var out struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	}
	if err := c.GetJSON(context.Background(), "pages/1", nil, &out); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("expected bearer header, got %q", gotAuth)
	}
	if out.Width != 1240 || out.Height != 1754 {
		t.Fatalf("unexpected decode: %+v", out)
	}
}

func TestStatusErrorAborts(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))

	_, err := c.GetBinary(context.Background(), "pages/1/content")
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", se.StatusCode)
	}
	if !IsStatus(err, http.StatusForbidden) {
		t.Fatal("IsStatus should match the wrapped code")
	}
}

func TestPostMultipartCarriesFile(t *testing.T) {
	var filename, contentType string
	var body []byte
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
		}
		f, fh, err := r.FormFile("content")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			return
		}
		defer f.Close()
		filename = fh.Filename
		contentType = fh.Header.Get("Content-Type")
		body, _ = io.ReadAll(f)
		io.WriteString(w, `{"id":42,"url":"https://elis.example.test/api/v1/documents/42"}`)
	}))

	var out struct {
		ID  int64  `json:"id"`
		URL string `json:"url"`
	}
	err := c.PostMultipart(context.Background(), "documents", "content", "123.pdf", "application/pdf", []byte("%PDF-"), &out)
	if err != nil {
		t.Fatalf("PostMultipart: %v", err)
	}
	if filename != "123.pdf" || contentType != "application/pdf" {
		t.Fatalf("unexpected part metadata: %s %s", filename, contentType)
	}
	if string(body) != "%PDF-" {
		t.Fatalf("unexpected part body: %q", body)
	}
	if out.ID != 42 {
		t.Fatalf("unexpected decode: %+v", out)
	}
}

func TestPatchAndDelete(t *testing.T) {
	var methods []string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodPatch {
			b, _ := io.ReadAll(r.Body)
			if !strings.Contains(string(b), "documents") {
				t.Errorf("unexpected patch body: %s", b)
			}
		}
		io.WriteString(w, `{}`)
	}))

	ctx := context.Background()
	patch := map[string][]string{"documents": {"https://elis.example.test/api/v1/documents/9"}}
	if err := c.PatchJSON(ctx, "document_relations/5", patch, nil); err != nil {
		t.Fatalf("PatchJSON: %v", err)
	}
	if err := c.Delete(ctx, "documents/9"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	want := []string{"PATCH /api/v1/document_relations/5", "DELETE /api/v1/documents/9"}
	for i, m := range want {
		if methods[i] != m {
			t.Fatalf("expected %s, got %s", m, methods[i])
		}
	}
}

func TestQueryEncoding(t *testing.T) {
	var gotQuery url.Values
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		io.WriteString(w, `{}`)
	}))

	q := url.Values{"granularity": {"lines"}, "page_numbers": {"1,2,3"}}
	if err := c.GetJSON(context.Background(), "annotations/1/page_data", q, nil); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if gotQuery.Get("granularity") != "lines" || gotQuery.Get("page_numbers") != "1,2,3" {
		t.Fatalf("unexpected query: %v", gotQuery)
	}
}
