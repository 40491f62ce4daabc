package hook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type stubHandler struct {
	name string
	fn   func(ctx context.Context, p *Payload) (*Response, error)
}

func (s *stubHandler) Name() string { return s.name }
func (s *stubHandler) Handle(ctx context.Context, p *Payload) (*Response, error) {
	return s.fn(ctx, p)
}

func postHook(t *testing.T, h http.Handler, name, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/hooks/"+name, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRegistryDispatch(t *testing.T) {
	reg := NewRegistry(nil, &stubHandler{
		name: "echo",
		fn: func(ctx context.Context, p *Payload) (*Response, error) {
			return &Response{Messages: []Message{{Type: "info", Content: p.Event}}}, nil
		},
	})
	h := reg.HTTPHandler()

	rec := postHook(t, h, "echo", `{"event":"annotation_content"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Messages) != 1 || resp.Messages[0].Content != "annotation_content" {
		t.Fatalf("response = %+v", resp)
	}
}

func TestRegistryUnknownHook(t *testing.T) {
	reg := NewRegistry(nil)
	rec := postHook(t, reg.HTTPHandler(), "nope", `{}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestRegistryBadPayload(t *testing.T) {
	reg := NewRegistry(nil, &stubHandler{name: "echo", fn: func(context.Context, *Payload) (*Response, error) {
		return emptyResponse(), nil
	}})
	rec := postHook(t, reg.HTTPHandler(), "echo", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestRegistryErrorMapping(t *testing.T) {
	reg := NewRegistry(nil,
		&stubHandler{name: "badcfg", fn: func(context.Context, *Payload) (*Response, error) {
			return nil, configErrorf("missing key")
		}},
		&stubHandler{name: "boom", fn: func(context.Context, *Payload) (*Response, error) {
			return nil, context.DeadlineExceeded
		}},
	)
	h := reg.HTTPHandler()

	if rec := postHook(t, h, "badcfg", `{}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("config error status = %d, want 400", rec.Code)
	}
	if rec := postHook(t, h, "boom", `{}`); rec.Code != http.StatusInternalServerError {
		t.Fatalf("internal error status = %d, want 500", rec.Code)
	}
}

func TestResponseAlwaysCarriesMessages(t *testing.T) {
	data, err := json.Marshal(emptyResponse())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if got := string(data); got != `{"messages":[]}` {
		t.Fatalf("empty response = %s", got)
	}
}
