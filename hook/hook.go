// Package hook implements the webhook extensions: the request/response
// envelope, handler dispatch, and the individual extension handlers built on
// the export pipeline.
package hook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/wudi/docexport/api"
	"github.com/wudi/docexport/fields"
	"github.com/wudi/docexport/observability"
)

// Payload is the hook invocation envelope.
type Payload struct {
	Event      string          `json:"event"`
	Action     string          `json:"action"`
	BaseURL    string          `json:"base_url"`
	Token      string          `json:"rossum_authorization_token"`
	Settings   json.RawMessage `json:"settings"`
	Secrets    json.RawMessage `json:"secrets"`
	Annotation Annotation      `json:"annotation"`
}

// Annotation is the subject of the hook invocation. Content is either the
// inline datapoint tree (annotation_content events) or a URL pointing at it.
type Annotation struct {
	ID      int64           `json:"id"`
	URL     string          `json:"url"`
	Status  string          `json:"status"`
	Pages   []string        `json:"pages"`
	Content json.RawMessage `json:"content"`
}

// Message is one user-visible notification in the hook response.
type Message struct {
	ID      int64  `json:"id,omitempty"`
	Type    string `json:"type"`
	Content string `json:"content"`
}

// AutomationBlocker stops automation on the named datapoint with a reason.
type AutomationBlocker struct {
	ID      int64  `json:"id"`
	Content string `json:"content"`
}

// Response is the hook result envelope. Messages is always present, even
// when empty.
type Response struct {
	Messages           []Message           `json:"messages"`
	AutomationBlockers []AutomationBlocker `json:"automation_blockers,omitempty"`
	Operations         []fields.Operation  `json:"operations,omitempty"`
}

func emptyResponse() *Response {
	return &Response{Messages: []Message{}}
}

// ConfigError marks invalid or missing extension configuration. It is raised
// before any network call is made.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "configuration error: " + e.Reason
}

func configErrorf(format string, args ...interface{}) error {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// Handler is one hook extension.
type Handler interface {
	Name() string
	Handle(ctx context.Context, p *Payload) (*Response, error)
}

// newAPIClient builds the store client for one invocation. The token arrives
// with the payload, so clients are per-request.
func newAPIClient(p *Payload, log observability.Logger) (*api.Client, error) {
	if p.Token == "" {
		return nil, configErrorf("missing authorization token")
	}
	if p.BaseURL == "" {
		return nil, configErrorf("missing base URL")
	}
	return api.NewClient(p.BaseURL, p.Token, api.WithLogger(log))
}

// decodeSettings unmarshals the payload settings into the handler's typed
// settings struct.
func decodeSettings(p *Payload, out interface{}) error {
	if len(p.Settings) == 0 {
		return configErrorf("missing settings")
	}
	if err := json.Unmarshal(p.Settings, out); err != nil {
		return configErrorf("invalid settings: %v", err)
	}
	return nil
}

// decodeSecrets unmarshals the payload secrets into the handler's typed
// secrets struct.
func decodeSecrets(p *Payload, out interface{}) error {
	if len(p.Secrets) == 0 {
		return configErrorf("missing secrets")
	}
	if err := json.Unmarshal(p.Secrets, out); err != nil {
		return configErrorf("invalid secrets: %v", err)
	}
	return nil
}

// Registry routes hook requests to named handlers.
type Registry struct {
	handlers map[string]Handler
	log      observability.Logger
}

func NewRegistry(log observability.Logger, handlers ...Handler) *Registry {
	if log == nil {
		log = observability.NopLogger{}
	}
	r := &Registry{handlers: map[string]Handler{}, log: log}
	for _, h := range handlers {
		r.handlers[h.Name()] = h
	}
	return r
}

// HTTPHandler serves POST /hooks/{name}. Configuration errors map to 400,
// everything else to 500; successful handlers return the response envelope
// as JSON.
func (r *Registry) HTTPHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /hooks/{name}", func(w http.ResponseWriter, req *http.Request) {
		name := req.PathValue("name")
		handler, ok := r.handlers[name]
		if !ok {
			http.Error(w, fmt.Sprintf("unknown hook %q", name), http.StatusNotFound)
			return
		}

		var payload Payload
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			http.Error(w, "invalid payload: "+err.Error(), http.StatusBadRequest)
			return
		}

		log := r.log.With(
			observability.String("hook", name),
			observability.Int64("annotation", payload.Annotation.ID))
		log.Info("hook invoked",
			observability.String("event", payload.Event),
			observability.String("action", payload.Action))

		resp, err := handler.Handle(req.Context(), &payload)
		if err != nil {
			log.Error("hook failed", observability.Error("error", err))
			var ce *ConfigError
			if errors.As(err, &ce) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.Error("encode hook response", observability.Error("error", err))
		}
	})
	return mux
}
