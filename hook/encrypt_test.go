package hook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"golang.org/x/crypto/openpgp"
	"golang.org/x/crypto/openpgp/armor"
)

func armoredTestKey(t *testing.T) string {
	t.Helper()
	entity, err := openpgp.NewEntity("Export Test", "", "export@example.com", nil)
	if err != nil {
		t.Fatalf("NewEntity: %v", err)
	}
	var pub bytes.Buffer
	aw, err := armor.Encode(&pub, openpgp.PublicKeyType, nil)
	if err != nil {
		t.Fatalf("armor.Encode: %v", err)
	}
	if err := entity.Serialize(aw); err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	aw.Close()
	return pub.String()
}

func TestEncryptHandlerEndToEnd(t *testing.T) {
	var (
		mu           sync.Mutex
		uploadedName string
		uploaded     []byte
		relationKeys []string
	)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/document_relations", func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Query().Get("key")
		mu.Lock()
		relationKeys = append(relationKeys, key)
		mu.Unlock()
		if key == "source-pdf" {
			fmt.Fprintf(w, `{"results":[{"id":3,"url":"http://%s/api/v1/document_relations/3","documents":["http://%s/api/v1/documents/55"]}],"pagination":{"next":null}}`, r.Host, r.Host)
			return
		}
		fmt.Fprint(w, `{"results":[],"pagination":{"next":null}}`)
	})
	mux.HandleFunc("GET /api/v1/documents/55/content", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("plain document body"))
	})
	mux.HandleFunc("POST /api/v1/documents", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		file, header, err := r.FormFile("content")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(file)
		mu.Lock()
		uploaded = data
		uploadedName = header.Filename
		mu.Unlock()
		fmt.Fprintf(w, `{"id":56,"url":"http://%s/api/v1/documents/56"}`, r.Host)
	})
	mux.HandleFunc("POST /api/v1/document_relations", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"id":4,"url":"http://%s/api/v1/document_relations/4"}`, r.Host)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	secrets, _ := json.Marshal(map[string]string{"gpg_public_key": armoredTestKey(t)})
	h := NewEncrypt(nil)
	p := &Payload{
		Event:    "annotation_status",
		BaseURL:  srv.URL,
		Token:    "secret",
		Settings: json.RawMessage(`{"source_document_key":"source-pdf","target_document_key":"encrypted-pdf"}`),
		Secrets:  secrets,
		Annotation: Annotation{
			ID:  42,
			URL: srv.URL + "/api/v1/annotations/42",
		},
	}

	resp, err := h.Handle(context.Background(), p)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(resp.Messages) != 1 || resp.Messages[0].Type != "info" {
		t.Fatalf("messages = %+v", resp.Messages)
	}

	mu.Lock()
	defer mu.Unlock()
	if uploadedName != "55_encrypted.gpg" {
		t.Fatalf("uploaded filename = %q, want 55_encrypted.gpg", uploadedName)
	}
	if !strings.Contains(string(uploaded), "BEGIN PGP MESSAGE") {
		t.Fatal("uploaded content is not an armored PGP message")
	}
	foundTarget := false
	for _, key := range relationKeys {
		if key == "encrypted-pdf" {
			foundTarget = true
		}
	}
	if !foundTarget {
		t.Fatalf("target relation never looked up, keys = %v", relationKeys)
	}
}

func TestEncryptHandlerMissingSourceRelation(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/document_relations", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results":[],"pagination":{"next":null}}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	secrets, _ := json.Marshal(map[string]string{"gpg_public_key": armoredTestKey(t)})
	h := NewEncrypt(nil)
	p := &Payload{
		BaseURL:    srv.URL,
		Token:      "secret",
		Settings:   json.RawMessage(`{"source_document_key":"source-pdf","target_document_key":"encrypted-pdf"}`),
		Secrets:    secrets,
		Annotation: Annotation{ID: 42},
	}

	_, err := h.Handle(context.Background(), p)
	if err == nil || !strings.Contains(err.Error(), "no document relation") {
		t.Fatalf("err = %v, want missing source relation", err)
	}
}

func TestEncryptHandlerMissingSecret(t *testing.T) {
	h := NewEncrypt(nil)
	p := &Payload{
		BaseURL:  "https://example.invalid",
		Token:    "secret",
		Settings: json.RawMessage(`{"source_document_key":"a","target_document_key":"b"}`),
		Secrets:  json.RawMessage(`{}`),
	}
	_, err := h.Handle(context.Background(), p)
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want ConfigError", err)
	}
}
