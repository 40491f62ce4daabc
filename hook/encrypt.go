package hook

import (
	"context"
	"fmt"
	"net/url"
	"path"

	"github.com/wudi/docexport/api"
	"github.com/wudi/docexport/encrypt"
	"github.com/wudi/docexport/observability"
	"github.com/wudi/docexport/relation"
)

// EncryptSettings names the source relation to encrypt and the target
// relation to record the encrypted copy under.
type EncryptSettings struct {
	SourceDocumentKey string `json:"source_document_key"`
	TargetDocumentKey string `json:"target_document_key"`
}

// EncryptSecrets carries the recipient's armored public key.
type EncryptSecrets struct {
	GPGPublicKey string `json:"gpg_public_key"`
}

// Encrypt re-exports the document referenced by the source relation as an
// OpenPGP-encrypted copy under the target relation key.
type Encrypt struct {
	log observability.Logger
}

func NewEncrypt(log observability.Logger) *Encrypt {
	if log == nil {
		log = observability.NopLogger{}
	}
	return &Encrypt{log: log}
}

func (e *Encrypt) Name() string { return "gpg-export" }

func (e *Encrypt) Handle(ctx context.Context, p *Payload) (*Response, error) {
	var settings EncryptSettings
	if err := decodeSettings(p, &settings); err != nil {
		return nil, err
	}
	if settings.SourceDocumentKey == "" || settings.TargetDocumentKey == "" {
		return nil, configErrorf("both source_document_key and target_document_key are required")
	}
	var secrets EncryptSecrets
	if err := decodeSecrets(p, &secrets); err != nil {
		return nil, err
	}
	if secrets.GPGPublicKey == "" {
		return nil, configErrorf("missing gpg_public_key secret")
	}

	client, err := newAPIClient(p, e.log)
	if err != nil {
		return nil, err
	}

	query := url.Values{
		"key":        {settings.SourceDocumentKey},
		"annotation": {fmt.Sprint(p.Annotation.ID)},
	}
	sources, err := api.FetchAllInto[relation.Record](ctx, client, "document_relations", query)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 || len(sources[0].Documents) == 0 {
		return nil, fmt.Errorf("no document relation with key %q for annotation %d",
			settings.SourceDocumentKey, p.Annotation.ID)
	}
	sourceURL := sources[0].Documents[0]

	content, err := client.GetBinary(ctx, sourceURL+"/content")
	if err != nil {
		return nil, fmt.Errorf("download source document: %w", err)
	}

	encrypted, err := encrypt.Encrypt(content, secrets.GPGPublicKey)
	if err != nil {
		return nil, err
	}

	reconciler := relation.NewReconciler(client, e.log)
	ref, err := reconciler.Upload(ctx, relation.Artifact{
		Filename:    path.Base(sourceURL) + "_encrypted.gpg",
		ContentType: "application/pgp-encrypted",
		Data:        encrypted,
	})
	if err != nil {
		return nil, fmt.Errorf("upload encrypted document: %w", err)
	}

	annotation := relation.AnnotationRef{ID: p.Annotation.ID, URL: p.Annotation.URL}
	if _, err := reconciler.Reconcile(ctx, settings.TargetDocumentKey, annotation, ref); err != nil {
		return nil, fmt.Errorf("reconcile relation: %w", err)
	}

	return &Response{Messages: []Message{{
		ID:      p.Annotation.ID,
		Type:    "info",
		Content: "Process completed successfully.",
	}}}, nil
}
