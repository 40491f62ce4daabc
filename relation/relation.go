// Package relation persists a rendered artifact and reconciles the keyed
// document relation that points at it. Reconciliation is create-or-replace:
// at most one relation exists per (key, annotation) pair, and after a
// successful run its document list contains exactly the new artifact.
package relation

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/wudi/docexport/api"
	"github.com/wudi/docexport/observability"
)

// Record is a document relation as the store returns it.
type Record struct {
	ID         int64    `json:"id"`
	URL        string   `json:"url"`
	Type       string   `json:"type"`
	Key        string   `json:"key"`
	Annotation string   `json:"annotation"`
	Documents  []string `json:"documents"`
}

// AnnotationRef identifies the annotation a relation belongs to.
type AnnotationRef struct {
	ID  int64
	URL string
}

// DocumentRef is the persisted identity of an uploaded artifact.
type DocumentRef struct {
	ID  int64  `json:"id"`
	URL string `json:"url"`
}

// Artifact is a rendered document ready for upload.
type Artifact struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Reconciler uploads artifacts and drives the relation state machine.
type Reconciler struct {
	client *api.Client
	log    observability.Logger
}

func NewReconciler(client *api.Client, log observability.Logger) *Reconciler {
	if log == nil {
		log = observability.NopLogger{}
	}
	return &Reconciler{client: client, log: log}
}

// Upload stores the artifact and returns its persisted identity. A response
// without a URL violates the upload contract and is fatal; nothing downstream
// can reference the document.
func (r *Reconciler) Upload(ctx context.Context, a Artifact) (DocumentRef, error) {
	start := time.Now()
	var ref DocumentRef
	err := r.client.PostMultipart(ctx, "documents", "content", a.Filename, a.ContentType, a.Data, &ref)
	if err != nil {
		return DocumentRef{}, err
	}
	if ref.URL == "" {
		return DocumentRef{}, fmt.Errorf("relation: upload response for %q carries no document URL", a.Filename)
	}
	r.log.Info("uploaded artifact",
		observability.String("filename", a.Filename),
		observability.String("document", ref.URL),
		observability.Int(observability.MetricArtifactBytes, len(a.Data)),
		observability.Float64(observability.MetricUploadTime, time.Since(start).Seconds()))
	return ref, nil
}

// Reconcile points the (key, annotation) relation at the uploaded document.
// With no existing relation it creates one of type "export". With an existing
// relation it updates the document list first and only then deletes the
// documents the relation previously referenced, so the relation never points
// at a deleted document. Stale-document deletion is best effort; failures are
// logged and do not fail the reconciliation.
func (r *Reconciler) Reconcile(ctx context.Context, key string, annotation AnnotationRef, doc DocumentRef) (Record, error) {
	start := time.Now()

	query := url.Values{
		"key":        {key},
		"annotation": {fmt.Sprint(annotation.ID)},
	}
	existing, err := api.FetchAllInto[Record](ctx, r.client, "document_relations", query)
	if err != nil {
		return Record{}, err
	}

	var rec Record
	if len(existing) == 0 {
		body := map[string]interface{}{
			"type":       "export",
			"key":        key,
			"annotation": annotation.URL,
			"documents":  []string{doc.URL},
		}
		if err := r.client.PostJSON(ctx, "document_relations", body, &rec); err != nil {
			return Record{}, err
		}
		r.log.Info("created document relation",
			observability.String("key", key),
			observability.String("relation", rec.URL),
			observability.Float64(observability.MetricReconcileTime, time.Since(start).Seconds()))
		return rec, nil
	}

	// The store should never hold more than one match; trust the first.
	current := existing[0]
	stale := current.Documents

	body := map[string]interface{}{"documents": []string{doc.URL}}
	if err := r.client.PatchJSON(ctx, current.URL, body, &rec); err != nil {
		return Record{}, err
	}

	for _, staleURL := range stale {
		if staleURL == doc.URL {
			continue
		}
		if err := r.client.Delete(ctx, staleURL); err != nil {
			r.log.Warn("failed to delete stale document",
				observability.String("document", staleURL),
				observability.Error("error", err))
		}
	}

	r.log.Info("updated document relation",
		observability.String("key", key),
		observability.String("relation", rec.URL),
		observability.Int("stale_documents", len(stale)),
		observability.Float64(observability.MetricReconcileTime, time.Since(start).Seconds()))
	return rec, nil
}
