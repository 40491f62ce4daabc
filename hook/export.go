package hook

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/wudi/docexport/api"
	"github.com/wudi/docexport/assemble"
	"github.com/wudi/docexport/observability"
	"github.com/wudi/docexport/overlay"
	"github.com/wudi/docexport/relation"
)

// ExportSettings configures the searchable-PDF export extension.
type ExportSettings struct {
	ExportReferenceKey string `json:"export_reference_key"`
}

// Export renders the annotation (and its attachments) into one searchable
// PDF and records it under the configured relation key.
type Export struct {
	log     observability.Logger
	overlay overlay.Options
}

func NewExport(log observability.Logger) *Export {
	if log == nil {
		log = observability.NopLogger{}
	}
	return &Export{log: log}
}

func (e *Export) Name() string { return "searchable-pdf" }

// attachmentRelation is the store's annotation-to-annotation relation shape.
type attachmentRelation struct {
	ID          int64    `json:"id"`
	Annotations []string `json:"annotations"`
}

// annotationRef carries the fields needed to assemble a related annotation.
type annotationRef struct {
	ID    int64    `json:"id"`
	URL   string   `json:"url"`
	Pages []string `json:"pages"`
}

func (e *Export) Handle(ctx context.Context, p *Payload) (*Response, error) {
	if p.Event != "annotation_content" || (p.Action != "confirm" && p.Action != "export") {
		e.log.Info("skipping export hook",
			observability.String("event", p.Event),
			observability.String("action", p.Action))
		return emptyResponse(), nil
	}

	var settings ExportSettings
	if err := decodeSettings(p, &settings); err != nil {
		return nil, err
	}
	if settings.ExportReferenceKey == "" {
		return nil, configErrorf("missing export_reference_key")
	}

	client, err := newAPIClient(p, e.log)
	if err != nil {
		return nil, err
	}

	docs, err := e.gatherDocuments(ctx, client, p.Annotation)
	if err != nil {
		return nil, fmt.Errorf("gather annotations: %w", err)
	}

	assembler := assemble.NewAssembler(client, assemble.WithLogger(e.log))
	records, err := assembler.Assemble(ctx, docs)
	if err != nil {
		return nil, fmt.Errorf("assemble pages: %w", err)
	}

	renderStart := time.Now()
	renderer := overlay.NewRenderer(e.overlay, e.log)
	artifact, err := renderer.Render(records)
	if err != nil {
		return nil, fmt.Errorf("render overlay: %w", err)
	}
	if err := overlay.ValidateArtifact(artifact); err != nil {
		return nil, err
	}
	e.log.Info("rendered artifact",
		observability.Int(observability.MetricPageCount, len(records)),
		observability.Int(observability.MetricArtifactBytes, len(artifact)),
		observability.Float64(observability.MetricRenderTime, time.Since(renderStart).Seconds()))

	reconciler := relation.NewReconciler(client, e.log)
	ref, err := reconciler.Upload(ctx, relation.Artifact{
		Filename:    fmt.Sprintf("%d.pdf", p.Annotation.ID),
		ContentType: "application/pdf",
		Data:        artifact,
	})
	if err != nil {
		return nil, fmt.Errorf("upload artifact: %w", err)
	}

	annotation := relation.AnnotationRef{ID: p.Annotation.ID, URL: p.Annotation.URL}
	if _, err := reconciler.Reconcile(ctx, settings.ExportReferenceKey, annotation, ref); err != nil {
		return nil, fmt.Errorf("reconcile relation: %w", err)
	}

	return emptyResponse(), nil
}

// gatherDocuments lists the primary annotation first, then every annotation
// attached to it. The assembler suppresses duplicates by URL, so overlapping
// relations are harmless.
func (e *Export) gatherDocuments(ctx context.Context, client *api.Client, primary Annotation) ([]assemble.SourceDocument, error) {
	docs := []assemble.SourceDocument{{
		ID:    primary.ID,
		URL:   primary.URL,
		Pages: primary.Pages,
	}}

	query := url.Values{
		"parent": {fmt.Sprint(primary.ID)},
		"type":   {"attachment"},
	}
	relations, err := api.FetchAllInto[attachmentRelation](ctx, client, "relations", query)
	if err != nil {
		return nil, err
	}

	for _, rel := range relations {
		for _, annotationURL := range rel.Annotations {
			var ref annotationRef
			if err := client.GetJSON(ctx, annotationURL, nil, &ref); err != nil {
				return nil, err
			}
			e.log.Info("adding related annotation",
				observability.Int64("annotation", ref.ID),
				observability.Int64("relation", rel.ID))
			docs = append(docs, assemble.SourceDocument{
				ID:    ref.ID,
				URL:   ref.URL,
				Pages: ref.Pages,
			})
		}
	}
	return docs, nil
}
