package hook

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wudi/docexport/fields"
	"github.com/wudi/docexport/observability"
	"github.com/wudi/docexport/qrbill"
	"github.com/wudi/docexport/scripting"
)

// QRBillSettings maps parsed bill fields onto datapoints.
type QRBillSettings struct {
	// QRCodeDatapoint is the schema id holding the raw QR payload.
	QRCodeDatapoint string `json:"qr_code_datapoint"`
	// ExtractedDataMapping maps bill field names (creditor_iban, amount,
	// ...) to target datapoint schema ids. Unmapped fields are skipped.
	ExtractedDataMapping map[string]string `json:"extracted_data_mapping"`
	// Transforms optionally rewrites a bill field's value with a JS
	// expression before it is written, keyed by bill field name.
	Transforms map[string]string `json:"transforms"`
}

// QRBill parses the Swiss QR payload from a configured datapoint and writes
// the extracted values to mapped datapoints. A malformed payload blocks
// automation on the QR datapoint instead of failing the hook.
type QRBill struct {
	log observability.Logger
}

func NewQRBill(log observability.Logger) *QRBill {
	if log == nil {
		log = observability.NopLogger{}
	}
	return &QRBill{log: log}
}

func (q *QRBill) Name() string { return "swiss-qr-bill" }

func (q *QRBill) Handle(ctx context.Context, p *Payload) (*Response, error) {
	var settings QRBillSettings
	if err := decodeSettings(p, &settings); err != nil {
		return nil, err
	}
	if settings.QRCodeDatapoint == "" {
		return nil, configErrorf("missing qr_code_datapoint")
	}

	content, err := q.resolveContent(ctx, p)
	if err != nil {
		return nil, err
	}
	tree, err := fields.ParseTree(content)
	if err != nil {
		return nil, err
	}

	qrField, ok := tree.Lookup(settings.QRCodeDatapoint)
	if !ok || qrField.Content == nil || qrField.Content.Value == "" {
		q.log.Info("no QR payload present",
			observability.String("datapoint", settings.QRCodeDatapoint))
		return emptyResponse(), nil
	}

	bill, err := qrbill.Parse(qrField.Content.Value)
	if err != nil {
		return &Response{
			Messages: []Message{},
			AutomationBlockers: []AutomationBlocker{{
				ID:      qrField.ID,
				Content: fmt.Sprintf("Failed to parse Swiss QR code data (%v)", err),
			}},
		}, nil
	}

	var engine *scripting.Engine
	if len(settings.Transforms) > 0 {
		engine = scripting.NewEngine()
	}

	billFields := bill.Fields()
	for fieldName, schemaID := range settings.ExtractedDataMapping {
		if schemaID == "" {
			continue
		}
		value, known := billFields[fieldName]
		if !known {
			return nil, configErrorf("unknown bill field %q in extracted_data_mapping", fieldName)
		}
		if script, ok := settings.Transforms[fieldName]; ok {
			value, err = engine.Transform(ctx, script, value)
			if err != nil {
				return nil, fmt.Errorf("transform %s: %w", fieldName, err)
			}
		}
		if err := tree.SetValue(schemaID, value); err != nil {
			return nil, err
		}
	}

	resp := emptyResponse()
	resp.Operations = tree.Operations()
	return resp, nil
}

// resolveContent returns the annotation's datapoint tree. Events other than
// annotation_content deliver a content URL instead of the inline tree, so
// the tree is fetched through the API.
func (q *QRBill) resolveContent(ctx context.Context, p *Payload) (json.RawMessage, error) {
	if p.Event == "annotation_content" {
		return p.Annotation.Content, nil
	}

	var contentURL string
	if err := json.Unmarshal(p.Annotation.Content, &contentURL); err != nil {
		return nil, fmt.Errorf("annotation content for event %q is neither inline nor a URL: %w", p.Event, err)
	}
	client, err := newAPIClient(p, q.log)
	if err != nil {
		return nil, err
	}
	var fetched struct {
		Content json.RawMessage `json:"content"`
	}
	if err := client.GetJSON(ctx, contentURL, nil, &fetched); err != nil {
		return nil, fmt.Errorf("fetch annotation content: %w", err)
	}
	return fetched.Content, nil
}
