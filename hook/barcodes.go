package hook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/wudi/docexport/fields"
	"github.com/wudi/docexport/observability"
)

// BarcodeSettings names the multivalue field barcode results land in.
type BarcodeSettings struct {
	BarcodesFieldName string `json:"barcodes_field_name"`
}

// Barcodes populates a multivalue field with every barcode recognized on the
// document when the annotation is initialized.
type Barcodes struct {
	log observability.Logger
}

func NewBarcodes(log observability.Logger) *Barcodes {
	if log == nil {
		log = observability.NopLogger{}
	}
	return &Barcodes{log: log}
}

func (b *Barcodes) Name() string { return "barcode-reader" }

type barcodePage struct {
	PageNumber int           `json:"page_number"`
	Items      []barcodeItem `json:"items"`
}

type barcodeItem struct {
	Text     string    `json:"text"`
	Type     string    `json:"type"`
	Position []float64 `json:"position"`
}

func (b *Barcodes) Handle(ctx context.Context, p *Payload) (*Response, error) {
	if p.Action != "initialize" {
		return emptyResponse(), nil
	}

	var settings BarcodeSettings
	if err := decodeSettings(p, &settings); err != nil {
		return nil, err
	}
	if settings.BarcodesFieldName == "" {
		return nil, configErrorf("missing barcodes_field_name")
	}

	tree, err := fields.ParseTree(p.Annotation.Content)
	if err != nil {
		return nil, err
	}
	if _, err := tree.RequireMultivalue(settings.BarcodesFieldName); err != nil {
		return nil, configErrorf("%v", err)
	}

	client, err := newAPIClient(p, b.log)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Results []barcodePage `json:"results"`
	}
	query := url.Values{"granularity": {"barcodes"}}
	if err := client.GetJSON(ctx, p.Annotation.URL+"/page_data", query, &resp); err != nil {
		return nil, fmt.Errorf("fetch barcode data: %w", err)
	}

	var items []fields.Item
	for _, page := range resp.Results {
		for _, item := range page.Items {
			value, err := json.Marshal(map[string]string{
				"text": item.Text,
				"type": item.Type,
			})
			if err != nil {
				return nil, fmt.Errorf("encode barcode value: %w", err)
			}
			items = append(items, fields.Item{
				Value:    string(value),
				Page:     page.PageNumber,
				Position: item.Position,
			})
		}
	}

	if err := tree.ReplaceMultivalue(settings.BarcodesFieldName, items); err != nil {
		return nil, err
	}
	b.log.Info("populated barcode field",
		observability.String("field", settings.BarcodesFieldName),
		observability.Int("barcodes", len(items)))

	out := emptyResponse()
	out.Operations = tree.Operations()
	return out, nil
}
