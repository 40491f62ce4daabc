// Package fields gives typed access to an annotation's datapoint tree.
// Lookups go through the schema id; mutations are recorded as JSON patch
// style operations for the hook response instead of touching the tree
// in place.
package fields

import (
	"encoding/json"
	"fmt"
)

// Content is a datapoint's extracted value with its page anchor.
type Content struct {
	Value    string    `json:"value"`
	Page     int       `json:"page,omitempty"`
	Position []float64 `json:"position,omitempty"`
}

// Datapoint is one node of the annotation content tree. Sections and
// multivalues carry children; leaf datapoints carry content.
type Datapoint struct {
	ID       int64       `json:"id"`
	SchemaID string      `json:"schema_id"`
	Category string      `json:"category"`
	Content  *Content    `json:"content,omitempty"`
	Children []Datapoint `json:"children,omitempty"`
}

// Operation is one field mutation in the hook response.
type Operation struct {
	Op    string          `json:"op"`
	ID    int64           `json:"id"`
	Value json.RawMessage `json:"value,omitempty"`
}

// Item is one value appended to a multivalue, with its page anchor.
type Item struct {
	Value    string
	Page     int
	Position []float64
}

// Tree indexes the annotation content by schema id and accumulates the
// operations produced by mutations. Schema ids are validated at lookup time;
// a missing id is an explicit error, never a silent no-op.
type Tree struct {
	index map[string]*Datapoint
	ops   []Operation
}

// ParseTree decodes the annotation content array and indexes every node by
// schema id. Duplicate schema ids keep the first occurrence, matching
// document order.
func ParseTree(content json.RawMessage) (*Tree, error) {
	var roots []Datapoint
	if err := json.Unmarshal(content, &roots); err != nil {
		return nil, fmt.Errorf("fields: decode annotation content: %w", err)
	}
	t := &Tree{index: map[string]*Datapoint{}}
	var walk func(dps []Datapoint)
	walk = func(dps []Datapoint) {
		for i := range dps {
			dp := &dps[i]
			if _, exists := t.index[dp.SchemaID]; !exists {
				t.index[dp.SchemaID] = dp
			}
			walk(dp.Children)
		}
	}
	walk(roots)
	return t, nil
}

// Lookup returns the first datapoint with the given schema id.
func (t *Tree) Lookup(schemaID string) (*Datapoint, bool) {
	dp, ok := t.index[schemaID]
	return dp, ok
}

// Value returns the extracted value of a leaf datapoint. Missing datapoints
// and datapoints without content report false.
func (t *Tree) Value(schemaID string) (string, bool) {
	dp, ok := t.index[schemaID]
	if !ok || dp.Content == nil {
		return "", false
	}
	return dp.Content.Value, true
}

// Require returns the datapoint or an error naming the missing schema id.
func (t *Tree) Require(schemaID string) (*Datapoint, error) {
	dp, ok := t.index[schemaID]
	if !ok {
		return nil, fmt.Errorf("fields: datapoint %q is not present", schemaID)
	}
	return dp, nil
}

// RequireMultivalue returns the datapoint and verifies it can hold multiple
// values.
func (t *Tree) RequireMultivalue(schemaID string) (*Datapoint, error) {
	dp, err := t.Require(schemaID)
	if err != nil {
		return nil, err
	}
	if dp.Category != "multivalue" {
		return nil, fmt.Errorf("fields: datapoint %q is not a multivalue", schemaID)
	}
	return dp, nil
}

// SetValue records a replace operation for the datapoint's value.
func (t *Tree) SetValue(schemaID, value string) error {
	dp, err := t.Require(schemaID)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(map[string]interface{}{
		"content": map[string]string{"value": value},
	})
	if err != nil {
		return fmt.Errorf("fields: encode replace for %q: %w", schemaID, err)
	}
	t.ops = append(t.ops, Operation{Op: "replace", ID: dp.ID, Value: payload})
	return nil
}

// ReplaceMultivalue records operations that remove the multivalue's current
// children and add the given items in order.
func (t *Tree) ReplaceMultivalue(schemaID string, items []Item) error {
	dp, err := t.RequireMultivalue(schemaID)
	if err != nil {
		return err
	}
	for _, child := range dp.Children {
		t.ops = append(t.ops, Operation{Op: "remove", ID: child.ID})
	}
	if len(items) == 0 {
		return nil
	}
	values := make([]map[string]interface{}, len(items))
	for i, item := range items {
		content := map[string]interface{}{"value": item.Value}
		if item.Page != 0 {
			content["page"] = item.Page
		}
		if item.Position != nil {
			content["position"] = item.Position
		}
		values[i] = map[string]interface{}{"content": content}
	}
	payload, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("fields: encode add for %q: %w", schemaID, err)
	}
	t.ops = append(t.ops, Operation{Op: "add", ID: dp.ID, Value: payload})
	return nil
}

// Operations returns the accumulated mutations in the order they were made.
func (t *Tree) Operations() []Operation {
	return t.ops
}
