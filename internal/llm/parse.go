package llm

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/champster3243-build/Policy-Engine-sub000/internal/model"
)

//go:embed item.schema.json
var itemSchemaJSON []byte

var itemSchema = mustLoadSchema(itemSchemaJSON)

func mustLoadSchema(raw []byte) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		panic(fmt.Sprintf("llm: invalid item schema: %v", err))
	}
	return schema
}

// wireItem is the union of every field the item schema allows
type wireItem struct {
	Type        string          `json:"type"`
	Term        string          `json:"term"`
	Definition  string          `json:"definition"`
	Rule        string          `json:"rule"`
	Uncertain   bool            `json:"uncertain"`
	Definitions []wireItem      `json:"definitions"`
	Rules       []wireRuleEntry `json:"rules"`
}

type wireRuleEntry struct {
	Type      string `json:"type"`
	Text      string `json:"text"`
	Uncertain bool   `json:"uncertain"`
}

// ParseItem extracts one structured item from a raw extractor response.
// It tolerates markdown fences and prose around the object. Every failure
// wraps ErrUnparseable.
func ParseItem(raw string) (model.Item, error) {
	obj, err := firstObject(raw)
	if err != nil {
		return nil, err
	}

	result, err := itemSchema.Validate(gojsonschema.NewBytesLoader(obj))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return nil, fmt.Errorf("%w: schema: %s", ErrUnparseable, strings.Join(errs, "; "))
	}

	var w wireItem
	if err := json.Unmarshal(obj, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	return w.toItem()
}

// firstObject strips fence markers and decodes the first balanced object
// between the first '{' and the last '}'
func firstObject(raw string) ([]byte, error) {
	s := strings.ReplaceAll(raw, "```json", "")
	s = strings.ReplaceAll(s, "```JSON", "")
	s = strings.ReplaceAll(s, "```", "")

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: no JSON object", ErrUnparseable)
	}

	dec := json.NewDecoder(strings.NewReader(s[start : end+1]))
	var obj json.RawMessage
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	return obj, nil
}

func (w wireItem) toItem() (model.Item, error) {
	switch w.Type {
	case "none":
		return model.None{}, nil
	case "definition":
		return model.Definition{Term: strings.TrimSpace(w.Term), Definition: strings.TrimSpace(w.Definition), Uncertain: w.Uncertain}, nil
	case "definition_batch":
		// Entries missing a term or text are skipped; their siblings still count
		batch := model.DefinitionBatch{Definitions: make([]model.Definition, 0, len(w.Definitions))}
		for _, d := range w.Definitions {
			term, text := strings.TrimSpace(d.Term), strings.TrimSpace(d.Definition)
			if term == "" || text == "" {
				continue
			}
			batch.Definitions = append(batch.Definitions, model.Definition{Term: term, Definition: text, Uncertain: d.Uncertain})
		}
		if len(batch.Definitions) == 0 && len(w.Definitions) > 0 {
			return nil, fmt.Errorf("%w: no usable definition in batch", ErrUnparseable)
		}
		return batch, nil
	case "rule_batch":
		// Entries with an unknown category or no text are skipped
		batch := model.RuleBatch{Rules: make([]model.Rule, 0, len(w.Rules))}
		for _, r := range w.Rules {
			cat, err := model.ParseCategory(strings.TrimSpace(r.Type))
			text := strings.TrimSpace(r.Text)
			if err != nil || text == "" {
				continue
			}
			batch.Rules = append(batch.Rules, model.Rule{Category: cat, Text: text, Uncertain: r.Uncertain})
		}
		if len(batch.Rules) == 0 && len(w.Rules) > 0 {
			return nil, fmt.Errorf("%w: no usable rule in batch", ErrUnparseable)
		}
		return batch, nil
	}

	cat, err := model.ParseCategory(w.Type)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	return model.Rule{Category: cat, Text: strings.TrimSpace(w.Rule), Uncertain: w.Uncertain}, nil
}
