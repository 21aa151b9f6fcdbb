package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/champster3243-build/Policy-Engine-sub000/internal/model"
	"github.com/champster3243-build/Policy-Engine-sub000/internal/util"
)

// Canonicalizer maps definition terms onto stable keys
type Canonicalizer struct {
	registry *Registry
}

// NewCanonicalizer creates a canonicalizer. A nil registry uses the built-in one.
func NewCanonicalizer(registry *Registry) *Canonicalizer {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Canonicalizer{registry: registry}
}

// Canonicalize groups definitions by canonical key. Within a group the longest
// definition text wins, every raw term variant is kept and the highest
// confidence is reported. Output is sorted by key.
func (c *Canonicalizer) Canonicalize(defs []model.AcceptedItem) []model.CanonicalDefinition {
	byKey := make(map[string]*model.CanonicalDefinition)

	for _, d := range defs {
		term := strings.TrimSpace(d.Term)
		if term == "" {
			continue
		}

		key, canonicalTerm, source := c.resolve(term)

		cd, ok := byKey[key]
		if !ok {
			byKey[key] = &model.CanonicalDefinition{
				Key:           key,
				CanonicalTerm: canonicalTerm,
				RawTerms:      []string{term},
				Definition:    d.Text,
				Source:        source,
				Confidence:    d.Confidence,
				NeedsReview:   d.NeedsReview,
			}
			continue
		}

		if !slices.Contains(cd.RawTerms, term) {
			cd.RawTerms = append(cd.RawTerms, term)
		}
		if utf8.RuneCountInString(d.Text) > utf8.RuneCountInString(cd.Definition) {
			cd.Definition = d.Text
		}
		if d.Confidence > cd.Confidence {
			cd.Confidence = d.Confidence
		}
		// A group needs review only while none of its members is trusted
		cd.NeedsReview = cd.NeedsReview && d.NeedsReview
	}

	out := make([]model.CanonicalDefinition, 0, len(byKey))
	for _, cd := range byKey {
		out = append(out, *cd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// resolve returns the canonical key for a term, falling back to its slug.
// A term with no letters or digits gets a digest key so it is never dropped.
func (c *Canonicalizer) resolve(term string) (string, string, model.CanonicalSource) {
	if e, ok := c.registry.Lookup(term); ok {
		return e.Key, e.CanonicalTerm, model.CanonicalRegistry
	}
	if slug := util.Slugify(term); slug != "" {
		return slug, term, model.CanonicalAutoSlug
	}
	sum := sha256.Sum256([]byte(term))
	return "term_" + hex.EncodeToString(sum[:4]), term, model.CanonicalAutoSlug
}
