package extract

import (
	"github.com/champster3243-build/Policy-Engine-sub000/internal/model"
)

// Route stores a parsed item into c. It reports how many entries were added
// and whether the item carried anything routable at all; None and empty
// batches are not routable.
func Route(item model.Item, ch model.Chunk, c *model.Collected) (added int, routable bool) {
	switch it := item.(type) {
	case model.Definition:
		return addDefinition(it, ch, c), true
	case model.Rule:
		return addRule(it, ch, c), true
	case model.DefinitionBatch:
		for _, d := range it.Definitions {
			added += addDefinition(d, ch, c)
		}
		return added, len(it.Definitions) > 0
	case model.RuleBatch:
		for _, r := range it.Rules {
			added += addRule(r, ch, c)
		}
		return added, len(it.Rules) > 0
	case model.None:
		return 0, false
	default:
		return 0, false
	}
}

func addDefinition(d model.Definition, ch model.Chunk, c *model.Collected) int {
	ok := c.AddDefinition(model.Entry{
		Term:      d.Term,
		Text:      d.Definition,
		Source:    model.SourceAI,
		ChunkID:   ch.ID,
		Hint:      ch.Hint,
		Uncertain: d.Uncertain,
	})
	if ok {
		return 1
	}
	return 0
}

func addRule(r model.Rule, ch model.Chunk, c *model.Collected) int {
	ok := c.AddRule(r.Category, model.Entry{
		Text:      r.Text,
		Source:    model.SourceAI,
		ChunkID:   ch.ID,
		Hint:      ch.Hint,
		Uncertain: r.Uncertain,
	})
	if ok {
		return 1
	}
	return 0
}
