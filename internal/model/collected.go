package model

import (
	"sync"

	"github.com/champster3243-build/Policy-Engine-sub000/internal/util"
)

// Entry is a collected item together with where it came from
type Entry struct {
	Term      string `json:"term,omitempty"`
	Text      string `json:"text"`
	Source    Source `json:"source"`
	ChunkID   int    `json:"chunk_id"`
	Hint      Hint   `json:"hint,omitempty"`
	Uncertain bool   `json:"uncertain,omitempty"`
}

type ruleList struct {
	mu      sync.Mutex
	entries []Entry
	seen    map[string]bool
}

// Collected accumulates extraction results for one job.
// It is append-only: entries are only ever dropped as duplicates on insert.
// Each category list and the definition map have their own lock so pool
// workers appending to different categories do not contend.
type Collected struct {
	defMu    sync.Mutex
	defs     map[string]Entry
	defOrder []string
	defSeen  map[string]bool

	rules map[Category]*ruleList
}

// NewCollected creates an empty accumulator
func NewCollected() *Collected {
	c := &Collected{
		defs:    make(map[string]Entry),
		defSeen: make(map[string]bool),
		rules:   make(map[Category]*ruleList),
	}
	for _, cat := range AllCategories() {
		c.rules[cat] = &ruleList{seen: make(map[string]bool)}
	}
	return c
}

// AddDefinition stores a definition keyed by its raw term.
// Returns false if the raw term, or a definition with the same normalized
// text, is already present.
func (c *Collected) AddDefinition(e Entry) bool {
	key := util.NormalizeKey(e.Text)
	if e.Term == "" || key == "" {
		return false
	}

	c.defMu.Lock()
	defer c.defMu.Unlock()

	if _, exists := c.defs[e.Term]; exists || c.defSeen[key] {
		return false
	}
	c.defs[e.Term] = e
	c.defOrder = append(c.defOrder, e.Term)
	c.defSeen[key] = true
	return true
}

// AddRule appends a rule to its category unless its normalized text is already there
func (c *Collected) AddRule(cat Category, e Entry) bool {
	list, ok := c.rules[cat]
	if !ok {
		return false
	}
	key := util.NormalizeKey(e.Text)
	if key == "" {
		return false
	}

	list.mu.Lock()
	defer list.mu.Unlock()

	if list.seen[key] {
		return false
	}
	list.seen[key] = true
	list.entries = append(list.entries, e)
	return true
}

// Snapshot is an immutable copy of the accumulator
type Snapshot struct {
	Definitions []Entry              `json:"definitions"`
	Rules       map[Category][]Entry `json:"rules"`
}

// Snapshot copies the current contents. Definitions keep insertion order.
func (c *Collected) Snapshot() Snapshot {
	snap := Snapshot{Rules: make(map[Category][]Entry, len(c.rules))}

	c.defMu.Lock()
	snap.Definitions = make([]Entry, 0, len(c.defOrder))
	for _, term := range c.defOrder {
		snap.Definitions = append(snap.Definitions, c.defs[term])
	}
	c.defMu.Unlock()

	for cat, list := range c.rules {
		list.mu.Lock()
		snap.Rules[cat] = append([]Entry(nil), list.entries...)
		list.mu.Unlock()
	}
	return snap
}

// Len returns the total number of collected entries
func (c *Collected) Len() int {
	c.defMu.Lock()
	n := len(c.defOrder)
	c.defMu.Unlock()
	for _, list := range c.rules {
		list.mu.Lock()
		n += len(list.entries)
		list.mu.Unlock()
	}
	return n
}
