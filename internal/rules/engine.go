package rules

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/champster3243-build/Policy-Engine-sub000/internal/model"
	"github.com/champster3243-build/Policy-Engine-sub000/internal/util"
)

// Confidence is the fixed confidence of rule-engine items
const Confidence = 0.95

// minItemChars is the shortest buffer worth emitting
const minItemChars = 15

// NoChunk marks entries that did not come from a segmenter chunk
const NoChunk = -1

type header struct {
	pattern  *regexp.Regexp
	category model.Category // empty clears the active section
}

// Headers tolerate OCR confusions of i/l/1 and o/0 and must occupy the whole line
var headers = []header{
	{headerLine(`d[e3]f[i1l]n[i1l]t[i1l][o0]ns?|interpretations?`), ""},
	{headerLine(`(?:general\s+|special\s+)?c[o0]nd[i1l]t[i1l][o0]ns?`), ""},
	{headerLine(`wa[i1l]t[i1l]ng\s*per[i1l][o0]ds?`), model.CategoryWaitingPeriod},
	{headerLine(`exc[l1i]us[i1l][o0]ns?|what\s+is\s+n[o0]t\s+c[o0]vered|permanent\s+exclusions?`), model.CategoryExclusion},
	{headerLine(`(?:sub[\s-]*)?[l1]im[i1l]ts?(?:\s+of\s+(?:cover|liability))?|l[i1]m[i1]tat[i1]ons?|financial\s+limits?|co[\s-]*pay(?:ment)?s?`), model.CategoryFinancialLimit},
	{headerLine(`c[l1]a[i1l]ms?(?:\s+(?:procedure|process|settlement))?|rejection\s+of\s+claims?`), model.CategoryClaimRejection},
	{headerLine(`c[o0]verage|c[o0]ver|benef[i1l]ts?(?:\s+covered)?|what\s+is\s+c[o0]vered|scope\s+of\s+c[o0]ver`), model.CategoryCoverage},
}

func headerLine(vocab string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)^(?:(?:section|part|chapter)\s*)?(?:[0-9ivx]{1,4}[.):\-]?\s*)?(?:` + vocab + `)\s*[:.\-]?$`)
}

var (
	bulletPattern = regexp.MustCompile(`^(?:[-–•*·▪‣●◦]|\(?[0-9]{1,3}(?:\.[0-9]{1,3})*[.)]|\(?[a-zA-Z][.)]|\(?[ivxIVX]{1,4}[.)])\s+`)

	// Line endings that cannot close a clause
	danglingPattern = regexp.MustCompile(`(?i)(?:[-,/&]|\b(?:a|an|the|and|or|of|to|by|in|on|for|with|from|under|than|any|such|as|per|at|is|are|be|not))$`)

	// Document boilerplate: page footers, regulator and registration numbers, contact lines
	garbage = regexp.MustCompile(`(?i)\bpage\s*\d+|registration\s+no|\breg\.\s*no|\birdai\b|\buin\b|\bcin\s*:|www\.|toll[\s-]*free`)

	// Fallback classifiers, tried in order
	fallbacks = []struct {
		pattern  *regexp.Regexp
		category model.Category
	}{
		{regexp.MustCompile(`(?i)\b\d+\s*(?:days?|months?|years?)\b|waiting\s+period|\bfirst\s+\d+`), model.CategoryWaitingPeriod},
		{regexp.MustCompile(`(?i)\blimit|\bcap(?:ped)?\b|co-?pay|sub-limit|maximum`), model.CategoryFinancialLimit},
		{regexp.MustCompile(`(?i)excluded|not\s+covered|shall\s+not`), model.CategoryExclusion},
		{regexp.MustCompile(`(?i)notify|intimat|claim|documentation`), model.CategoryClaimRejection},
	}
)

// Item is one rule recovered by the engine
type Item struct {
	Category model.Category `json:"category"`
	Text     string         `json:"text"`
	Line     int            `json:"line"` // 1-based line where the item started
}

// Engine is a line-oriented state machine that reassembles rules split by layout.
// It has no dependency on the extractor.
type Engine struct{}

// NewEngine creates a rule engine
func NewEngine() *Engine {
	return &Engine{}
}

// scan holds the state of one pass over a document
type scan struct {
	active  model.Category // empty means no active section
	buf     []string
	bufLine int
	seen    map[string]bool
	items   []Item
}

// Scan runs the state machine over raw text and returns the recovered rules
// in document order
func (e *Engine) Scan(text string) []Item {
	s := &scan{seen: make(map[string]bool)}

	for i, raw := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if cat, ok := matchHeader(line); ok {
			s.flush()
			s.active = cat
			continue
		}

		if s.startsItem(line) {
			s.flush()
		}
		if len(s.buf) == 0 {
			s.bufLine = i + 1
		}
		s.buf = append(s.buf, line)
	}
	s.flush()

	return s.items
}

// Apply scans text and adds every recovered rule to c. Returns the number added.
func (e *Engine) Apply(text string, c *model.Collected) int {
	added := 0
	for _, it := range e.Scan(text) {
		if c.AddRule(it.Category, model.Entry{
			Text:    it.Text,
			Source:  model.SourceRuleEngine,
			ChunkID: NoChunk,
		}) {
			added++
		}
	}
	return added
}

func matchHeader(line string) (model.Category, bool) {
	if utf8.RuneCountInString(line) > 60 {
		return "", false
	}
	for _, h := range headers {
		if h.pattern.MatchString(line) {
			return h.category, true
		}
	}
	return "", false
}

// startsItem reports whether line opens a new item: a bullet or number, or a
// capitalised line. A capitalised line still continues the buffer when the
// buffered text breaks off mid-clause (hyphenated word, trailing comma or a
// dangling function word such as "by an").
func (s *scan) startsItem(line string) bool {
	if bulletPattern.MatchString(line) {
		return true
	}
	first, _ := utf8.DecodeRuneInString(line)
	if !unicode.IsUpper(first) {
		return false
	}
	if len(s.buf) == 0 {
		return true
	}
	return !danglingPattern.MatchString(s.buf[len(s.buf)-1])
}

func (s *scan) flush() {
	if len(s.buf) == 0 {
		return
	}
	text := strings.Join(s.buf, " ")
	line := s.bufLine
	s.buf = s.buf[:0]

	text = strings.TrimSpace(bulletPattern.ReplaceAllString(text, ""))
	text = strings.Join(strings.Fields(text), " ")

	if utf8.RuneCountInString(text) < minItemChars || garbage.MatchString(text) {
		return
	}

	key := util.NormalizeKey(text)
	if s.seen[key] {
		return
	}

	cat := s.active
	if cat == "" {
		cat = classify(text)
	}
	if cat == "" {
		return
	}

	s.seen[key] = true
	s.items = append(s.items, Item{Category: cat, Text: text, Line: line})
}

// classify applies the keyword fallbacks when no section is active
func classify(text string) model.Category {
	for _, f := range fallbacks {
		if f.pattern.MatchString(text) {
			return f.category
		}
	}
	return ""
}
