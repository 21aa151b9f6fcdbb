package segment

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/champster3243-build/Policy-Engine-sub000/internal/model"
)

// headerPattern matches a section header at the start of a line.
// Numbering like "4." or "Section 4 -" may precede the keyword.
var headerPattern = regexp.MustCompile(
	`(?im)^[ \t]*(?:(?:section|part|chapter)?[ \t]*[0-9ivx]{1,4}[.):\-]?[ \t]+)?` +
		`(definitions?|coverage|benefits? covered|exclusions?|waiting periods?|limits?|limitations|claims?|claim procedure|conditions?|general conditions)\b`)

var camelJoin = regexp.MustCompile(`([a-z])([A-Z])`)

// structuralLine matches bullets, numbering and table rows
var structuralLine = regexp.MustCompile(`^(?:[-•*▪◦·●○►]|\(?[0-9]{1,3}[.)]|\(?[a-zA-Z]\)|\(?[ivxIVX]{1,4}\)|[A-Z][.)])\s*|\|`)

// Segmenter splits document text into section-aware overlapping chunks
type Segmenter struct {
	minSection int
	window     int
	overlap    int
	minChunk   int
}

// NewSegmenter creates a segmenter. Zero config values fall back to defaults.
func NewSegmenter(cfg model.SegmentConfig) *Segmenter {
	def := model.DefaultConfig().Segment
	s := &Segmenter{
		minSection: orDefault(cfg.MinSectionChars, def.MinSectionChars),
		window:     orDefault(cfg.WindowChars, def.WindowChars),
		overlap:    cfg.OverlapChars,
		minChunk:   orDefault(cfg.MinChunkChars, def.MinChunkChars),
	}
	if s.overlap < 0 || s.overlap >= s.window {
		s.overlap = def.OverlapChars
	}
	return s
}

type section struct {
	kind model.SectionKind
	text string
}

// Segment produces the ordered chunk sequence for text.
// It is deterministic: the same text always yields the same chunks.
func (s *Segmenter) Segment(text string) []model.Chunk {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var chunks []model.Chunk
	for _, sec := range s.sections(text) {
		for _, win := range s.windows(sec.text) {
			if utf8.RuneCountInString(strings.TrimSpace(win)) < s.minChunk {
				continue
			}
			cleaned := Clean(win, sec.kind)
			if cleaned == "" {
				continue
			}
			hint := Classify(cleaned)
			if hint == model.HintMixed && sec.kind == model.SectionDefinitions {
				hint = model.HintDefinitions
			}
			chunks = append(chunks, model.Chunk{
				ID:          len(chunks),
				Hint:        hint,
				Section:     sec.kind,
				RawText:     win,
				CleanedText: cleaned,
			})
		}
	}
	return chunks
}

// sections splits on header lines and folds short sections into their neighbours.
// A short section is carried forward into the next one; a short tail joins the previous.
func (s *Segmenter) sections(text string) []section {
	locs := headerPattern.FindAllStringSubmatchIndex(text, -1)

	var raw []section
	start, kind := 0, model.SectionPreamble
	for _, loc := range locs {
		if loc[0] > start {
			raw = append(raw, section{kind: kind, text: text[start:loc[0]]})
		}
		start = loc[0]
		kind = sectionKind(text[loc[2]:loc[3]])
	}
	raw = append(raw, section{kind: kind, text: text[start:]})

	var out []section
	var pending strings.Builder
	pendingKind := model.SectionPreamble
	for _, sec := range raw {
		if pending.Len() == 0 {
			pendingKind = sec.kind
		}
		pending.WriteString(sec.text)
		if utf8.RuneCountInString(strings.TrimSpace(pending.String())) < s.minSection {
			continue
		}
		k := sec.kind
		if k == model.SectionPreamble {
			k = pendingKind
		}
		out = append(out, section{kind: k, text: pending.String()})
		pending.Reset()
	}
	if pending.Len() > 0 {
		if strings.TrimSpace(pending.String()) == "" {
			return out
		}
		if len(out) > 0 {
			out[len(out)-1].text += pending.String()
		} else {
			out = append(out, section{kind: pendingKind, text: pending.String()})
		}
	}
	return out
}

// windows cuts text into fixed-size rune windows overlapping by s.overlap
func (s *Segmenter) windows(text string) []string {
	runes := []rune(text)
	step := s.window - s.overlap

	var out []string
	for start := 0; start < len(runes); start += step {
		end := start + s.window
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return out
}

// Clean repairs merged words and, unless the window is definitional, drops garbage lines
func Clean(window string, kind model.SectionKind) string {
	repaired := camelJoin.ReplaceAllString(window, "$1 $2")

	if kind == model.SectionDefinitions || Classify(repaired) == model.HintDefinitions {
		return strings.TrimSpace(repaired)
	}
	return strings.TrimSpace(filterLines(repaired))
}

func filterLines(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if keepLine(strings.TrimSpace(line)) {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

func keepLine(line string) bool {
	n := utf8.RuneCountInString(line)
	if n == 0 {
		return false
	}
	if n < 5 && digitsOrPunct(line) {
		return false
	}
	if structuralLine.MatchString(line) || n > 60 {
		return true
	}
	last, _ := utf8.DecodeLastRuneInString(line)
	return strings.ContainsRune(".;:!?)", last)
}

func digitsOrPunct(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) && !unicode.IsPunct(r) && !unicode.IsSymbol(r) && !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

func sectionKind(header string) model.SectionKind {
	h := strings.ToLower(header)
	switch {
	case strings.HasPrefix(h, "definition"):
		return model.SectionDefinitions
	case strings.HasPrefix(h, "coverage"), strings.HasPrefix(h, "benefit"):
		return model.SectionCoverage
	case strings.HasPrefix(h, "exclusion"):
		return model.SectionExclusions
	case strings.HasPrefix(h, "waiting"):
		return model.SectionWaiting
	case strings.HasPrefix(h, "limit"):
		return model.SectionLimits
	case strings.HasPrefix(h, "claim"):
		return model.SectionClaims
	default:
		return model.SectionConditions
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
