package segment

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/champster3243-build/Policy-Engine-sub000/internal/model"
)

func samplePolicy() string {
	var b strings.Builder
	b.WriteString("DEFINITIONS\n")
	for _, term := range []string{"Hospital", "Accident", "Illness", "Injury", "Inpatient Care", "Day Care Centre", "Network Provider", "Sum Insured"} {
		b.WriteString(`"` + term + `" means the ` + strings.ToLower(term) + " as described in the schedule attached to this policy document.\n")
	}
	b.WriteString("EXCLUSIONS\n")
	for i := 0; i < 30; i++ {
		b.WriteString("- Expenses arising from war, invasion or acts of foreign enemies are excluded from cover.\n")
	}
	b.WriteString("12\n")
	b.WriteString("WAITING PERIOD\n")
	for i := 0; i < 10; i++ {
		b.WriteString("Pre-existing diseases are not covered until 48 months of continuous coverage have elapsed.\n")
	}
	return b.String()
}

func TestSegment_Deterministic(t *testing.T) {
	seg := NewSegmenter(model.DefaultConfig().Segment)
	text := samplePolicy()

	first := seg.Segment(text)
	second := seg.Segment(text)

	require.NotEmpty(t, first)
	assert.Equal(t, first, second)
	for i, c := range first {
		assert.Equal(t, i, c.ID, "chunk ids are sequential")
	}
}

func TestSegment_DefinitionsSectionHint(t *testing.T) {
	seg := NewSegmenter(model.DefaultConfig().Segment)
	chunks := seg.Segment(samplePolicy())
	require.NotEmpty(t, chunks)

	assert.Equal(t, model.SectionDefinitions, chunks[0].Section)
	assert.Equal(t, model.HintDefinitions, chunks[0].Hint)

	var sawExclusions bool
	for _, c := range chunks {
		if c.Section == model.SectionExclusions {
			sawExclusions = true
			assert.Equal(t, model.HintRules, c.Hint)
			assert.NotContains(t, strings.Split(c.CleanedText, "\n"), "12", "numeric garbage line is filtered")
		}
	}
	assert.True(t, sawExclusions)
}

func TestSegment_DropsShortWindows(t *testing.T) {
	cfg := model.SegmentConfig{MinSectionChars: 1, WindowChars: 100, OverlapChars: 10, MinChunkChars: 30}
	seg := NewSegmenter(cfg)

	// 120 runes: windows [0,100) and [90,120), the second is exactly 30
	chunks := seg.Segment(strings.Repeat("abcdefghi.", 12))
	require.Len(t, chunks, 2)
	assert.Equal(t, 30, utf8.RuneCountInString(chunks[1].RawText))

	// 115 runes: the tail window [90,115) is 25 and is dropped
	chunks = seg.Segment(strings.Repeat("abcdefghi.", 12)[:115])
	assert.Len(t, chunks, 1)
}

func TestSegment_DefaultMinimumChunk(t *testing.T) {
	seg := NewSegmenter(model.DefaultConfig().Segment)

	chunks := seg.Segment(strings.Repeat("Ambulance charges are payable. ", 8))
	assert.Empty(t, chunks)

	for _, c := range seg.Segment(samplePolicy()) {
		assert.GreaterOrEqual(t, utf8.RuneCountInString(strings.TrimSpace(c.RawText)), 300)
	}
}

func TestSegment_OverlapBetweenWindows(t *testing.T) {
	cfg := model.SegmentConfig{MinSectionChars: 1, WindowChars: 100, OverlapChars: 10, MinChunkChars: 30}
	seg := NewSegmenter(cfg)

	text := strings.Repeat("abcdefghi.", 19)
	chunks := seg.Segment(text)
	require.Len(t, chunks, 2)

	first := []rune(chunks[0].RawText)
	second := []rune(chunks[1].RawText)
	assert.Equal(t, string(first[90:]), string(second[:10]))
}

func TestSegment_ShortSectionsMerge(t *testing.T) {
	body := strings.Repeat("The insurer will pay reasonable and customary charges for hospitalisation.\n", 8)
	text := "COVERAGE\nShort intro line.\nEXCLUSIONS\n" + body

	seg := NewSegmenter(model.DefaultConfig().Segment)
	chunks := seg.Segment(text)

	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0].RawText, "Short intro line.")
	assert.Equal(t, model.SectionExclusions, chunks[0].Section)
}

func TestClean_CamelCaseRepair(t *testing.T) {
	got := Clean("The insurer will pay theInsured person's claim in full within thirty days.", model.SectionCoverage)
	assert.Contains(t, got, "the Insured")
}

func TestClean_GarbageFilterSkippedForDefinitions(t *testing.T) {
	in := "12\nHospital means a place.\nPage"

	assert.Equal(t, in, Clean(in, model.SectionDefinitions))
	assert.Equal(t, "Hospital means a place.", Clean(in, model.SectionCoverage))
}

func TestKeepLine(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"12", false},
		{"--", false},
		{"Page", false},
		{"- Dental treatment", true},
		{"(a) Cosmetic surgery", true},
		{"3. Room rent", true},
		{"| Room | 1% of SI |", true},
		{"Charges incurred outside India", false},
		{"Charges incurred outside India.", true},
		{strings.Repeat("long line without punctuation ", 3), true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, keepLine(strings.TrimSpace(tt.line)), tt.line)
	}
}
