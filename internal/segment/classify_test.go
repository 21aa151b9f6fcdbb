package segment

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/champster3243-build/Policy-Engine-sub000/internal/model"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		text string
		want model.Hint
	}{
		{"definitions", "Hospital means a place. Accident means a sudden event.", model.HintDefinitions},
		{"definitions tie with rules", "Hospital means a place covered by us. Accident means an event excluded here.", model.HintDefinitions},
		{"rules", "Dental is excluded. Room rent is limited. Maternity is covered.", model.HintRules},
		{"rules outnumber", "X means a. Y means b. It is covered, excluded, limited.", model.HintRules},
		{"mixed", "This policy is issued by the insurer.", model.HintMixed},
		{"single means", "Hospital means a place. Exclusions apply.", model.HintMixed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.text))
		})
	}
}

func TestDetectDefinitions(t *testing.T) {
	text := `"Hospital" means any institution established for in-patient care.
Day Care Centre refers to any institution with day care facilities.
The term "ICU" is defined as an intensive care unit.`
	assert.Equal(t, 3, DetectDefinitions(text))
	assert.Equal(t, 0, DetectDefinitions("the claim means nothing here"))
}

func TestLooksLikeDefinitions(t *testing.T) {
	one := `"Hospital" means any institution established for in-patient care.`
	assert.True(t, LooksLikeDefinitions(one, model.HintMixed))
	assert.False(t, LooksLikeDefinitions(one, model.HintRules))
	assert.True(t, LooksLikeDefinitions(one+"\nAccident means a sudden event.", model.HintRules))
}

func TestRuleSignal(t *testing.T) {
	assert.Equal(t, 0, RuleSignal("Hospital means a place."))
	assert.Equal(t, 2, RuleSignal("Dental is not covered. A waiting period of 30 days applies."))
	assert.Equal(t, 2, RuleSignal("We will pay UP TO the sum insured"))
}
