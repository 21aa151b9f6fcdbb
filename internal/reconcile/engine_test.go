package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/champster3243-build/Policy-Engine-sub000/internal/model"
)

func TestKeywords(t *testing.T) {
	assert.Equal(t, []string{"maternity", "expenses", "first", "months"},
		Keywords("Maternity expenses excluded for first 9 months"))
	assert.Equal(t, []string{"room", "rent"}, Keywords("Room rent limit: Rs. 10,000"))
	assert.Empty(t, Keywords("It is not covered."))
}

func TestJaccard(t *testing.T) {
	assert.Equal(t, 0.5, Jaccard([]string{"a", "b"}, []string{"a", "b", "c", "d"}))
	assert.Equal(t, 1.0, Jaccard([]string{"a"}, []string{"a", "a"}))
	assert.Equal(t, 0.0, Jaccard(nil, nil))
	assert.Equal(t, 0.0, Jaccard([]string{"a"}, []string{"b"}))
}

func TestReconcile_MaternityWaiting(t *testing.T) {
	rec := NewEngine(nil).Reconcile(map[model.Category][]string{
		model.CategoryCoverage:  {"Maternity expenses are covered"},
		model.CategoryExclusion: {"Maternity expenses excluded for first 9 months"},
	})

	require.Len(t, rec.Conflicts, 1)
	c := rec.Conflicts[0]
	assert.Equal(t, model.ConflictCoverageVsExclusion, c.Type)
	require.NotNil(t, c.OverlapScore)
	assert.Equal(t, 0.5, *c.OverlapScore)
	assert.Equal(t, model.SeverityMedium, c.Severity)
	require.NotNil(t, c.Resolution)
	assert.True(t, c.Resolution.Resolvable)
	assert.Equal(t, model.ActionKeepBothAddNote, c.Resolution.RecommendedAction)
	assert.Contains(t, c.Resolution.Explanation, "temporary exclusion")

	assert.False(t, rec.HasCritical)
	assert.False(t, rec.RequiresHumanReview)
	assert.Equal(t, 1, rec.Summary.Resolvable)
}

func TestReconcile_ConflictingFinancialLimit(t *testing.T) {
	rec := NewEngine(nil).Reconcile(map[model.Category][]string{
		model.CategoryFinancialLimit: {"Room rent limited to Rs. 5000", "Room rent limit: Rs. 10,000"},
	})

	require.Len(t, rec.Conflicts, 1)
	c := rec.Conflicts[0]
	assert.Equal(t, model.ConflictConflictingFinancialLimit, c.Type)
	assert.Equal(t, model.SeverityCritical, c.Severity)
	assert.Nil(t, c.Resolution)
	assert.Nil(t, c.OverlapScore)
	assert.True(t, rec.HasCritical)
	assert.True(t, rec.RequiresHumanReview)
}

func TestReconcile_SameLimitAmountIsNotAConflict(t *testing.T) {
	rec := NewEngine(nil).Reconcile(map[model.Category][]string{
		model.CategoryFinancialLimit: {"Room rent limited to Rs. 5,000", "Room rent limit of Rs 5000.00", "Ambulance cover up to Rs 2000"},
	})
	assert.Empty(t, rec.Conflicts)
	assert.NotNil(t, rec.Conflicts, "empty list, not null")
}

func TestReconcile_ResolutionOrder(t *testing.T) {
	tests := []struct {
		desc      string
		coverage  string
		exclusion string
		action    model.RecommendedAction
		explains  string
	}{
		{
			desc:      "pre-existing wording wins even when waiting wording is present",
			coverage:  "Pre-existing diabetes treatment covered",
			exclusion: "Pre-existing diabetes treatment excluded during waiting period",
			action:    model.ActionKeepBothAddNote,
			explains:  "specific refinement",
		},
		{
			desc:      "long exclusion is more specific",
			coverage:  "Dental treatment covered",
			exclusion: "Dental treatment excluded when cosmetic in nature or elective",
			action:    model.ActionKeepBoth,
			explains:  "more specific",
		},
		{
			desc:      "unresolved overlap is flagged",
			coverage:  "Dental treatment covered",
			exclusion: "Dental treatment excluded",
			action:    model.ActionFlagForHumanReview,
		},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			rec := NewEngine(nil).Reconcile(map[model.Category][]string{
				model.CategoryCoverage:  {tt.coverage},
				model.CategoryExclusion: {tt.exclusion},
			})
			require.Len(t, rec.Conflicts, 1)
			res := rec.Conflicts[0].Resolution
			require.NotNil(t, res)
			assert.Equal(t, tt.action, res.RecommendedAction)
			assert.Contains(t, res.Explanation, tt.explains)
			assert.Equal(t, tt.action == model.ActionFlagForHumanReview, rec.RequiresHumanReview)
		})
	}
}

func TestReconcile_SeverityBands(t *testing.T) {
	e := NewEngine(nil)
	assert.Equal(t, model.SeverityMedium, e.severity(0.40))
	assert.Equal(t, model.SeverityHigh, e.severity(0.55))
	assert.Equal(t, model.SeverityCritical, e.severity(0.70))

	rec := e.Reconcile(map[model.Category][]string{
		model.CategoryCoverage:  {"Dental treatment covered"},
		model.CategoryExclusion: {"Dental treatment excluded"},
	})
	require.Len(t, rec.Conflicts, 1)
	assert.Equal(t, model.SeverityCritical, rec.Conflicts[0].Severity)
	assert.Equal(t, 1.0, *rec.Conflicts[0].OverlapScore)
}

func TestReconcile_BelowThreshold(t *testing.T) {
	rec := NewEngine(nil).Reconcile(map[model.Category][]string{
		model.CategoryCoverage:  {"Ambulance charges covered"},
		model.CategoryExclusion: {"Cosmetic surgery excluded"},
	})
	assert.Empty(t, rec.Conflicts)
	assert.Equal(t, 0, rec.Summary.Total)
}

func TestReconcile_DuplicateWaitingPeriod(t *testing.T) {
	rec := NewEngine(nil).Reconcile(map[model.Category][]string{
		model.CategoryWaitingPeriod: {
			"Cataract surgery waiting period 24 months",
			"24 months waiting period: cataract surgery",
			"Hernia surgery waiting period 24 months",
		},
	})

	require.Len(t, rec.Conflicts, 1)
	c := rec.Conflicts[0]
	assert.Equal(t, model.ConflictDuplicateWaitingPeriod, c.Type)
	assert.Equal(t, model.SeverityMedium, c.Severity)
	assert.Equal(t, []string{"Cataract surgery waiting period 24 months", "24 months waiting period: cataract surgery"}, c.Items)
	assert.Equal(t, 1, rec.Summary.ByType[model.ConflictDuplicateWaitingPeriod])
}

func TestReconcile_DoesNotMutateInput(t *testing.T) {
	in := map[model.Category][]string{
		model.CategoryCoverage:       {"Maternity expenses are covered"},
		model.CategoryExclusion:      {"Maternity expenses excluded for first 9 months"},
		model.CategoryFinancialLimit: {"Room rent limited to Rs. 5000", "Room rent limit: Rs. 10,000"},
	}
	before := map[model.Category][]string{}
	for k, v := range in {
		before[k] = append([]string(nil), v...)
	}

	rec := NewEngine(nil).Reconcile(in)
	assert.Equal(t, before, in)
	assert.Equal(t, 2, rec.Summary.Total)
	assert.Equal(t, 1, rec.Summary.BySeverity[model.SeverityCritical])
	assert.Equal(t, 1, rec.Summary.BySeverity[model.SeverityMedium])
}

func TestNewEngine_Defaults(t *testing.T) {
	e := NewEngine(&model.ReconcileConfig{OverlapThreshold: 0.9})
	assert.Equal(t, 0.9, e.config.OverlapThreshold)
	assert.Equal(t, 1.5, e.config.LengthRatio)
	assert.Equal(t, 0.70, e.config.CriticalSeverityAt)
}
