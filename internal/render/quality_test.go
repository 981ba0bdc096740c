package render

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/sitecheck/internal/model"
)

func TestQualityScore_FullSignals(t *testing.T) {
	s := &model.PageSignals{
		Loaded:           true,
		Phones:           []string{"(217) 555-0134"},
		Emails:           []string{"office@acme.com"},
		HasAddress:       true,
		HasBusinessHours: true,
		WordCount:        450,
		HasImages:        true,
		HasForms:         true,
	}
	// 20+15+15+10+15+10+10
	assert.Equal(t, 95, QualityScore(s))
}

func TestQualityScore_ContactsOnly(t *testing.T) {
	s := &model.PageSignals{Loaded: true, Phones: []string{"555"}, WordCount: 50}
	assert.Equal(t, 20, QualityScore(s))
}

func TestQualityScore_PlaceholderPenalty(t *testing.T) {
	s := &model.PageSignals{
		Loaded:        true,
		Phones:        []string{"555"},
		Emails:        []string{"a@b.com"},
		IsPlaceholder: true,
	}
	// 20+15-50 floors at zero
	assert.Equal(t, 0, QualityScore(s))

	s.HasAddress = true
	s.HasImages = true
	s.HasForms = true
	s.WordCount = 300
	// 20+15+15+15+10+10 = 85, minus 50
	assert.Equal(t, 35, QualityScore(s))
}

func TestQualityScore_Empty(t *testing.T) {
	assert.Equal(t, 0, QualityScore(&model.PageSignals{Loaded: true}))
}
