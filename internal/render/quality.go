package render

import "github.com/sells-group/sitecheck/internal/model"

// Quality weights. Contact presence dominates: a business site without any
// way to reach the business is rarely the business's own site.
const (
	weightPhone   = 20
	weightEmail   = 15
	weightAddress = 15
	weightHours   = 10
	weightContent = 15 // word count above substanceWords
	weightImages  = 10
	weightForms   = 10

	substanceWords     = 200
	placeholderPenalty = 50
)

// QualityScore computes the 0-100 heuristic score for a loaded page.
// A placeholder page keeps its computed score minus a penalty, but
// IsPlaceholder caps its practical usefulness regardless.
func QualityScore(s *model.PageSignals) int {
	score := 0
	if len(s.Phones) > 0 {
		score += weightPhone
	}
	if len(s.Emails) > 0 {
		score += weightEmail
	}
	if s.HasAddress {
		score += weightAddress
	}
	if s.HasBusinessHours {
		score += weightHours
	}
	if s.WordCount > substanceWords {
		score += weightContent
	}
	if s.HasImages {
		score += weightImages
	}
	if s.HasForms {
		score += weightForms
	}

	if s.IsPlaceholder {
		score -= placeholderPenalty
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
