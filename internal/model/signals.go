package model

// RenderFailure classifies why a render did not produce a usable page.
type RenderFailure string

const (
	RenderFailNone     RenderFailure = ""
	RenderFailTimeout  RenderFailure = "timeout"
	RenderFailSSL      RenderFailure = "ssl_error"
	RenderFailNotFound RenderFailure = "not_found"
	RenderFailServer   RenderFailure = "server_error"
	RenderFailBlocked  RenderFailure = "blocked"
	RenderFailGeneric  RenderFailure = "generic"
)

// PageSignals is the renderer's structured view of one fetched page.
type PageSignals struct {
	Loaded           bool          `json:"loaded"`
	FinalURL         string        `json:"final_url,omitempty"`
	Title            string        `json:"title,omitempty"`
	MetaDescription  string        `json:"meta_description,omitempty"`
	Phones           []string      `json:"phones,omitempty"`
	Emails           []string      `json:"emails,omitempty"`
	HasAddress       bool          `json:"has_address"`
	HasBusinessHours bool          `json:"has_business_hours"`
	WordCount        int           `json:"word_count"`
	HasImages        bool          `json:"has_images"`
	HasForms         bool          `json:"has_forms"`
	SocialLinks      []string      `json:"social_links,omitempty"`
	IsPlaceholder    bool          `json:"is_placeholder"`
	QualityScore     int           `json:"quality_score"`
	Text             string        `json:"-"` // extracted plaintext, not persisted
	Screenshot       []byte        `json:"-"` // PNG capture, not persisted
	Failure          RenderFailure `json:"failure,omitempty"`
	FailureDetail    string        `json:"failure_detail,omitempty"`
}
