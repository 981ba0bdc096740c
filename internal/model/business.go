package model

import "strings"

// Business holds the identity facts for one business record. The pipeline
// reads these fields but never writes them (except Country, which the
// controller may update from high-confidence detection); the record owner
// is the lead store, which sits outside this module.
type Business struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Phone      string `json:"phone,omitempty"`
	Street     string `json:"street,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"` // ISO 3166-1 alpha-2
	Category   string `json:"category,omitempty"`
}

// Location renders the address parts as a single search-friendly string.
func (b Business) Location() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{b.Street, b.City, b.State, b.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
