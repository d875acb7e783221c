package model

import "time"

// Business is one discovered place. It is built once per place ID and then
// mutated in place by social enrichment before records are expanded from it.
type Business struct {
	PlaceID            string
	BusinessName       string
	Location           string
	FullAddress        string
	Phone              *string
	AdditionalPhones   []string
	GoogleMapsURL      *string
	WebsiteURL         *string
	OpeningHours       *string
	GoogleKnowledgeURL *string

	SocialMediasRaw []string
	FacebookURL     *string
	InstagramHandle *string
	TwitterURL      *string
	YelpURL         *string

	// SourcePayload keeps the search/detail response (or fixture fields) the
	// business was built from.
	SourcePayload map[string]any
}

// EmailRecord is the unit of export: one row per (business, email) pair.
type EmailRecord struct {
	Business       *Business
	Email          string
	EmailOwnerName *string
	SourceURL      string
	ScrapeNotes    string
	DiscoveredAt   time.Time
}

// Scrape note values.
const (
	ScrapeNotesWebsite     = "website"
	ScrapeNotesDemoFixture = "demo_fixture"
)

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "" for nil.
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
