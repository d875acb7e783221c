package business

import (
	"github.com/sells-group/cafescrape/internal/model"
)

// FixtureBusiness is the business-attribute mapping of a recorded fixture
// entry. Keys mirror the export columns.
type FixtureBusiness struct {
	PlaceID            string   `yaml:"place_id"`
	BusinessName       string   `yaml:"business_name"`
	Location           string   `yaml:"location"`
	FullAddress        string   `yaml:"full_address"`
	Phone              *string  `yaml:"phone"`
	AdditionalPhones   []string `yaml:"additional_phones"`
	GoogleMapsURL      *string  `yaml:"google_maps_url"`
	WebsiteURL         *string  `yaml:"website_url"`
	OpeningHours       *string  `yaml:"opening_hours"`
	GoogleKnowledgeURL *string  `yaml:"google_knowledge_url"`
	SocialMediasRaw    []string `yaml:"social_medias_raw"`
	FacebookURL        *string  `yaml:"facebook_url"`
	InstagramHandle    *string  `yaml:"instagram_handle"`
	TwitterURL         *string  `yaml:"twitter_url"`
	YelpURL            *string  `yaml:"yelp_url"`
}

// FromFixture builds a Business from fixture fields. Missing collections
// default to empty and raw is kept as the source payload.
func FromFixture(f FixtureBusiness, raw map[string]any) *model.Business {
	b := &model.Business{
		PlaceID:            f.PlaceID,
		BusinessName:       f.BusinessName,
		Location:           f.Location,
		FullAddress:        f.FullAddress,
		Phone:              optional(f.Phone),
		AdditionalPhones:   f.AdditionalPhones,
		GoogleMapsURL:      optional(f.GoogleMapsURL),
		WebsiteURL:         optional(f.WebsiteURL),
		OpeningHours:       optional(f.OpeningHours),
		GoogleKnowledgeURL: optional(f.GoogleKnowledgeURL),
		SocialMediasRaw:    f.SocialMediasRaw,
		FacebookURL:        optional(f.FacebookURL),
		InstagramHandle:    optional(f.InstagramHandle),
		TwitterURL:         optional(f.TwitterURL),
		YelpURL:            optional(f.YelpURL),
		SourcePayload:      raw,
	}
	if b.AdditionalPhones == nil {
		b.AdditionalPhones = []string{}
	}
	if b.SocialMediasRaw == nil {
		b.SocialMediasRaw = []string{}
	}
	if b.SourcePayload == nil {
		b.SourcePayload = map[string]any{}
	}
	return b
}

func optional(s *string) *string {
	if s == nil {
		return nil
	}
	return model.StringPtr(*s)
}
