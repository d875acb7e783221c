package model

// Social field names used as PageExtraction.SocialLinks keys.
const (
	FieldFacebookURL     = "facebook_url"
	FieldInstagramHandle = "instagram_handle"
	FieldTwitterURL      = "twitter_url"
	FieldYelpURL         = "yelp_url"
)

// PageExtraction holds the contact signals parsed from one HTML page.
type PageExtraction struct {
	// Emails are lower-cased, deduplicated and sorted.
	Emails []string
	// EmailToName has a key for every entry in Emails; the value is nil when
	// no owner name could be inferred.
	EmailToName map[string]*string
	// SocialLinks maps a social field name to its raw matches in document order.
	SocialLinks map[string][]string
}

// NewPageExtraction returns an empty extraction with initialized maps.
func NewPageExtraction() *PageExtraction {
	return &PageExtraction{
		Emails:      []string{},
		EmailToName: make(map[string]*string),
		SocialLinks: make(map[string][]string),
	}
}
