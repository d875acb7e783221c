package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sells-group/cafescrape/internal/model"
)

type socialHost struct {
	domain string
	field  string
}

// socialHosts is checked in order against each link's host; first match wins.
var socialHosts = []socialHost{
	{"facebook.com", model.FieldFacebookURL},
	{"fb.com", model.FieldFacebookURL},
	{"instagram.com", model.FieldInstagramHandle},
	{"twitter.com", model.FieldTwitterURL},
	{"x.com", model.FieldTwitterURL},
	{"yelp.com", model.FieldYelpURL},
}

// ClassifySocialLink maps a hyperlink target to a social field and the value
// to store for it. Instagram links yield the profile handle instead of the
// URL. ok is false for non-social links and empty handles.
func ClassifySocialLink(href string) (field, value string, ok bool) {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", "", false
	}
	host := strings.ToLower(u.Host)
	if host == "" {
		return "", "", false
	}
	for _, sh := range socialHosts {
		if !strings.Contains(host, sh.domain) {
			continue
		}
		if sh.field == model.FieldInstagramHandle {
			handle := strings.Trim(u.Path, "/")
			if handle == "" {
				return "", "", false
			}
			return sh.field, handle, true
		}
		return sh.field, href, true
	}
	return "", "", false
}

// extractSocialLinks buckets every anchor target by platform in document
// order. Duplicates are kept; they are collapsed during enrichment.
func extractSocialLinks(doc *goquery.Document) map[string][]string {
	buckets := make(map[string][]string)
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if field, value, ok := ClassifySocialLink(href); ok {
			buckets[field] = append(buckets[field], value)
		}
	})
	return buckets
}
