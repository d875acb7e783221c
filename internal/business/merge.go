package business

import (
	"sort"
	"time"

	"github.com/sells-group/cafescrape/internal/extract"
	"github.com/sells-group/cafescrape/internal/model"
)

// EnrichWithSocials merges a page's social links into b. SocialMediasRaw is
// replaced with the sorted, deduplicated union of every bucket. Each named
// platform field takes the first link of its bucket and is never overwritten
// once set.
func EnrichWithSocials(b *model.Business, ex *model.PageExtraction) {
	seen := make(map[string]struct{})
	raw := []string{}
	for _, links := range ex.SocialLinks {
		for _, l := range links {
			if _, ok := seen[l]; ok {
				continue
			}
			seen[l] = struct{}{}
			raw = append(raw, l)
		}
	}
	sort.Strings(raw)
	b.SocialMediasRaw = raw

	setFirst(&b.FacebookURL, ex.SocialLinks[model.FieldFacebookURL])
	setFirst(&b.InstagramHandle, ex.SocialLinks[model.FieldInstagramHandle])
	setFirst(&b.TwitterURL, ex.SocialLinks[model.FieldTwitterURL])
	setFirst(&b.YelpURL, ex.SocialLinks[model.FieldYelpURL])
}

func setFirst(field **string, bucket []string) {
	if *field != nil || len(bucket) == 0 {
		return
	}
	v := bucket[0]
	*field = &v
}

// ExpandEmailRecords produces one record per extracted email, in the
// extraction's sorted order, all pointing at b.
func ExpandEmailRecords(b *model.Business, ex *model.PageExtraction, sourceURL, notes string, at time.Time) []model.EmailRecord {
	records := make([]model.EmailRecord, 0, len(ex.Emails))
	for _, email := range ex.Emails {
		records = append(records, model.EmailRecord{
			Business:       b,
			Email:          email,
			EmailOwnerName: ex.EmailToName[email],
			SourceURL:      sourceURL,
			ScrapeNotes:    notes,
			DiscoveredAt:   at,
		})
	}
	return records
}

// ApplyOwnerOverrides pins owner names for emails present in ex. Keys are
// normalized like extracted emails; empty names are ignored.
func ApplyOwnerOverrides(ex *model.PageExtraction, overrides map[string]string) {
	for email, owner := range overrides {
		if owner == "" {
			continue
		}
		key := extract.NormalizeEmail(email)
		if _, ok := ex.EmailToName[key]; ok {
			v := owner
			ex.EmailToName[key] = &v
		}
	}
}
