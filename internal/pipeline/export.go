package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/cafescrape/internal/model"
)

const listSeparator = ", "

// exportRow is one CSV line. Field order is the column order.
type exportRow struct {
	BusinessName       string `csv:"business_name"`
	InstagramHandle    string `csv:"instagram_handle"`
	Location           string `csv:"location"`
	FullAddress        string `csv:"full_address"`
	Phone              string `csv:"phone"`
	AdditionalPhones   string `csv:"additional_phones"`
	GoogleMapsURL      string `csv:"google_maps_url"`
	WebsiteURL         string `csv:"website_url"`
	OpeningHours       string `csv:"opening_hours"`
	GoogleKnowledgeURL string `csv:"google_knowledge_url"`
	SocialMediasRaw    string `csv:"social_medias_raw"`
	FacebookURL        string `csv:"facebook_url"`
	TwitterURL         string `csv:"twitter_url"`
	YelpURL            string `csv:"yelp_url"`
	Email              string `csv:"email"`
	EmailOwnerName     string `csv:"email_owner_name"`
	SourceURL          string `csv:"source_url"`
	ScrapeNotes        string `csv:"scrape_notes"`
	DiscoveredAt       string `csv:"discovered_at"`
}

func toRow(r model.EmailRecord) exportRow {
	b := r.Business
	if b == nil {
		b = &model.Business{}
	}
	return exportRow{
		BusinessName:       b.BusinessName,
		InstagramHandle:    model.Deref(b.InstagramHandle),
		Location:           b.Location,
		FullAddress:        b.FullAddress,
		Phone:              model.Deref(b.Phone),
		AdditionalPhones:   strings.Join(b.AdditionalPhones, listSeparator),
		GoogleMapsURL:      model.Deref(b.GoogleMapsURL),
		WebsiteURL:         model.Deref(b.WebsiteURL),
		OpeningHours:       model.Deref(b.OpeningHours),
		GoogleKnowledgeURL: model.Deref(b.GoogleKnowledgeURL),
		SocialMediasRaw:    strings.Join(b.SocialMediasRaw, listSeparator),
		FacebookURL:        model.Deref(b.FacebookURL),
		TwitterURL:         model.Deref(b.TwitterURL),
		YelpURL:            model.Deref(b.YelpURL),
		Email:              r.Email,
		EmailOwnerName:     model.Deref(r.EmailOwnerName),
		SourceURL:          r.SourceURL,
		ScrapeNotes:        r.ScrapeNotes,
		DiscoveredAt:       r.DiscoveredAt.Format(time.RFC3339),
	}
}

// WriteEmailRecords writes records as CSV to path, creating parent
// directories. With zero records nothing is written and a warning is logged.
func WriteEmailRecords(records []model.EmailRecord, path string) (int, error) {
	if len(records) == 0 {
		zap.L().Warn("export: no records to write", zap.String("path", path))
		return 0, nil
	}

	rows := make([]exportRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, toRow(r))
	}
	data, err := csvutil.Marshal(rows)
	if err != nil {
		return 0, eris.Wrap(err, "export: encode csv")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, eris.Wrapf(err, "export: create directory %s", dir)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return 0, eris.Wrapf(err, "export: write %s", path)
	}

	zap.L().Info("export: wrote records", zap.Int("rows", len(rows)), zap.String("path", path))
	return len(rows), nil
}
