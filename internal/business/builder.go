// Package business maps search-API place records into Business entities and
// merges page extractions into them.
package business

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/cafescrape/internal/model"
	"github.com/sells-group/cafescrape/pkg/google"
)

// ErrMissingPlaceID is returned when a detail record has no place ID.
var ErrMissingPlaceID = eris.New("business: missing place id")

const hoursSeparator = " | "

// Build converts a place details record into a Business located in city.
func Build(d *google.PlaceDetails, city model.CityTarget) (*model.Business, error) {
	if d == nil || d.PlaceID == "" {
		return nil, ErrMissingPlaceID
	}

	b := &model.Business{
		PlaceID:          d.PlaceID,
		BusinessName:     strings.TrimSpace(d.Name),
		Location:         city.DisplayName(),
		FullAddress:      strings.TrimSpace(d.FormattedAddress),
		AdditionalPhones: []string{},
		GoogleMapsURL:    model.StringPtr(d.URL),
		WebsiteURL:       model.StringPtr(d.Website),
		OpeningHours:     openingHours(d.OpeningHours),
		SocialMediasRaw:  []string{},
		SourcePayload:    d.Raw,
	}

	// International format takes priority over the local one.
	for _, p := range []string{d.InternationalPhoneNumber, d.FormattedPhoneNumber} {
		if strings.TrimSpace(p) == "" {
			continue
		}
		if b.Phone == nil {
			b.Phone = &p
			continue
		}
		b.AdditionalPhones = append(b.AdditionalPhones, p)
	}
	if b.Phone != nil {
		checkPhone(b.PlaceID, *b.Phone)
	}

	return b, nil
}

func openingHours(h *google.OpeningHours) *string {
	if h == nil || len(h.WeekdayText) == 0 {
		return nil
	}
	s := strings.Join(h.WeekdayText, hoursSeparator)
	return &s
}

// checkPhone logs phones in international format that do not parse as a
// valid number. The value is kept as-is either way.
func checkPhone(placeID, phone string) {
	if !strings.HasPrefix(strings.TrimSpace(phone), "+") {
		return
	}
	num, err := phonenumbers.Parse(phone, "")
	if err != nil || !phonenumbers.IsValidNumber(num) {
		zap.L().Debug("business: phone failed validation",
			zap.String("place_id", placeID),
			zap.String("phone", phone),
		)
	}
}
