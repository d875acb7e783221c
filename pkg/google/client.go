// Package google wraps the Google Maps Places and Geocoding JSON APIs used to
// discover businesses. Requests are issued one at a time and throttled with
// a fixed delay after each response.
package google

import (
	"context"
	"encoding/json"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/cafescrape/internal/resilience"
)

const (
	defaultBaseURL      = "https://maps.googleapis.com/maps/api"
	textSearchPath      = "/place/textsearch/json"
	detailsPath         = "/place/details/json"
	geocodePath         = "/geocode/json"
	defaultRequestDelay = 1500 * time.Millisecond
	defaultPlaceType    = "cafe"

	// pageTokenDelay is how long a next_page_token needs before the API
	// accepts it.
	pageTokenDelay = 2 * time.Second
	// minQuotaBackoff is the floor for the wait after OVER_QUERY_LIMIT.
	minQuotaBackoff = 2 * time.Second
)

// API status values accepted in a response body. Anything else is fatal.
const (
	StatusOK             = "OK"
	StatusZeroResults    = "ZERO_RESULTS"
	StatusOverQueryLimit = "OVER_QUERY_LIMIT"
)

var (
	// ErrUnexpectedStatus is returned when the API reports a status other
	// than OK, ZERO_RESULTS or OVER_QUERY_LIMIT.
	ErrUnexpectedStatus = eris.New("google: unexpected api status")
	// ErrNoDetails is returned when a details response carries no result.
	ErrNoDetails = eris.New("google: no details returned")
)

// DetailFields returns the field list requested for place details.
func DetailFields() []string {
	return []string{
		"place_id",
		"name",
		"formatted_address",
		"international_phone_number",
		"formatted_phone_number",
		"opening_hours",
		"website",
		"url",
		"user_ratings_total",
		"rating",
	}
}

// Client performs Google Maps API operations.
type Client interface {
	// GeocodeCity returns the first geocoding result, or nil when the API
	// found nothing.
	GeocodeCity(ctx context.Context, city, country, region string) (*GeocodeResult, error)
	// CityPlaces yields up to maxResults place summaries for a keyword
	// search, following pagination tokens. Each range over the sequence
	// issues fresh requests.
	CityPlaces(ctx context.Context, query string, maxResults int, opts ...SearchOption) iter.Seq2[PlaceSummary, error]
	// PlaceDetails fetches the requested fields for one place.
	PlaceDetails(ctx context.Context, placeID string, fields []string) (*PlaceDetails, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRequestDelay sets the fixed wait after every successful request.
func WithRequestDelay(d time.Duration) Option {
	return func(c *httpClient) {
		c.requestDelay = d
	}
}

// WithSleeper replaces the real timer used for throttling.
func WithSleeper(s resilience.Sleeper) Option {
	return func(c *httpClient) {
		c.sleep = s
	}
}

type httpClient struct {
	apiKey       string
	baseURL      string
	http         *http.Client
	requestDelay time.Duration
	sleep        resilience.Sleeper
}

// NewClient creates a Google Maps API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:       apiKey,
		baseURL:      defaultBaseURL,
		requestDelay: defaultRequestDelay,
		sleep:        resilience.Sleep,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// envelope is the shape shared by all legacy Maps JSON responses.
type envelope struct {
	Status        string            `json:"status"`
	ErrorMessage  string            `json:"error_message,omitempty"`
	NextPageToken string            `json:"next_page_token,omitempty"`
	Results       []json.RawMessage `json:"results,omitempty"`
	Result        json.RawMessage   `json:"result,omitempty"`
}

// get performs one throttled API call with the key injected.
func (c *httpClient) get(ctx context.Context, path string, params url.Values) (*envelope, error) {
	q := url.Values{}
	for k, v := range params {
		q[k] = append([]string(nil), v...)
	}
	q.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "google: create request")
	}

	zap.L().Debug("google: request", zap.String("path", path))
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "google: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "google: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("google: unexpected http status %d: %s", resp.StatusCode, string(body))
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, eris.Wrap(err, "google: unmarshal response")
	}

	switch env.Status {
	case StatusOK, StatusZeroResults:
		if err := c.sleep(ctx, c.requestDelay); err != nil {
			return nil, eris.Wrap(err, "google: throttle")
		}
	case StatusOverQueryLimit:
		wait := max(2*c.requestDelay, minQuotaBackoff)
		zap.L().Warn("google: hit query limit, backing off",
			zap.String("path", path),
			zap.Duration("wait", wait),
		)
		if err := c.sleep(ctx, wait); err != nil {
			return nil, eris.Wrap(err, "google: quota backoff")
		}
	default:
		return nil, eris.Wrapf(ErrUnexpectedStatus, "%s %s: %s", path, env.Status, env.ErrorMessage)
	}

	return &env, nil
}

// GeocodeResult is the first match returned by the Geocoding API.
type GeocodeResult struct {
	PlaceID          string         `json:"place_id"`
	FormattedAddress string         `json:"formatted_address"`
	Geometry         Geometry       `json:"geometry"`
	Raw              map[string]any `json:"-"`
}

// Geometry holds a result's coordinates.
type Geometry struct {
	Location LatLng `json:"location"`
}

// LatLng is a coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (c *httpClient) GeocodeCity(ctx context.Context, city, country, region string) (*GeocodeResult, error) {
	components := []string{"country:" + country}
	if region != "" {
		components = append(components, "administrative_area:"+region)
	}
	env, err := c.get(ctx, geocodePath, url.Values{
		"address":    {city},
		"components": {strings.Join(components, "|")},
	})
	if err != nil {
		return nil, eris.Wrap(err, "google: geocode")
	}
	if len(env.Results) == 0 {
		zap.L().Warn("google: no geocoding result",
			zap.String("city", city),
			zap.String("country", country),
		)
		return nil, nil
	}

	var res GeocodeResult
	if err := decodeWithRaw(env.Results[0], &res, &res.Raw); err != nil {
		return nil, eris.Wrap(err, "google: decode geocode result")
	}
	return &res, nil
}

// PlaceSummary is one entry of a text search page.
type PlaceSummary struct {
	PlaceID          string         `json:"place_id"`
	Name             string         `json:"name"`
	FormattedAddress string         `json:"formatted_address"`
	Raw              map[string]any `json:"-"`
}

// SearchOption tunes a place search.
type SearchOption func(*searchOptions)

type searchOptions struct {
	placeType string
	location  *LatLng
	radiusM   int
}

// WithLocationBias biases results toward a point.
func WithLocationBias(loc LatLng, radiusMeters int) SearchOption {
	return func(o *searchOptions) {
		o.location = &loc
		o.radiusM = radiusMeters
	}
}

// WithPlaceType restricts results to one place type. Empty disables the filter.
func WithPlaceType(t string) SearchOption {
	return func(o *searchOptions) {
		o.placeType = t
	}
}

func (c *httpClient) CityPlaces(ctx context.Context, query string, maxResults int, opts ...SearchOption) iter.Seq2[PlaceSummary, error] {
	so := searchOptions{placeType: defaultPlaceType}
	for _, o := range opts {
		o(&so)
	}

	return func(yield func(PlaceSummary, error) bool) {
		if maxResults <= 0 {
			return
		}

		params := url.Values{"query": {query}}
		if so.placeType != "" {
			params.Set("type", so.placeType)
		}
		if so.location != nil {
			params.Set("location", strconv.FormatFloat(so.location.Lat, 'f', -1, 64)+","+strconv.FormatFloat(so.location.Lng, 'f', -1, 64))
			if so.radiusM > 0 {
				params.Set("radius", strconv.Itoa(so.radiusM))
			}
		}

		fetched := 0
		for {
			env, err := c.get(ctx, textSearchPath, params)
			if err != nil {
				yield(PlaceSummary{}, eris.Wrap(err, "google: place search"))
				return
			}

			for _, raw := range env.Results {
				var p PlaceSummary
				if err := decodeWithRaw(raw, &p, &p.Raw); err != nil {
					yield(PlaceSummary{}, eris.Wrap(err, "google: decode place"))
					return
				}
				if !yield(p, nil) {
					return
				}
				fetched++
				if fetched >= maxResults {
					return
				}
			}

			if env.NextPageToken == "" {
				return
			}
			zap.L().Debug("google: waiting for next page token to activate")
			if err := c.sleep(ctx, pageTokenDelay); err != nil {
				yield(PlaceSummary{}, eris.Wrap(err, "google: page token wait"))
				return
			}
			params.Set("pagetoken", env.NextPageToken)
		}
	}
}

// PlaceDetails is a place details result restricted to DetailFields.
type PlaceDetails struct {
	PlaceID                  string         `json:"place_id"`
	Name                     string         `json:"name"`
	FormattedAddress         string         `json:"formatted_address"`
	InternationalPhoneNumber string         `json:"international_phone_number"`
	FormattedPhoneNumber     string         `json:"formatted_phone_number"`
	OpeningHours             *OpeningHours  `json:"opening_hours,omitempty"`
	Website                  string         `json:"website"`
	URL                      string         `json:"url"`
	UserRatingsTotal         int            `json:"user_ratings_total"`
	Rating                   float64        `json:"rating"`
	Raw                      map[string]any `json:"-"`
}

// OpeningHours holds the human-readable weekly schedule.
type OpeningHours struct {
	OpenNow     *bool    `json:"open_now,omitempty"`
	WeekdayText []string `json:"weekday_text"`
}

func (c *httpClient) PlaceDetails(ctx context.Context, placeID string, fields []string) (*PlaceDetails, error) {
	env, err := c.get(ctx, detailsPath, url.Values{
		"place_id": {placeID},
		"fields":   {strings.Join(fields, ",")},
	})
	if err != nil {
		return nil, eris.Wrap(err, "google: place details")
	}

	trimmed := strings.TrimSpace(string(env.Result))
	if trimmed == "" || trimmed == "null" || trimmed == "{}" {
		return nil, eris.Wrapf(ErrNoDetails, "place %s", placeID)
	}

	var d PlaceDetails
	if err := decodeWithRaw(env.Result, &d, &d.Raw); err != nil {
		return nil, eris.Wrap(err, "google: decode place details")
	}
	return &d, nil
}

// decodeWithRaw fills both the typed view and the untyped payload.
func decodeWithRaw(data []byte, typed any, raw *map[string]any) error {
	if err := json.Unmarshal(data, typed); err != nil {
		return err
	}
	return json.Unmarshal(data, raw)
}
