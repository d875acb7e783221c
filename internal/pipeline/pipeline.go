// Package pipeline orchestrates discovery, website fetching and contact
// extraction for a list of cities, and replays recorded fixtures through the
// same extraction and merge steps.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/cafescrape/internal/business"
	"github.com/sells-group/cafescrape/internal/extract"
	"github.com/sells-group/cafescrape/internal/fetcher"
	"github.com/sells-group/cafescrape/internal/model"
	"github.com/sells-group/cafescrape/pkg/google"
)

// DefaultMaxResultsPerCity caps the places considered per city.
const DefaultMaxResultsPerCity = 120

// Skip reasons recorded in metrics.
const (
	SkipMissingPlaceID = "missing_place_id"
	SkipNoWebsite      = "no_website"
	SkipFetchFailed    = "fetch_failed"
	SkipParseFailed    = "parse_failed"
	SkipFixtureEntry   = "fixture_incomplete"
)

// Summary counts what a run processed.
type Summary struct {
	Cities          int
	Places          int
	Businesses      int
	WebsitesFetched int
	Records         int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMaxResultsPerCity sets the per-city place cap.
func WithMaxResultsPerCity(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxResults = n
		}
	}
}

// WithExtractor replaces the default contact extractor.
func WithExtractor(e *extract.Extractor) Option {
	return func(p *Pipeline) {
		if e != nil {
			p.extractor = e
		}
	}
}

// WithGeocodeBias geocodes each city first and biases the place search
// toward it within radiusMeters.
func WithGeocodeBias(radiusMeters int) Option {
	return func(p *Pipeline) {
		p.geocode = true
		p.radiusM = radiusMeters
	}
}

// WithClock sets the time source for discovered_at stamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// WithMetrics attaches run counters.
func WithMetrics(m *Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// WithRunID overrides the generated run correlation ID.
func WithRunID(id string) Option {
	return func(p *Pipeline) {
		if id != "" {
			p.runID = id
		}
	}
}

// Pipeline runs cities one at a time, businesses within a city one at a
// time, and never has more than one request in flight.
type Pipeline struct {
	client     google.Client
	fetcher    fetcher.PageFetcher
	extractor  *extract.Extractor
	maxResults int
	geocode    bool
	radiusM    int
	now        func() time.Time
	metrics    *Metrics
	runID      string
	summary    Summary
}

// New creates a Pipeline. client and pf may be nil in fixture mode.
func New(client google.Client, pf fetcher.PageFetcher, opts ...Option) *Pipeline {
	p := &Pipeline{
		client:     client,
		fetcher:    pf,
		extractor:  extract.New(extract.DefaultOptions()),
		maxResults: DefaultMaxResultsPerCity,
		now:        time.Now,
		runID:      uuid.New().String(),
	}
	for _, o := range opts {
		o(p)
	}
	if p.metrics == nil {
		p.metrics = NewMetrics()
	}
	return p
}

// RunID returns the run correlation ID carried on every log line.
func (p *Pipeline) RunID() string { return p.runID }

// Summary returns the totals accumulated so far.
func (p *Pipeline) Summary() Summary { return p.summary }

// Metrics returns the run counters.
func (p *Pipeline) Metrics() *Metrics { return p.metrics }

func (p *Pipeline) logger() *zap.Logger {
	return zap.L().With(zap.String("run_id", p.runID))
}

// SearchQuery is the text query issued for a city.
func SearchQuery(city model.CityTarget) string {
	return "coffee shops in " + city.DisplayName()
}

// Run processes every city in order and concatenates their records.
// A fatal search error aborts the run.
func (p *Pipeline) Run(ctx context.Context, cities []model.CityTarget) ([]model.EmailRecord, error) {
	if p.client == nil || p.fetcher == nil {
		return nil, eris.New("pipeline: live mode requires a search client and a page fetcher")
	}
	log := p.logger()
	log.Info("pipeline: starting live run", zap.Int("cities", len(cities)))

	var all []model.EmailRecord
	for _, city := range cities {
		records, err := p.ProcessCity(ctx, city)
		if err != nil {
			return nil, err
		}
		all = append(all, records...)
	}
	return all, nil
}

// ProcessCity searches one city, fetches each place's website and expands
// the contacts found there into records.
func (p *Pipeline) ProcessCity(ctx context.Context, city model.CityTarget) ([]model.EmailRecord, error) {
	display := city.DisplayName()
	log := p.logger().With(zap.String("city", display))
	log.Info("pipeline: processing city")

	var searchOpts []google.SearchOption
	if p.geocode {
		geo, err := p.client.GeocodeCity(ctx, city.Name, city.Country, city.Region)
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: geocode %s", display)
		}
		if geo == nil {
			log.Warn("pipeline: city not geocoded, searching without location bias")
		} else {
			searchOpts = append(searchOpts, google.WithLocationBias(geo.Geometry.Location, p.radiusM))
		}
	}

	var records []model.EmailRecord
	places := 0
	for place, err := range p.client.CityPlaces(ctx, SearchQuery(city), p.maxResults, searchOpts...) {
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: search %s", display)
		}
		places++
		p.summary.Places++
		p.metrics.Places.Inc()

		recs, err := p.processPlace(ctx, log, city, place)
		if err != nil {
			return nil, err
		}
		records = append(records, recs...)
	}

	p.summary.Cities++
	log.Info("pipeline: city complete",
		zap.Int("places", places),
		zap.Int("records", len(records)),
	)
	return records, nil
}

func (p *Pipeline) processPlace(ctx context.Context, log *zap.Logger, city model.CityTarget, place google.PlaceSummary) ([]model.EmailRecord, error) {
	if place.PlaceID == "" {
		p.skip(log, SkipMissingPlaceID, zap.String("name", place.Name))
		return nil, nil
	}
	log = log.With(zap.String("place_id", place.PlaceID))

	details, err := p.client.PlaceDetails(ctx, place.PlaceID, google.DetailFields())
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: details for %s", place.PlaceID)
	}

	b, err := business.Build(details, city)
	if errors.Is(err, business.ErrMissingPlaceID) {
		p.skip(log, SkipMissingPlaceID)
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: build business %s", place.PlaceID)
	}
	p.summary.Businesses++

	if b.WebsiteURL == nil {
		p.skip(log, SkipNoWebsite, zap.String("name", b.BusinessName))
		return nil, nil
	}
	site := *b.WebsiteURL
	log = log.With(zap.String("url", site))

	html, ok := p.fetcher.Fetch(ctx, site)
	if !ok {
		p.metrics.WebsiteFailures.Inc()
		p.skip(log, SkipFetchFailed)
		return nil, nil
	}
	p.summary.WebsitesFetched++
	p.metrics.WebsitesFetched.Inc()

	ex, err := p.extractor.Parse(html)
	if err != nil {
		p.skip(log, SkipParseFailed, zap.Error(err))
		return nil, nil
	}
	business.EnrichWithSocials(b, ex)

	records := business.ExpandEmailRecords(b, ex, site, model.ScrapeNotesWebsite, p.now())
	p.countRecords(len(records))
	log.Debug("pipeline: website processed", zap.Int("emails", len(records)))
	return records, nil
}

func (p *Pipeline) skip(log *zap.Logger, reason string, fields ...zap.Field) {
	p.metrics.Skipped.WithLabelValues(reason).Inc()
	log.Warn("pipeline: skipping", append([]zap.Field{zap.String("reason", reason)}, fields...)...)
}

func (p *Pipeline) countRecords(n int) {
	p.summary.Records += n
	p.metrics.EmailRecords.Add(float64(n))
}

// LogSummary writes the end-of-run totals.
func (p *Pipeline) LogSummary(outputPath string, written int) {
	s := p.summary
	log := p.logger()
	if written == 0 {
		log.Warn("pipeline: run finished without exporting any records",
			zap.Int("cities", s.Cities),
			zap.Int("places", s.Places),
			zap.Int("businesses", s.Businesses),
		)
		return
	}
	log.Info("pipeline: run complete",
		zap.Int("cities", s.Cities),
		zap.Int("places", s.Places),
		zap.Int("businesses", s.Businesses),
		zap.Int("websites_fetched", s.WebsitesFetched),
		zap.Int("records", written),
		zap.String("output", outputPath),
	)
}
