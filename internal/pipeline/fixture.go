package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/cafescrape/internal/business"
	"github.com/sells-group/cafescrape/internal/model"
)

// FixtureSourceFallback is the source URL used when an entry has neither a
// source_url nor a website_url.
const FixtureSourceFallback = "demo"

// ErrFixtureNotSequence is returned when a fixture file's top level is not a
// list of entries.
var ErrFixtureNotSequence = eris.New("pipeline: fixture must be a sequence of entries")

// FixtureEntry is one recorded business and the HTML of its website.
type FixtureEntry struct {
	Business            yaml.Node         `yaml:"business"`
	HTML                *string           `yaml:"html"`
	SourceURL           string            `yaml:"source_url"`
	ScrapeNotes         string            `yaml:"scrape_notes"`
	EmailOwnerOverrides map[string]string `yaml:"email_owner_overrides"`
}

// LoadFixture reads a JSON or YAML fixture file.
func LoadFixture(path string) ([]FixtureEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: read fixture %s", path)
	}
	entries, err := ParseFixture(data)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: fixture %s", path)
	}
	return entries, nil
}

// ParseFixture decodes fixture entries from JSON or YAML bytes. Input that
// looks like JSON is decoded as JSON first, since some valid JSON escapes
// (such as \/) are rejected by YAML.
func ParseFixture(data []byte) ([]FixtureEntry, error) {
	root, err := fixtureRoot(data)
	if err != nil {
		return nil, err
	}
	if root.Kind != yaml.SequenceNode {
		return nil, ErrFixtureNotSequence
	}

	var entries []FixtureEntry
	if err := root.Decode(&entries); err != nil {
		return nil, eris.Wrap(err, "pipeline: decode fixture entries")
	}
	return entries, nil
}

// fixtureRoot returns the top-level value node of a fixture document.
func fixtureRoot(data []byte) (*yaml.Node, error) {
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '{') {
		var v any
		if err := json.Unmarshal(trimmed, &v); err == nil {
			var n yaml.Node
			if err := n.Encode(v); err != nil {
				return nil, eris.Wrap(err, "pipeline: convert json fixture")
			}
			return &n, nil
		}
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "pipeline: decode fixture")
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, ErrFixtureNotSequence
	}
	return doc.Content[0], nil
}

// RunFixture replays entries through extraction and merge. Entries missing
// business data or HTML are skipped with a warning.
func (p *Pipeline) RunFixture(ctx context.Context, entries []FixtureEntry) ([]model.EmailRecord, error) {
	log := p.logger()
	log.Info("pipeline: starting fixture run", zap.Int("entries", len(entries)))

	var records []model.EmailRecord
	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "pipeline: fixture run")
		}
		entryLog := log.With(zap.Int("entry", i))

		if !hasBusiness(entry.Business) || entry.HTML == nil {
			p.skip(entryLog, SkipFixtureEntry)
			continue
		}

		var fields business.FixtureBusiness
		if err := entry.Business.Decode(&fields); err != nil {
			return nil, eris.Wrapf(err, "pipeline: decode fixture business %d", i)
		}
		var raw map[string]any
		if err := entry.Business.Decode(&raw); err != nil {
			return nil, eris.Wrapf(err, "pipeline: decode fixture payload %d", i)
		}
		b := business.FromFixture(fields, raw)
		p.summary.Businesses++

		ex, err := p.extractor.Parse(*entry.HTML)
		if err != nil {
			p.skip(entryLog, SkipParseFailed, zap.Error(err))
			continue
		}
		business.EnrichWithSocials(b, ex)
		business.ApplyOwnerOverrides(ex, entry.EmailOwnerOverrides)

		recs := business.ExpandEmailRecords(b, ex, fixtureSource(entry, b), fixtureNotes(entry), p.now())
		p.countRecords(len(recs))
		records = append(records, recs...)
	}
	return records, nil
}

func hasBusiness(n yaml.Node) bool {
	return n.Kind == yaml.MappingNode && len(n.Content) > 0
}

func fixtureSource(e FixtureEntry, b *model.Business) string {
	if e.SourceURL != "" {
		return e.SourceURL
	}
	if b.WebsiteURL != nil {
		return *b.WebsiteURL
	}
	return FixtureSourceFallback
}

func fixtureNotes(e FixtureEntry) string {
	if e.ScrapeNotes != "" {
		return e.ScrapeNotes
	}
	return model.ScrapeNotesDemoFixture
}
