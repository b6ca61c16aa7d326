// Package scanner turns search hits and free-text reports into validated,
// deduplicated incidents.
package scanner

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/edvin/warroom/internal/cache"
	"github.com/edvin/warroom/internal/fault"
	"github.com/edvin/warroom/internal/llm"
	"github.com/edvin/warroom/internal/model"
	"github.com/edvin/warroom/internal/platform"
	"github.com/edvin/warroom/internal/registry"
	"github.com/edvin/warroom/internal/source"
)

const (
	// degreesPerKm approximates incident coordinates from the reported distance.
	degreesPerKm = 0.009

	titleKeyLength     = 50
	descriptionLength  = 500
	defaultConcurrency = 4
)

// Config controls what a scan looks for.
type Config struct {
	Site         llm.Site
	Address      string
	Include      []string
	MaxIncidents int
	Concurrency  int
}

// Deps are the capabilities a scanner consumes. Searcher may be nil, in which
// case scheduled scans return the demo feed.
type Deps struct {
	Searcher   source.Searcher
	Demo       *source.Demo
	Classifier llm.Classifier
	Queries    *cache.QueryCache[[]source.Candidate]
	Dedup      *cache.DedupGate
	Registry   *registry.Registry
}

type Scanner struct {
	cfg    Config
	deps   Deps
	logger zerolog.Logger
	now    func() time.Time
}

func New(cfg Config, deps Deps, logger zerolog.Logger) *Scanner {
	if cfg.MaxIncidents <= 0 {
		cfg.MaxIncidents = 10
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if deps.Demo == nil {
		deps.Demo = source.NewDemo()
	}
	if deps.Registry == nil {
		deps.Registry = registry.Default()
	}
	return &Scanner{
		cfg:    cfg,
		deps:   deps,
		logger: logger.With().Str("component", "scanner").Logger(),
		now:    time.Now,
	}
}

// Scan returns the incidents for one workflow run. An empty query scans every
// category; a non-empty query is searched and, when search returns no hits,
// classified directly as a free-text report. Hits that were all processed
// before yield no incidents rather than a fresh classification.
func (s *Scanner) Scan(ctx context.Context, query string) ([]model.Incident, error) {
	query = strings.TrimSpace(query)

	if query == "" {
		if s.deps.Searcher == nil {
			s.logger.Debug().Msg("search disabled, using demo feed")
			return s.finalize(s.deps.Demo.Incidents(), true), nil
		}
		found, _, err := s.searchAll(ctx, source.Queries(s.cfg.Address, s.cfg.Include))
		return found, err
	}

	if s.deps.Searcher != nil {
		found, hits, err := s.searchAll(ctx, []source.Query{{Text: query, Source: source.TagNews}})
		if err != nil {
			s.logger.Warn().Err(err).Str("query", query).Msg("query search failed, classifying text directly")
		}
		if hits > 0 {
			return found, nil
		}
	}
	return s.classifyReport(ctx, query)
}

// searchAll fans out over queries and reports how many search hits it saw.
// Failing queries are skipped; an error is returned only when every query
// failed.
func (s *Scanner) searchAll(ctx context.Context, queries []source.Query) ([]model.Incident, int, error) {
	if len(queries) == 0 {
		return []model.Incident{}, 0, nil
	}

	results := make([][]model.Incident, len(queries))
	var (
		mu     sync.Mutex
		failed []error
		hits   int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, q := range queries {
		g.Go(func() error {
			incidents, n, err := s.scanQuery(gctx, q)
			mu.Lock()
			hits += n
			if err != nil {
				failed = append(failed, err)
			}
			mu.Unlock()
			if err != nil {
				s.logger.Warn().Err(err).Str("query", q.Text).Str("source", q.Source).Msg("source query failed, skipping")
				return nil
			}
			results[i] = incidents
			return nil
		})
	}
	_ = g.Wait()

	if len(failed) == len(queries) {
		return nil, 0, fault.Wrap(fault.ErrSource, "scan", fmt.Errorf("all %d queries failed: %w", len(queries), errors.Join(failed...)))
	}

	var all []model.Incident
	for _, batch := range results {
		all = append(all, batch...)
	}
	return s.finalize(all, true), hits, nil
}

// scanQuery searches one query and analyzes every hit whose fingerprint it claims.
// It returns the incidents and the number of hits the search produced.
func (s *Scanner) scanQuery(ctx context.Context, q source.Query) ([]model.Incident, int, error) {
	search := func(ctx context.Context) ([]source.Candidate, error) {
		return s.deps.Searcher.Search(ctx, q.Text)
	}

	var candidates []source.Candidate
	var err error
	if s.deps.Queries != nil {
		candidates, err = s.deps.Queries.Lookup(ctx, q.Text, search)
	} else {
		candidates, err = search(ctx)
	}
	if err != nil {
		return nil, 0, err
	}

	var out []model.Incident
	for _, c := range candidates {
		if ctx.Err() != nil {
			return out, len(candidates), nil
		}
		fp := platform.Fingerprint(c.Content, c.URL)
		if s.deps.Dedup != nil && !s.deps.Dedup.Claim(ctx, fp) {
			continue
		}

		inc, err := s.analyze(ctx, c, q.Source)
		if err != nil {
			if s.deps.Dedup != nil {
				s.deps.Dedup.Release(ctx, fp)
			}
			s.logger.Warn().Err(err).Str("url", c.URL).Msg("dropping candidate")
			continue
		}
		out = append(out, inc)
	}
	return out, len(candidates), nil
}

// analyze classifies one candidate and builds a validated incident.
func (s *Scanner) analyze(ctx context.Context, c source.Candidate, tag string) (model.Incident, error) {
	if s.deps.Classifier == nil {
		return model.Incident{}, fault.Wrap(fault.ErrProvider, "analyze candidate", fmt.Errorf("no provider configured"))
	}

	hintText := c.Title + " " + truncate(c.Content, descriptionLength)
	location := s.deps.Registry.LocationHint(hintText)
	if location == "" {
		location = "Delhi NCR Region"
	}

	res := s.deps.Classifier.Classify(ctx, llm.CandidateAnalysisPrompt(s.cfg.Site), llm.CandidateText(llm.Candidate{
		Title:     c.Title,
		Content:   c.Content,
		URL:       c.URL,
		Location:  location,
		Published: c.Published,
	}))
	if !res.Ok() {
		return model.Incident{}, res.Err
	}
	a, err := llm.DecodeAnalysis(res.Value)
	if err != nil {
		return model.Incident{}, err
	}

	title := strings.TrimSpace(c.Title)
	if title == "" {
		title = "Unknown Incident"
	}
	inc := model.Incident{
		ID:          platform.NewID(),
		Title:       title,
		Description: truncate(c.Content, descriptionLength),
		Type:        a.Type,
		Severity:    a.Severity,
		Location: model.Location{
			Lat:        s.cfg.Site.Lat + a.DistanceKm*degreesPerKm,
			Lng:        s.cfg.Site.Lng + a.DistanceKm*degreesPerKm,
			Address:    a.LocationExtracted,
			DistanceKm: a.DistanceKm,
		},
		Casualties:             a.Casualties,
		InjuryTypes:            a.InjuryTypes,
		RecommendedDepartments: a.Departments,
		ETAMinutes:             a.ETAMinutes,
		Source:                 tag,
		SourceURL:              c.URL,
		DetectedAt:             s.now().UTC(),
		ConfidenceScore:        a.Casualties.Confidence,
		Analysis:               a.Notes,
	}
	if err := inc.Validate(); err != nil {
		return model.Incident{}, fault.Wrap(fault.ErrValidation, "analyze candidate", err)
	}
	return inc, nil
}

// classifyReport asks the provider to extract incidents from free text. A
// provider failure is returned: there is nothing to fall back to.
func (s *Scanner) classifyReport(ctx context.Context, text string) ([]model.Incident, error) {
	if s.deps.Classifier == nil {
		return nil, fault.Wrap(fault.ErrProvider, "classify report", fmt.Errorf("no provider configured"))
	}

	res := s.deps.Classifier.Classify(ctx, llm.QueryScanPrompt(), "Analyze this situation for potential emergencies: "+text)
	if !res.Ok() {
		return nil, res.Err
	}
	found, summary, err := llm.DecodeIncidents(res.Value)
	if err != nil {
		return nil, err
	}
	s.logger.Debug().Int("incidents", len(found)).Str("summary", summary).Msg("classified report")

	incidents := make([]model.Incident, 0, len(found))
	for _, q := range found {
		inc := s.fromReport(q)
		if err := inc.Validate(); err != nil {
			s.logger.Warn().Err(err).Str("title", q.Title).Msg("dropping invalid incident")
			continue
		}
		incidents = append(incidents, inc)
	}
	return s.finalize(incidents, false), nil
}

// fromReport widens a single casualty figure into an estimate using the
// incident-type profile.
func (s *Scanner) fromReport(q llm.QueryIncident) model.Incident {
	profile := s.deps.Registry.Profile(q.Type)

	likely := q.Casualties
	estimate := model.CasualtyEstimate{
		Min:        min(profile.Casualties.Min, likely),
		Likely:     likely,
		Max:        max(profile.Casualties.Max, likely),
		Confidence: q.Confidence,
	}

	injuries := q.InjuryTypes
	if len(injuries) == 0 {
		injuries = slices.Clone(profile.InjuryTypes)
	}

	return model.Incident{
		ID:          platform.NewID(),
		Title:       q.Title,
		Description: q.Description,
		Type:        q.Type,
		Severity:    q.Severity,
		Location: model.Location{
			Lat:        s.cfg.Site.Lat + q.DistanceKm*degreesPerKm,
			Lng:        s.cfg.Site.Lng + q.DistanceKm*degreesPerKm,
			Address:    q.Location,
			DistanceKm: q.DistanceKm,
		},
		Casualties:             estimate,
		InjuryTypes:            injuries,
		RecommendedDepartments: slices.Clone(profile.Departments),
		ETAMinutes:             q.ETAMinutes,
		Source:                 "scanner",
		DetectedAt:             s.now().UTC(),
		ConfidenceScore:        q.Confidence,
	}
}

// finalize applies the relevance filters, removes near-duplicate titles,
// sorts by severity then distance and caps the result.
func (s *Scanner) finalize(incidents []model.Incident, filter bool) []model.Incident {
	seen := make(map[string]bool, len(incidents))
	out := make([]model.Incident, 0, len(incidents))
	for _, inc := range incidents {
		if filter {
			if inc.Severity.Rank() > model.SeverityMedium.Rank() {
				continue
			}
			if s.cfg.Site.RadiusKm > 0 && inc.Location.DistanceKm > s.cfg.Site.RadiusKm {
				continue
			}
		}
		key := truncate(strings.ToLower(inc.Title), titleKeyLength)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, inc)
	}

	slices.SortStableFunc(out, func(a, b model.Incident) int {
		if c := cmp.Compare(a.Severity.Rank(), b.Severity.Rank()); c != 0 {
			return c
		}
		return cmp.Compare(a.Location.DistanceKm, b.Location.DistanceKm)
	})

	if len(out) > s.cfg.MaxIncidents {
		out = out[:s.cfg.MaxIncidents]
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
