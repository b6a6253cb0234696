// Package clustering runs a clustering request end to end: normalization,
// vectorization, clustering and reporting.
package clustering

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"

	"github.com/thebtf/textclust/internal/cluster"
	"github.com/thebtf/textclust/internal/failure"
	"github.com/thebtf/textclust/internal/params"
	"github.com/thebtf/textclust/internal/presets"
	"github.com/thebtf/textclust/internal/report"
	"github.com/thebtf/textclust/internal/telemetry"
	"github.com/thebtf/textclust/internal/textproc"
	"github.com/thebtf/textclust/internal/vectorize"
	"github.com/thebtf/textclust/pkg/models"
)

// Sink stores finished analyses.
type Sink interface {
	SaveAnalysis(ctx context.Context, a *models.Analysis) error
}

// Notifier receives an event for every finished request.
type Notifier interface {
	Publish(event models.AnalysisEvent)
}

// Defaults are applied when a request leaves a setting out.
type Defaults struct {
	Algorithm       string
	TopKeywords     int
	MinKeywordRunes int
	SummaryStyle    string
}

// DefaultDefaults returns the built-in request defaults.
func DefaultDefaults() Defaults {
	return Defaults{
		Algorithm:       string(cluster.KMeans),
		TopKeywords:     report.DefaultTopKeywords,
		MinKeywordRunes: report.DefaultMinKeywordRunes,
		SummaryStyle:    report.SummaryFirst,
	}
}

// Pipeline clusters texts. Apart from the swappable preset registry it holds
// only immutable configuration and collaborators, so one Pipeline serves
// concurrent requests.
type Pipeline struct {
	presets  atomic.Pointer[presets.Registry]
	sink     Sink
	notifier Notifier
	recorder *telemetry.Recorder
	now      func() time.Time
	newID    func() string
	enabled  map[cluster.AlgorithmID]bool // nil enables every algorithm
	defaults Defaults
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithDefaults overrides the request defaults.
func WithDefaults(d Defaults) Option {
	return func(p *Pipeline) { p.defaults = d }
}

// WithPresets sets the registry used to resolve ClusterRequest.Preset.
func WithPresets(r *presets.Registry) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.presets.Store(r)
		}
	}
}

// WithAlgorithms restricts the pipeline to the named algorithms. Unknown
// names are logged and skipped; an empty list keeps every algorithm.
func WithAlgorithms(ids []string) Option {
	return func(p *Pipeline) {
		if len(ids) == 0 {
			return
		}
		p.enabled = make(map[cluster.AlgorithmID]bool, len(ids))
		for _, id := range ids {
			alg, err := cluster.Lookup(id)
			if err != nil {
				log.Warn().Str("algorithm", id).Msg("Ignoring unknown algorithm in allow list")
				continue
			}
			p.enabled[alg] = true
		}
	}
}

// WithSink stores every successful analysis in s.
func WithSink(s Sink) Option {
	return func(p *Pipeline) { p.sink = s }
}

// WithNotifier publishes request events to n.
func WithNotifier(n Notifier) Option {
	return func(p *Pipeline) { p.notifier = n }
}

// WithRecorder replaces the default metrics recorder.
func WithRecorder(r *telemetry.Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// WithClock sets the time source used for created_at.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithIDGenerator sets the analysis id generator.
func WithIDGenerator(gen func() string) Option {
	return func(p *Pipeline) { p.newID = gen }
}

// New creates a Pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		defaults: DefaultDefaults(),
		recorder: telemetry.Default(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	p.presets.Store(presets.Empty())
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Models returns the catalog of enabled algorithms.
func (p *Pipeline) Models() []models.ModelInfo {
	catalog := cluster.Catalog()
	if p.enabled == nil {
		return catalog
	}
	out := catalog[:0]
	for _, info := range catalog {
		if p.enabled[cluster.AlgorithmID(info.ID)] {
			out = append(out, info)
		}
	}
	return out
}

// Presets returns the current preset registry.
func (p *Pipeline) Presets() *presets.Registry {
	return p.presets.Load()
}

// SetPresets replaces the preset registry. Requests already running keep
// the registry they started with.
func (p *Pipeline) SetPresets(r *presets.Registry) {
	if r == nil {
		r = presets.Empty()
	}
	p.presets.Store(r)
}

// ClusterTexts clusters req.Texts. Failures are *failure.Error values; no
// partial result is returned with an error.
func (p *Pipeline) ClusterTexts(ctx context.Context, req *models.ClusterRequest) (*models.ClusterResponse, error) {
	start := time.Now()

	algorithm, merged, err := p.resolve(req)
	if err != nil {
		p.finish(ctx, algorithm, len(req.Texts), nil, err, start)
		return nil, err
	}

	resp, err := p.run(ctx, algorithm, req.Texts, merged)
	if err != nil {
		p.finish(ctx, algorithm, len(req.Texts), nil, err, start)
		return nil, err
	}

	if p.sink != nil {
		effective := *req
		effective.AlgorithmID = resp.AlgorithmUsed
		effective.Params = merged
		id := p.newID()
		resp.AnalysisID = id
		if err := p.sink.SaveAnalysis(ctx, models.NewAnalysis(id, &effective, resp)); err != nil {
			resp.AnalysisID = ""
			log.Warn().Err(err).Str("algorithm", resp.AlgorithmUsed).Msg("Failed to store analysis")
		}
	}

	p.finish(ctx, algorithm, len(req.Texts), resp, nil, start)
	return resp, nil
}

// resolve merges the preset named by req, if any, with the request's own
// algorithm and parameters. Request values win.
func (p *Pipeline) resolve(req *models.ClusterRequest) (string, params.Map, error) {
	algorithm := req.Algorithm()
	merged := params.Map(req.Params)

	if req.Preset != "" {
		presetAlgorithm, presetParams, err := p.Presets().Resolve(req.Preset)
		if err != nil {
			return algorithm, nil, failure.New(failure.DegenerateInput, "preset %q cannot be used: %v", req.Preset, err)
		}
		if algorithm == "" {
			algorithm = presetAlgorithm
		}
		merged = params.Merge(presetParams, merged)
	}
	if algorithm == "" {
		algorithm = p.defaults.Algorithm
	}
	if merged == nil {
		merged = params.Map{}
	}
	return algorithm, merged, nil
}

func (p *Pipeline) run(ctx context.Context, algorithm string, texts []string, m params.Map) (*models.ClusterResponse, error) {
	alg, err := cluster.Lookup(algorithm)
	if err != nil {
		return nil, err
	}
	if p.enabled != nil && !p.enabled[alg] {
		return nil, failure.New(failure.UnknownAlgorithm, "algorithm %q is disabled", alg)
	}
	opts, err := p.parseOptions(m)
	if err != nil {
		return nil, err
	}

	var corpus *textproc.Corpus
	if err := telemetry.Stage(ctx, "normalize", func() (err error) {
		corpus, err = textproc.Normalize(texts, opts.text)
		return err
	}); err != nil {
		return nil, err
	}
	if corpus.Len() < cluster.MinDocuments {
		return nil, failure.New(failure.InsufficientCorpusSize,
			"%s needs at least %d non-empty documents, got %d", alg, cluster.MinDocuments, corpus.Len())
	}

	var (
		matrix *mat.Dense
		vocab  *vectorize.Vocabulary
	)
	if err := telemetry.Stage(ctx, "vectorize", func() (err error) {
		matrix, vocab, err = vectorize.Fit(corpus, opts.vector)
		return err
	}); err != nil {
		return nil, err
	}

	spec, err := cluster.ParseSpec(string(alg), m, corpus.Len())
	if err != nil {
		return nil, err
	}
	var assignment cluster.Assignment
	if err := telemetry.Stage(ctx, "cluster", func() (err error) {
		assignment, err = cluster.Run(matrix, spec)
		return err
	}); err != nil {
		return nil, err
	}

	var rep *report.Report
	if err := telemetry.Stage(ctx, "report", func() (err error) {
		rep, err = report.Build(corpus, matrix, vocab, assignment, opts.report)
		return err
	}); err != nil {
		return nil, err
	}

	log.Debug().
		Str("algorithm", string(alg)).
		Stringer("corpus", corpus).
		Int("features", vocab.Len()).
		Int("clusters", len(rep.Clusters)).
		Int("noise", len(rep.Noise)).
		Msg("Clustered texts")

	return &models.ClusterResponse{
		Clusters:       rep.Clusters,
		TotalTexts:     corpus.OriginalSize,
		AlgorithmUsed:  string(alg),
		Tokenizer:      corpus.Tokenizer,
		CreatedAt:      p.now().UTC(),
		Metrics:        rep.Metrics,
		DroppedIndices: nonNil(corpus.Dropped),
		NoiseIndices:   nonNil(rep.Noise),
		NoiseCount:     len(rep.Noise),
	}, nil
}

// finish records metrics and publishes the outcome of one request.
func (p *Pipeline) finish(ctx context.Context, algorithm string, docs int, resp *models.ClusterResponse, err error, start time.Time) {
	outcome := telemetry.OutcomeOK
	clusters := 0
	event := models.AnalysisEvent{
		Time:       p.now().UTC(),
		Type:       models.EventAnalysisCompleted,
		Algorithm:  algorithm,
		TotalTexts: docs,
	}

	if err != nil {
		if IsBadInput(err) {
			outcome = telemetry.OutcomeBadInput
			log.Debug().Err(err).Str("algorithm", algorithm).Msg("Rejected clustering request")
		} else {
			outcome = telemetry.OutcomeInternal
			log.Error().Err(err).Str("algorithm", algorithm).Msg("Clustering failed")
		}
		kind, ok := failure.KindOf(err)
		if !ok {
			kind = "internal"
		}
		event.Type = models.EventAnalysisFailed
		event.ErrorKind = string(kind)
	} else {
		clusters = len(resp.Clusters)
		event.Algorithm = resp.AlgorithmUsed
		event.AnalysisID = resp.AnalysisID
		event.Clusters = clusters
	}

	p.recorder.Record(ctx, algorithm, outcome, docs, clusters, time.Since(start))
	if p.notifier != nil {
		p.notifier.Publish(event)
	}
}

// IsBadInput reports whether err is a client error.
func IsBadInput(err error) bool {
	kind, ok := failure.KindOf(err)
	return ok && kind.BadInput()
}

func nonNil(s []int) []int {
	if s == nil {
		return []int{}
	}
	return s
}
