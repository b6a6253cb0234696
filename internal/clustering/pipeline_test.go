package clustering

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/thebtf/textclust/internal/failure"
	"github.com/thebtf/textclust/internal/presets"
	"github.com/thebtf/textclust/pkg/models"
)

var topicTexts = []string{"the cat sat", "the cat ran", "stocks rose today", "markets fell today"}

type memorySink struct {
	err   error
	saved []*models.Analysis
	mu    sync.Mutex
}

func (s *memorySink) SaveAnalysis(_ context.Context, a *models.Analysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, a)
	return nil
}

type memoryNotifier struct {
	events []models.AnalysisEvent
	mu     sync.Mutex
}

func (n *memoryNotifier) Publish(e models.AnalysisEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

type PipelineSuite struct {
	suite.Suite
	pipeline *Pipeline
	sink     *memorySink
	notifier *memoryNotifier
	fixed    time.Time
}

func TestPipelineSuite(t *testing.T) {
	suite.Run(t, new(PipelineSuite))
}

func (s *PipelineSuite) SetupTest() {
	s.sink = &memorySink{}
	s.notifier = &memoryNotifier{}
	s.fixed = time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	s.pipeline = New(
		WithSink(s.sink),
		WithNotifier(s.notifier),
		WithClock(func() time.Time { return s.fixed }),
		WithIDGenerator(func() string { return "analysis-1" }),
	)
}

func (s *PipelineSuite) cluster(req *models.ClusterRequest) (*models.ClusterResponse, error) {
	return s.pipeline.ClusterTexts(context.Background(), req)
}

func (s *PipelineSuite) TestTopicSplit() {
	resp, err := s.cluster(&models.ClusterRequest{
		AlgorithmID: "kmeans",
		Texts:       topicTexts,
		Params:      map[string]any{"num_clusters": 2},
	})
	s.Require().NoError(err)

	s.Equal("kmeans", resp.AlgorithmUsed)
	s.Equal(4, resp.TotalTexts)
	s.Equal(s.fixed.UTC(), resp.CreatedAt)
	s.Equal("word", resp.Tokenizer)
	s.Require().Len(resp.Clusters, 2)

	s.Equal([]string{"the cat sat", "the cat ran"}, resp.Clusters[0].Texts)
	s.Contains(resp.Clusters[0].Keywords, "cat")
	s.Equal([]string{"stocks rose today", "markets fell today"}, resp.Clusters[1].Texts)
	s.True(containsAny(resp.Clusters[1].Keywords, "today", "markets"))

	s.NotNil(resp.Metrics)
	s.Empty(resp.DroppedIndices)
	s.Zero(resp.NoiseCount)
}

func (s *PipelineSuite) TestStoresAnalysisAndPublishes() {
	resp, err := s.cluster(&models.ClusterRequest{
		ModelID: "agglomerative",
		Texts:   topicTexts,
		Params:  map[string]any{"k": 2},
	})
	s.Require().NoError(err)
	s.Equal("analysis-1", resp.AnalysisID)

	s.Require().Len(s.sink.saved, 1)
	saved := s.sink.saved[0]
	s.Equal("analysis-1", saved.ID)
	s.Equal("agglomerative", saved.Algorithm)
	s.Equal(2, saved.ClusterCount)
	s.Equal(2, saved.Params["k"])

	s.Require().Len(s.notifier.events, 1)
	ev := s.notifier.events[0]
	s.Equal(models.EventAnalysisCompleted, ev.Type)
	s.Equal("analysis-1", ev.AnalysisID)
	s.Equal(2, ev.Clusters)
}

func (s *PipelineSuite) TestSinkFailureDoesNotFailRequest() {
	s.sink.err = errors.New("disk full")
	resp, err := s.cluster(&models.ClusterRequest{AlgorithmID: "kmeans", Texts: topicTexts})
	s.Require().NoError(err)
	s.Empty(resp.AnalysisID)
}

func (s *PipelineSuite) TestErrors() {
	tests := []struct {
		name string
		req  models.ClusterRequest
		kind failure.Kind
	}{
		{"empty", models.ClusterRequest{AlgorithmID: "kmeans", Texts: []string{}}, failure.EmptyCorpus},
		{"blank texts", models.ClusterRequest{AlgorithmID: "kmeans", Texts: []string{" ", "<br>"}}, failure.EmptyCorpus},
		{"single", models.ClusterRequest{AlgorithmID: "kmeans", Texts: []string{"only one"}}, failure.InsufficientCorpusSize},
		{"single after drop", models.ClusterRequest{AlgorithmID: "dbscan", Texts: []string{"only one", ""}}, failure.InsufficientCorpusSize},
		{"unknown", models.ClusterRequest{AlgorithmID: "foo", Texts: topicTexts}, failure.UnknownAlgorithm},
		{"k too large", models.ClusterRequest{AlgorithmID: "kmeans", Texts: topicTexts, Params: map[string]any{"k": 9}}, failure.DegenerateInput},
		{"bad param", models.ClusterRequest{AlgorithmID: "kmeans", Texts: topicTexts, Params: map[string]any{"max_features": "many"}}, failure.DegenerateInput},
		{"ngram range too long", models.ClusterRequest{AlgorithmID: "kmeans", Texts: topicTexts, Params: map[string]any{"ngram_range": []any{1, 2000000000}}}, failure.DegenerateInput},
		{"n_init too large", models.ClusterRequest{AlgorithmID: "kmeans", Texts: topicTexts, Params: map[string]any{"k": 2, "n_init": 2000000000}}, failure.DegenerateInput},
		{"max_iter too large", models.ClusterRequest{AlgorithmID: "kmeans", Texts: topicTexts, Params: map[string]any{"k": 2, "max_iter": 2000000000}}, failure.DegenerateInput},
		{"max_df zero", models.ClusterRequest{AlgorithmID: "kmeans", Texts: topicTexts, Params: map[string]any{"max_df": 0}}, failure.DegenerateInput},
		{"unknown preset", models.ClusterRequest{Preset: "nope", Texts: topicTexts}, failure.DegenerateInput},
		{"empty vocabulary", models.ClusterRequest{AlgorithmID: "kmeans", Texts: []string{"the a", "of an"}}, failure.Vectorization},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			req := tt.req
			_, err := s.cluster(&req)
			s.Require().Error(err)
			s.True(failure.IsKind(err, tt.kind), "got %v", err)
			s.Equal(tt.kind.BadInput(), IsBadInput(err))
		})
	}

	s.Require().NotEmpty(s.notifier.events)
	last := s.notifier.events[len(s.notifier.events)-1]
	s.Equal(models.EventAnalysisFailed, last.Type)
	s.Equal(string(failure.Vectorization), last.ErrorKind)
	s.Empty(s.sink.saved)
}

func (s *PipelineSuite) TestDroppedAndNoise() {
	resp, err := s.cluster(&models.ClusterRequest{
		AlgorithmID: "dbscan",
		Texts:       []string{"the cat sat", "", "the cat sat", "stocks rose today"},
	})
	s.Require().NoError(err)
	s.Equal([]int{1}, resp.DroppedIndices)
	s.Require().Len(resp.Clusters, 1)
	s.Equal([]int{0, 2}, resp.Clusters[0].Indices)
	s.InDelta(50.0, resp.Clusters[0].Percentage, 1e-9)
	s.Equal([]int{3}, resp.NoiseIndices)
	s.Equal(1, resp.NoiseCount)
	s.Nil(resp.Metrics)
}

func (s *PipelineSuite) TestInvariants() {
	texts := []string{
		"refund my order please", "I want a refund for my order",
		"the app crashes on login", "login page crashes the app",
		"how do I change my password", "password reset is not working",
		"shipping takes too long", "my parcel shipping is late",
	}
	for _, alg := range []string{"kmeans", "agglomerative", "dbscan"} {
		s.Run(alg, func() {
			resp, err := s.cluster(&models.ClusterRequest{
				AlgorithmID: alg,
				Texts:       texts,
				Params:      map[string]any{"top_keywords": 3, "eps": 1.0},
			})
			s.Require().NoError(err)

			members, sum := 0, 0.0
			labels := 0
			for _, c := range resp.Clusters {
				members += c.Size
				sum += c.Percentage
				labels++
				s.LessOrEqual(len(c.Keywords), 3)
				seen := make(map[string]bool)
				for _, kw := range c.Keywords {
					s.False(seen[kw], "duplicate keyword %q", kw)
					seen[kw] = true
				}
			}
			s.Equal(len(texts)-resp.NoiseCount, members)
			s.LessOrEqual(sum, 100.0+1e-9)
			if labels < 2 {
				s.Nil(resp.Metrics)
			}
			if alg != "dbscan" {
				s.Equal(2, labels)
				s.NotNil(resp.Metrics)
			}
		})
	}
}

func (s *PipelineSuite) TestIdempotent() {
	for _, alg := range []string{"kmeans", "agglomerative", "dbscan"} {
		req := &models.ClusterRequest{AlgorithmID: alg, Texts: topicTexts, Params: map[string]any{"k": 2}}
		first, err := s.cluster(req)
		s.Require().NoError(err)
		second, err := s.cluster(req)
		s.Require().NoError(err)
		s.Equal(first.Clusters, second.Clusters, alg)
	}
}

func (s *PipelineSuite) TestChineseTexts() {
	resp, err := s.cluster(&models.ClusterRequest{
		AlgorithmID: "kmeans",
		Texts: []string{
			"我的订单什么时候发货？",
			"订单发货太慢了",
			"如何申请退款？",
			"退款什么时候到账",
		},
		Params: map[string]any{"num_clusters": 2},
	})
	s.Require().NoError(err)
	s.Equal("cjk", resp.Tokenizer)
	s.Len(resp.Clusters, 2)
	for _, c := range resp.Clusters {
		s.NotEmpty(c.Keywords)
	}
}

func (s *PipelineSuite) TestPresetResolution() {
	reg, err := presets.Parse([]byte(`
presets:
  - name: pairs
    algorithm: agglomerative
    params:
      k: 2
      summary_style: keywords
`))
	s.Require().NoError(err)
	p := New(WithPresets(reg), WithRecorder(nil))

	resp, err := p.ClusterTexts(context.Background(), &models.ClusterRequest{Preset: "pairs", Texts: topicTexts})
	s.Require().NoError(err)
	s.Equal("agglomerative", resp.AlgorithmUsed)
	s.Len(resp.Clusters, 2)
	s.Contains(resp.Clusters[0].Summary, ": the cat sat")

	// request values override the preset
	resp, err = p.ClusterTexts(context.Background(), &models.ClusterRequest{
		Preset:      "pairs",
		AlgorithmID: "kmeans",
		Texts:       topicTexts,
		Params:      map[string]any{"summary_style": "first"},
	})
	s.Require().NoError(err)
	s.Equal("kmeans", resp.AlgorithmUsed)
	s.Equal("the cat sat", resp.Clusters[0].Summary)
}

func TestDefaultAlgorithm(t *testing.T) {
	p := New(WithDefaults(Defaults{Algorithm: "agglomerative", TopKeywords: 2}))
	resp, err := p.ClusterTexts(context.Background(), &models.ClusterRequest{Texts: topicTexts})
	require.NoError(t, err)
	assert.Equal(t, "agglomerative", resp.AlgorithmUsed)
	for _, c := range resp.Clusters {
		assert.LessOrEqual(t, len(c.Keywords), 2)
	}
}

func TestModels(t *testing.T) {
	assert.Len(t, New().Models(), 3)
}

func TestConcurrentRequests(t *testing.T) {
	p := New()
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.ClusterTexts(context.Background(), &models.ClusterRequest{AlgorithmID: "kmeans", Texts: topicTexts})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}

func containsAny(list []string, want ...string) bool {
	for _, v := range list {
		for _, w := range want {
			if v == w {
				return true
			}
		}
	}
	return false
}

func TestSetPresets(t *testing.T) {
	p := New()
	_, err := p.ClusterTexts(context.Background(), &models.ClusterRequest{Preset: "pairs", Texts: topicTexts})
	require.True(t, failure.IsKind(err, failure.DegenerateInput))

	reg, err := presets.Parse([]byte("presets:\n  - name: pairs\n    algorithm: kmeans\n    params:\n      k: 2\n"))
	require.NoError(t, err)
	p.SetPresets(reg)
	assert.Equal(t, []string{"pairs"}, p.Presets().Names())

	resp, err := p.ClusterTexts(context.Background(), &models.ClusterRequest{Preset: "pairs", Texts: topicTexts})
	require.NoError(t, err)
	assert.Len(t, resp.Clusters, 2)

	p.SetPresets(nil)
	assert.Empty(t, p.Presets().Names())
}

func TestWithAlgorithms(t *testing.T) {
	p := New(WithAlgorithms([]string{"dbscan", "spectral"}))
	catalog := p.Models()
	require.Len(t, catalog, 1)
	assert.Equal(t, "dbscan", catalog[0].ID)

	_, err := p.ClusterTexts(context.Background(), &models.ClusterRequest{AlgorithmID: "kmeans", Texts: topicTexts})
	assert.True(t, failure.IsKind(err, failure.UnknownAlgorithm))

	_, err = p.ClusterTexts(context.Background(), &models.ClusterRequest{AlgorithmID: "dbscan", Texts: topicTexts})
	assert.NoError(t, err)
}
