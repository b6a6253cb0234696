package worker

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/semaphore"
	"gorm.io/gorm/logger"

	"github.com/thebtf/textclust/internal/clustering"
	"github.com/thebtf/textclust/internal/config"
	gormdb "github.com/thebtf/textclust/internal/db/gorm"
	"github.com/thebtf/textclust/internal/presets"
	"github.com/thebtf/textclust/internal/worker/sse"
	"github.com/thebtf/textclust/pkg/models"
)

var topicTexts = []string{
	"the cat sat",
	"stocks rose today",
	"the cat ran",
	"markets fell today",
}

// testService creates a Service backed by a temporary SQLite database.
func testService(t *testing.T) *Service {
	t.Helper()

	store, err := gormdb.NewStore(gormdb.Config{
		Path:     filepath.Join(t.TempDir(), "test.db"),
		MaxConns: 2,
		LogLevel: logger.Silent,
	})
	require.NoError(t, err)

	cfg := config.Default()
	cfg.MaxTexts = 10
	cfg.MaxConcurrent = 2

	registry, err := presets.Parse([]byte(`
presets:
  - name: two-topics
    description: Split into two groups
    algorithm: kmeans
    params:
      num_clusters: 2
`))
	require.NoError(t, err)

	analysisStore := gormdb.NewAnalysisStore(store, 10)
	sseBroadcaster := sse.NewBroadcaster()
	ctx, cancel := context.WithCancel(context.Background())

	svc := &Service{
		version:        "test-version",
		config:         cfg,
		store:          store,
		analysisStore:  analysisStore,
		sseBroadcaster: sseBroadcaster,
		sem:            semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		router:         chi.NewRouter(),
		ctx:            ctx,
		cancel:         cancel,
		startTime:      time.Now(),
		pipeline: clustering.New(
			clustering.WithPresets(registry),
			clustering.WithSink(analysisStore),
			clustering.WithNotifier(sseBroadcaster),
		),
	}
	svc.setupRoutes()

	// Mark service as ready for tests
	svc.ready.Store(true)

	t.Cleanup(func() {
		cancel()
		sseBroadcaster.Close()
		_ = store.Close()
	})
	return svc
}

func do(t *testing.T, svc *Service, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHandleCluster(t *testing.T) {
	svc := testService(t)

	rec := do(t, svc, http.MethodPost, "/api/cluster", models.ClusterRequest{
		AlgorithmID: "kmeans",
		Texts:       topicTexts,
		Params:      map[string]any{"num_clusters": 2},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp models.ClusterResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "kmeans", resp.AlgorithmUsed)
	assert.Equal(t, 4, resp.TotalTexts)
	require.Len(t, resp.Clusters, 2)
	assert.NotEmpty(t, resp.AnalysisID)
	assert.NotNil(t, resp.Metrics)

	// the stored analysis is retrievable
	rec = do(t, svc, http.MethodGet, "/api/analyses/"+resp.AnalysisID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stored models.Analysis
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stored))
	assert.Equal(t, resp.AnalysisID, stored.ID)
	assert.Equal(t, 2, stored.ClusterCount)
	require.NotNil(t, stored.Result)
	assert.Len(t, stored.Result.Clusters, 2)
}

func TestHandleCluster_Preset(t *testing.T) {
	svc := testService(t)

	rec := do(t, svc, http.MethodPost, "/api/cluster", models.ClusterRequest{
		Preset: "two-topics",
		Texts:  topicTexts,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp models.ClusterResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "kmeans", resp.AlgorithmUsed)
	assert.Len(t, resp.Clusters, 2)
}

func TestHandleCluster_Errors(t *testing.T) {
	svc := testService(t)

	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantError  string
	}{
		{
			name:       "malformed json",
			body:       `{"texts": [`,
			wantStatus: http.StatusBadRequest,
			wantError:  ErrCodeInvalidRequest,
		},
		{
			name:       "missing texts",
			body:       `{"algorithm_id": "kmeans"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  ErrCodeInvalidRequest,
		},
		{
			name:       "too many texts",
			body:       models.ClusterRequest{Texts: make([]string, 11)},
			wantStatus: http.StatusBadRequest,
			wantError:  ErrCodeTooManyTexts,
		},
		{
			name:       "empty corpus",
			body:       models.ClusterRequest{Texts: []string{}},
			wantStatus: http.StatusBadRequest,
			wantError:  "empty_corpus",
		},
		{
			name:       "single text",
			body:       models.ClusterRequest{Texts: []string{"only one"}},
			wantStatus: http.StatusBadRequest,
			wantError:  "insufficient_corpus_size",
		},
		{
			name:       "unknown algorithm",
			body:       models.ClusterRequest{AlgorithmID: "spectral", Texts: topicTexts},
			wantStatus: http.StatusBadRequest,
			wantError:  "unknown_algorithm",
		},
		{
			name: "bad parameter",
			body: models.ClusterRequest{
				AlgorithmID: "kmeans",
				Texts:       topicTexts,
				Params:      map[string]any{"num_clusters": "many"},
			},
			wantStatus: http.StatusBadRequest,
			wantError:  "degenerate_input",
		},
		{
			name:       "vectorization failure is internal",
			body:       models.ClusterRequest{Texts: []string{"the a", "of an"}},
			wantStatus: http.StatusInternalServerError,
			wantError:  ErrCodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, svc, http.MethodPost, "/api/cluster", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			resp := decodeError(t, rec)
			assert.Equal(t, tt.wantError, resp.Error)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestHandleCluster_InternalMessageIsFixed(t *testing.T) {
	svc := testService(t)

	rec := do(t, svc, http.MethodPost, "/api/cluster", models.ClusterRequest{Texts: []string{"the a", "of an"}})
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, internalFailureMessage, decodeError(t, rec).Message)
}

func TestHandleCluster_BodyTooLarge(t *testing.T) {
	svc := testService(t)

	body := `{"texts": ["` + strings.Repeat("a", MaxBodyBytes) + `"]}`
	rec := do(t, svc, http.MethodPost, "/api/cluster", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, ErrCodeTooLarge, decodeError(t, rec).Error)
}

func TestHandleCluster_Timeout(t *testing.T) {
	svc := testService(t)
	svc.config.RequestTimeoutSeconds = 1
	// occupy every slot
	require.True(t, svc.sem.TryAcquire(int64(svc.config.MaxConcurrent)))
	defer svc.sem.Release(int64(svc.config.MaxConcurrent))

	rec := do(t, svc, http.MethodPost, "/api/cluster", models.ClusterRequest{Texts: topicTexts})
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Equal(t, ErrCodeTimeout, decodeError(t, rec).Error)
}

func TestHandleModels(t *testing.T) {
	svc := testService(t)

	rec := do(t, svc, http.MethodGet, "/api/models", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var list []models.ModelInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	ids := make([]string, 0, len(list))
	for _, m := range list {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"kmeans", "agglomerative", "dbscan"}, ids)
}

func TestHandlePresets(t *testing.T) {
	svc := testService(t)

	rec := do(t, svc, http.MethodGet, "/api/presets", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var list []PresetInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "two-topics", list[0].Name)
	assert.Equal(t, "kmeans", list[0].Algorithm)
	assert.EqualValues(t, 2, list[0].Params["num_clusters"])
}

func TestHandleAnalyses_ListAndDelete(t *testing.T) {
	svc := testService(t)

	for _, algorithm := range []string{"kmeans", "agglomerative", "kmeans"} {
		rec := do(t, svc, http.MethodPost, "/api/cluster", models.ClusterRequest{
			AlgorithmID: algorithm,
			Texts:       topicTexts,
			Params:      map[string]any{"k": 2},
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec := do(t, svc, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var health HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.EqualValues(t, 3, health.Analyses)

	rec = do(t, svc, http.MethodGet, "/api/analyses?algorithm=kmeans", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []models.Analysis
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 2)
	for _, a := range list {
		assert.Equal(t, "kmeans", a.Algorithm)
		assert.Nil(t, a.Result, "listings omit the full result")
	}

	rec = do(t, svc, http.MethodGet, "/api/analyses?limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)

	id := list[0].ID
	rec = do(t, svc, http.MethodDelete, "/api/analyses/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, svc, http.MethodGet, "/api/analyses/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, svc, http.MethodDelete, "/api/analyses/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleAnalyses_StorageDisabled(t *testing.T) {
	svc := testService(t)
	svc.analysisStore = nil

	for _, path := range []string{"/api/analyses", "/api/analyses/abc"} {
		rec := do(t, svc, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestHandleHealth(t *testing.T) {
	svc := testService(t)

	rec := do(t, svc, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "test-version", health.Version)
	assert.Equal(t, "ok", health.Store)
	assert.Equal(t, gormdb.DriverSQLite, health.Driver)
	assert.Zero(t, health.Analyses)
	assert.Equal(t, 1, health.Presets)

	rec = do(t, svc, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestNotReady(t *testing.T) {
	svc := testService(t)
	svc.ready.Store(false)

	rec := do(t, svc, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(t, svc, http.MethodPost, "/api/cluster", models.ClusterRequest{Texts: topicTexts})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	// health still answers so callers can see the service is starting
	rec = do(t, svc, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var health HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "starting", health.Status)
}

func TestNewServiceWithoutDatabase(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg := config.Default()
	cfg.DBDriver = config.DriverNone

	svc, err := NewService("v1", cfg)
	require.NoError(t, err)
	t.Cleanup(svc.cancel)
	assert.Nil(t, svc.store)
	assert.Nil(t, svc.analysisStore)

	svc.ready.Store(true)
	rec := do(t, svc, http.MethodPost, "/api/cluster", models.ClusterRequest{
		AlgorithmID: "kmeans",
		Texts:       topicTexts,
		Params:      map[string]any{"k": 2},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp models.ClusterResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.AnalysisID)
}

func TestReloadPresets(t *testing.T) {
	svc := testService(t)

	path := filepath.Join(t.TempDir(), "presets.yaml")
	require.NoError(t, os.WriteFile(path, []byte("presets:\n  - name: fine\n    algorithm: agglomerative\n"), 0o600))
	svc.reloadPresets(path)
	_, ok := svc.pipeline.Presets().Get("fine")
	assert.True(t, ok)

	// an invalid file keeps the previous presets
	require.NoError(t, os.WriteFile(path, []byte("presets:\n  - name: broken\n    algorithm: nope\n"), 0o600))
	svc.reloadPresets(path)
	_, ok = svc.pipeline.Presets().Get("fine")
	assert.True(t, ok)
}
