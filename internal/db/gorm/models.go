package gorm

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"gorm.io/gorm"

	"github.com/thebtf/textclust/pkg/models"
)

// JSONMap is a map stored as JSON text.
type JSONMap map[string]any

// Value implements driver.Valuer.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(map[string]any(m))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(value any) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*m = nil
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("scan JSONMap: unsupported type %T", value)
	}
	out := make(map[string]any)
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	*m = out
	return nil
}

// Analysis is a stored clustering result.
type Analysis struct {
	ID             string         `gorm:"primaryKey;type:varchar(36)"`
	Algorithm      string         `gorm:"type:varchar(32);index;not null"`
	Params         JSONMap        `gorm:"type:text"`
	Result         string         `gorm:"type:text;not null"` // JSON ClusterResponse
	Metrics        sql.NullString `gorm:"type:text"`          // JSON QualityMetrics, NULL when undefined
	TotalTexts     int            `gorm:"not null"`
	ClusterCount   int            `gorm:"not null"`
	CreatedAt      string         `gorm:"not null"`
	CreatedAtEpoch int64          `gorm:"index:idx_analyses_created,sort:desc;not null"`
}

func (Analysis) TableName() string { return "analyses" }

// BeforeCreate hook to ensure timestamps are set.
func (a *Analysis) BeforeCreate(tx *gorm.DB) error {
	if a.CreatedAtEpoch == 0 {
		a.CreatedAtEpoch = time.Now().UnixMilli()
	}
	if a.CreatedAt == "" {
		a.CreatedAt = time.UnixMilli(a.CreatedAtEpoch).UTC().Format(time.RFC3339Nano)
	}
	return nil
}

// fromModel converts an analysis for storage.
func fromModel(a *models.Analysis) (*Analysis, error) {
	row := &Analysis{
		ID:           a.ID,
		Algorithm:    a.Algorithm,
		Params:       JSONMap(a.Params),
		TotalTexts:   a.TotalTexts,
		ClusterCount: a.ClusterCount,
	}
	if !a.CreatedAt.IsZero() {
		row.CreatedAt = a.CreatedAt.UTC().Format(time.RFC3339Nano)
		row.CreatedAtEpoch = a.CreatedAt.UnixMilli()
	}

	result, err := json.Marshal(a.Result)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	row.Result = string(result)

	if a.Metrics != nil {
		metrics, err := json.Marshal(a.Metrics)
		if err != nil {
			return nil, fmt.Errorf("encode metrics: %w", err)
		}
		row.Metrics = sql.NullString{String: string(metrics), Valid: true}
	}
	return row, nil
}

// toModel converts a stored row. The result body is decoded only when
// withResult is set.
func (a *Analysis) toModel(withResult bool) (*models.Analysis, error) {
	out := &models.Analysis{
		ID:           a.ID,
		Algorithm:    a.Algorithm,
		Params:       map[string]any(a.Params),
		TotalTexts:   a.TotalTexts,
		ClusterCount: a.ClusterCount,
		CreatedAt:    time.UnixMilli(a.CreatedAtEpoch).UTC(),
	}
	if t, err := time.Parse(time.RFC3339Nano, a.CreatedAt); err == nil {
		out.CreatedAt = t.UTC()
	}

	if a.Metrics.Valid {
		var m models.QualityMetrics
		if err := json.Unmarshal([]byte(a.Metrics.String), &m); err != nil {
			return nil, fmt.Errorf("decode metrics of %s: %w", a.ID, err)
		}
		out.Metrics = &m
	}
	if withResult && a.Result != "" {
		var r models.ClusterResponse
		if err := json.Unmarshal([]byte(a.Result), &r); err != nil {
			return nil, fmt.Errorf("decode result of %s: %w", a.ID, err)
		}
		out.Result = &r
	}
	return out, nil
}
