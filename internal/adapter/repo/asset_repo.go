package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"brandguard/internal/domain"
)

// AssetRepositoryPG implements domain.AssetRepository on PostgreSQL.
type AssetRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewAssetRepository creates a new asset repository backed by PostgreSQL.
func NewAssetRepository(pool *pgxpool.Pool) *AssetRepositoryPG {
	return &AssetRepositoryPG{pool: pool}
}

// Save inserts a finalized asset record, assigning an id when missing.
func (r *AssetRepositoryPG) Save(ctx context.Context, asset *domain.Asset) error {
	if asset.ID == "" {
		asset.ID = uuid.NewString()
	}
	if asset.CreatedAt.IsZero() {
		asset.CreatedAt = time.Now().UTC()
	}
	query := `
INSERT INTO assets (id, job_id, brand_id, storage_key, url, mime, bytes, attempt, score, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
`
	_, err := r.pool.Exec(ctx, query,
		asset.ID,
		asset.JobID,
		asset.BrandID,
		asset.StorageKey,
		asset.URL,
		asset.MIME,
		asset.Bytes,
		asset.Attempt,
		asset.Score,
		asset.CreatedAt,
	)
	return err
}

// ListByJobID returns the job's finalized assets in attempt order.
func (r *AssetRepositoryPG) ListByJobID(ctx context.Context, jobID string) ([]domain.Asset, error) {
	query := `
SELECT id, job_id, brand_id, storage_key, url, mime, bytes, attempt, score, created_at
FROM assets
WHERE job_id = $1
ORDER BY attempt;
`
	rows, err := r.pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []domain.Asset
	for rows.Next() {
		var asset domain.Asset
		if err := rows.Scan(
			&asset.ID,
			&asset.JobID,
			&asset.BrandID,
			&asset.StorageKey,
			&asset.URL,
			&asset.MIME,
			&asset.Bytes,
			&asset.Attempt,
			&asset.Score,
			&asset.CreatedAt,
		); err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}
	return assets, rows.Err()
}

var _ domain.AssetRepository = (*AssetRepositoryPG)(nil)
