package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"brandguard/internal/domain"
)

// BrandRepositoryPG implements domain.BrandRepository on PostgreSQL.
type BrandRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewBrandRepository creates a new brand repository backed by PostgreSQL.
func NewBrandRepository(pool *pgxpool.Pool) *BrandRepositoryPG {
	return &BrandRepositoryPG{pool: pool}
}

// GetByID fetches a brand together with its guideline set and logo assets.
func (r *BrandRepositoryPG) GetByID(ctx context.Context, brandID string) (*domain.Brand, error) {
	query := `SELECT id, name, guidelines, created_at, updated_at FROM brands WHERE id = $1;`
	row := r.pool.QueryRow(ctx, query, brandID)

	var brand domain.Brand
	var guidelines []byte
	if err := row.Scan(&brand.ID, &brand.Name, &guidelines, &brand.CreatedAt, &brand.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if len(guidelines) > 0 {
		if err := json.Unmarshal(guidelines, &brand.Guidelines); err != nil {
			return nil, fmt.Errorf("decode guidelines: %w", err)
		}
	}

	logos, err := r.listLogos(ctx, brandID)
	if err != nil {
		return nil, err
	}
	brand.Logos = logos
	return &brand, nil
}

// List returns up to limit brands, newest first, without logo payloads.
func (r *BrandRepositoryPG) List(ctx context.Context, limit int) ([]domain.Brand, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, name, guidelines, created_at, updated_at FROM brands ORDER BY created_at DESC LIMIT $1;`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var brands []domain.Brand
	for rows.Next() {
		var brand domain.Brand
		var guidelines []byte
		if err := rows.Scan(&brand.ID, &brand.Name, &guidelines, &brand.CreatedAt, &brand.UpdatedAt); err != nil {
			return nil, err
		}
		if len(guidelines) > 0 {
			if err := json.Unmarshal(guidelines, &brand.Guidelines); err != nil {
				return nil, fmt.Errorf("decode guidelines: %w", err)
			}
		}
		brands = append(brands, brand)
	}
	return brands, rows.Err()
}

func (r *BrandRepositoryPG) listLogos(ctx context.Context, brandID string) ([]domain.LogoAsset, error) {
	query := `SELECT id, url, mime, data FROM brand_logos WHERE brand_id = $1 ORDER BY created_at;`
	rows, err := r.pool.Query(ctx, query, brandID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logos []domain.LogoAsset
	for rows.Next() {
		var logo domain.LogoAsset
		if err := rows.Scan(&logo.ID, &logo.URL, &logo.MIME, &logo.Data); err != nil {
			return nil, err
		}
		logos = append(logos, logo)
	}
	return logos, rows.Err()
}

var _ domain.BrandRepository = (*BrandRepositoryPG)(nil)
