package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"brandguard/internal/domain"
)

func brandView(brand *domain.Brand) map[string]any {
	categories := map[string]int{
		domain.CategoryColors:     len(brand.Guidelines.ColorRules),
		domain.CategoryTypography: len(brand.Guidelines.TypographyRules),
		domain.CategoryLayout:     len(brand.Guidelines.LayoutRules),
		domain.CategoryLogoUsage:  len(brand.Guidelines.LogoRules),
	}
	return map[string]any{
		"id":         brand.ID,
		"name":       brand.Name,
		"rule_count": categories,
		"has_logos":  brand.HasLogos(),
		"created_at": brand.CreatedAt,
		"updated_at": brand.UpdatedAt,
	}
}

// GetBrand returns a brand summary with per-category rule counts.
func (a *App) GetBrand(w http.ResponseWriter, r *http.Request) {
	brandID := chi.URLParam(r, "brand_id")
	brand, err := a.Brands.GetByID(r.Context(), brandID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "brand not found")
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to load brand")
		return
	}
	a.json(w, http.StatusOK, brandView(brand))
}

// ListBrands returns recent brands.
func (a *App) ListBrands(w http.ResponseWriter, r *http.Request) {
	brands, err := a.Brands.List(r.Context(), 50)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to list brands")
		return
	}
	items := make([]map[string]any, 0, len(brands))
	for i := range brands {
		items = append(items, brandView(&brands[i]))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}
