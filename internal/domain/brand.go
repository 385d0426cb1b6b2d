package domain

import (
	"encoding/json"
	"time"
)

// LogoAsset is a brand logo supplied to the generator as reference input.
type LogoAsset struct {
	ID   string
	URL  string
	MIME string
	Data []byte
}

// Guidelines carries the per-category rule texts extracted from a brand's
// guideline documents. The engine treats rule contents as opaque; it only
// cares which categories have rules at all.
type Guidelines struct {
	ColorRules      []string        `json:"color_rules,omitempty"`
	TypographyRules []string        `json:"typography_rules,omitempty"`
	LayoutRules     []string        `json:"layout_rules,omitempty"`
	LogoRules       []string        `json:"logo_rules,omitempty"`
	Raw             json.RawMessage `json:"raw,omitempty"`
}

// RulesFor returns the rule texts for a category name.
func (g Guidelines) RulesFor(category string) []string {
	switch category {
	case CategoryColors:
		return g.ColorRules
	case CategoryTypography:
		return g.TypographyRules
	case CategoryLayout:
		return g.LayoutRules
	case CategoryLogoUsage:
		return g.LogoRules
	}
	return nil
}

// HasRules reports whether any rule exists for the category; categories
// without rules are excluded from audit scoring.
func (g Guidelines) HasRules(category string) bool {
	return len(g.RulesFor(category)) > 0
}

// Brand groups the guideline set and logo assets for one brand.
type Brand struct {
	ID         string
	Name       string
	Guidelines Guidelines
	Logos      []LogoAsset
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// HasLogos reports whether the brand carries any logo asset.
func (b *Brand) HasLogos() bool {
	return len(b.Logos) > 0
}
