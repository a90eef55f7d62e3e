// Package catalog normalizes the hand-authored catalog and the external XML
// feed into one Product shape.
package catalog

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Source names where a product came from.
type Source string

const (
	SourceStatic Source = "static"
	SourceXML    Source = "xml"
)

// DefaultRating is used when the feed carries no rating.
var DefaultRating = decimal.RequireFromString("4.5")

// Variant is one shade or size of a product. Image overrides the product
// image when set.
type Variant struct {
	Name        string `json:"name" yaml:"name"`
	ColorSwatch string `json:"colorSwatch,omitempty" yaml:"swatch"`
	Image       string `json:"image,omitempty" yaml:"image"`
}

// Product is the normalized catalog entry served to the storefront.
type Product struct {
	ID          string          `json:"id" yaml:"id"`
	Name        string          `json:"name" yaml:"name"`
	Tagline     string          `json:"tagline,omitempty" yaml:"tagline"`
	Category    string          `json:"category" yaml:"category"`
	Price       decimal.Decimal `json:"price" yaml:"-"`
	Image       string          `json:"image" yaml:"image"`
	Colors      []string        `json:"colors" yaml:"colors"`
	Variants    []Variant       `json:"variants" yaml:"variants"`
	Description string          `json:"description,omitempty" yaml:"description"`
	Ingredients []string        `json:"ingredients,omitempty" yaml:"ingredients"`
	HowToUse    string          `json:"howToUse,omitempty" yaml:"how_to_use"`
	SkinTypes   []string        `json:"skinTypes,omitempty" yaml:"skin_types"`
	Concerns    []string        `json:"concerns,omitempty" yaml:"concerns"`
	Rating      decimal.Decimal `json:"rating" yaml:"-"`
	Source      Source          `json:"source" yaml:"-"`
}

// Variant finds a variant by name, case-insensitively.
func (p Product) Variant(name string) (Variant, bool) {
	for _, v := range p.Variants {
		if strings.EqualFold(v.Name, strings.TrimSpace(name)) {
			return v, true
		}
	}
	return Variant{}, false
}

// ImageFor returns the variant's image override, else the product image.
func (p Product) ImageFor(variant *string) string {
	if variant != nil {
		if v, ok := p.Variant(*variant); ok && v.Image != "" {
			return v.Image
		}
	}
	return p.Image
}

// HasIngredient reports whether any ingredient contains the keyword.
func (p Product) HasIngredient(keyword string) bool {
	return containsFold(p.Ingredients, keyword)
}

// Addresses reports whether the product lists the concern.
func (p Product) Addresses(concern string) bool {
	return containsFold(p.Concerns, concern)
}

// Suits reports whether the product is labelled for the skin type. Products
// without skin type labels suit everyone.
func (p Product) Suits(skinType string) bool {
	if len(p.SkinTypes) == 0 {
		return true
	}
	return containsFold(p.SkinTypes, skinType) || containsFold(p.SkinTypes, "all")
}

// Matches is the storefront search predicate.
func (p Product) Matches(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	for _, field := range []string{p.Name, p.Tagline, p.Category, p.Description} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return containsFold(p.Ingredients, q) || containsFold(p.Concerns, q)
}

func containsFold(values []string, keyword string) bool {
	k := strings.ToLower(strings.TrimSpace(keyword))
	if k == "" {
		return false
	}
	for _, v := range values {
		if strings.Contains(strings.ToLower(v), k) {
			return true
		}
	}
	return false
}
