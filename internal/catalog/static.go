package catalog

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed static_catalog.yaml
var staticCatalogYAML []byte

type staticEntry struct {
	Product `yaml:",inline"`
	Price   string `yaml:"price"`
	Rating  string `yaml:"rating"`
}

type staticDocument struct {
	Products []staticEntry `yaml:"products"`
}

// StaticSource is the hand-authored catalog shipped with the binary.
type StaticSource struct {
	products []Product
	byID     map[string]int
}

// LoadStatic parses the embedded catalog.
func LoadStatic() (*StaticSource, error) {
	return ParseStatic(staticCatalogYAML)
}

// ParseStatic builds a StaticSource from YAML.
func ParseStatic(raw []byte) (*StaticSource, error) {
	var doc staticDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse static catalog: %w", err)
	}
	src := &StaticSource{
		products: make([]Product, 0, len(doc.Products)),
		byID:     make(map[string]int, len(doc.Products)),
	}
	for i, entry := range doc.Products {
		p := entry.Product
		p.ID = strings.TrimSpace(p.ID)
		if p.ID == "" || strings.TrimSpace(p.Name) == "" {
			return nil, fmt.Errorf("static product %d: id and name are required", i)
		}
		if _, dup := src.byID[p.ID]; dup {
			return nil, fmt.Errorf("static product %q listed twice", p.ID)
		}
		price, err := decimal.NewFromString(strings.TrimSpace(entry.Price))
		if err != nil || price.IsNegative() {
			return nil, fmt.Errorf("static product %q: invalid price %q", p.ID, entry.Price)
		}
		p.Price = price
		p.Rating = DefaultRating
		if strings.TrimSpace(entry.Rating) != "" {
			rating, err := decimal.NewFromString(strings.TrimSpace(entry.Rating))
			if err != nil {
				return nil, fmt.Errorf("static product %q: invalid rating %q", p.ID, entry.Rating)
			}
			p.Rating = rating
		}
		if p.Colors == nil {
			p.Colors = []string{}
		}
		if p.Variants == nil {
			p.Variants = []Variant{}
		}
		p.Source = SourceStatic
		src.byID[p.ID] = len(src.products)
		src.products = append(src.products, p)
	}
	return src, nil
}

// Products returns the catalog in authored order.
func (s *StaticSource) Products() []Product {
	out := make([]Product, len(s.products))
	copy(out, s.products)
	return out
}

func (s *StaticSource) Get(id string) (Product, bool) {
	idx, ok := s.byID[strings.TrimSpace(id)]
	if !ok {
		return Product{}, false
	}
	return s.products[idx], true
}
