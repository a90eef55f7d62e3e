package catalog

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

const maxFeedBytes = 4 << 20

type xmlCatalog struct {
	XMLName    xml.Name      `xml:"catalog"`
	Categories []xmlCategory `xml:"category"`
}

type xmlCategory struct {
	Name     string       `xml:"name,attr"`
	Products []xmlProduct `xml:"product"`
}

type xmlProduct struct {
	ID          string       `xml:"id,attr"`
	Name        string       `xml:"name"`
	Tagline     string       `xml:"tagline"`
	Price       string       `xml:"price"`
	Image       string       `xml:"image"`
	Description string       `xml:"description"`
	HowToUse    string       `xml:"howToUse"`
	Rating      string       `xml:"rating"`
	Colors      []string     `xml:"color"`
	Variants    []xmlVariant `xml:"variant"`
	Ingredients []string     `xml:"ingredient"`
	SkinTypes   []string     `xml:"skinType"`
	Concerns    []string     `xml:"concern"`
}

type xmlVariant struct {
	Name   string `xml:"name,attr"`
	Swatch string `xml:"swatch,attr"`
	Image  string `xml:"image,attr"`
}

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

// ParseXML walks category → product nodes and flattens them into Products.
// Any structural or value error fails the whole document.
func ParseXML(r io.Reader) ([]Product, error) {
	var doc xmlCatalog
	dec := xml.NewDecoder(io.LimitReader(r, maxFeedBytes))
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("malformed catalog document: %w", err)
	}

	var out []Product
	seen := map[string]bool{}
	for _, category := range doc.Categories {
		for i, node := range category.Products {
			p, err := node.normalize(strings.TrimSpace(category.Name))
			if err != nil {
				return nil, fmt.Errorf("category %q product %d: %w", category.Name, i, err)
			}
			if seen[p.ID] {
				return nil, fmt.Errorf("duplicate product id %q", p.ID)
			}
			seen[p.ID] = true
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("catalog document has no products")
	}
	return out, nil
}

func (n xmlProduct) normalize(category string) (Product, error) {
	name := strings.TrimSpace(n.Name)
	if name == "" {
		return Product{}, fmt.Errorf("name is required")
	}
	price, err := decimal.NewFromString(strings.TrimSpace(n.Price))
	if err != nil || price.IsNegative() {
		return Product{}, fmt.Errorf("invalid price %q", n.Price)
	}
	rating := DefaultRating
	if raw := strings.TrimSpace(n.Rating); raw != "" {
		if rating, err = decimal.NewFromString(raw); err != nil {
			return Product{}, fmt.Errorf("invalid rating %q", n.Rating)
		}
	}

	id := strings.TrimSpace(n.ID)
	if id == "" {
		id = "x-" + slug(category+" "+name)
	}

	variants := make([]Variant, 0, len(n.Variants))
	for _, v := range n.Variants {
		if strings.TrimSpace(v.Name) == "" {
			continue
		}
		variants = append(variants, Variant{
			Name:        strings.TrimSpace(v.Name),
			ColorSwatch: strings.TrimSpace(v.Swatch),
			Image:       strings.TrimSpace(v.Image),
		})
	}

	return Product{
		ID:          id,
		Name:        name,
		Tagline:     strings.TrimSpace(n.Tagline),
		Category:    category,
		Price:       price,
		Image:       strings.TrimSpace(n.Image),
		Colors:      trimAll(n.Colors),
		Variants:    variants,
		Description: strings.TrimSpace(n.Description),
		Ingredients: trimAll(n.Ingredients),
		HowToUse:    strings.TrimSpace(n.HowToUse),
		SkinTypes:   trimAll(n.SkinTypes),
		Concerns:    trimAll(n.Concerns),
		Rating:      rating,
		Source:      SourceXML,
	}, nil
}

// XMLSource fetches the external catalog document over HTTP.
type XMLSource struct {
	url    string
	client *http.Client
}

func NewXMLSource(url string, client *http.Client) *XMLSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &XMLSource{url: strings.TrimSpace(url), client: client}
}

// Enabled reports whether a feed URL is configured.
func (s *XMLSource) Enabled() bool {
	return s != nil && s.url != ""
}

func (s *XMLSource) Fetch(ctx context.Context) ([]Product, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/xml, text/xml")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog document: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch catalog document: unexpected status %d", resp.StatusCode)
	}
	return ParseXML(resp.Body)
}

type objectOpener interface {
	Open(ctx context.Context, object string) (io.ReadCloser, error)
}

// GCSSource reads the catalog document from a storage bucket object.
type GCSSource struct {
	objects objectOpener
	object  string
}

func NewGCSSource(objects objectOpener, object string) *GCSSource {
	return &GCSSource{objects: objects, object: strings.TrimSpace(object)}
}

func (s *GCSSource) Enabled() bool {
	return s != nil && s.objects != nil && s.object != ""
}

func (s *GCSSource) Fetch(ctx context.Context) ([]Product, error) {
	body, err := s.objects.Open(ctx, s.object)
	if err != nil {
		return nil, fmt.Errorf("read catalog object: %w", err)
	}
	defer body.Close()
	return ParseXML(body)
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func slug(value string) string {
	return strings.Trim(slugStrip.ReplaceAllString(strings.ToLower(value), "-"), "-")
}
