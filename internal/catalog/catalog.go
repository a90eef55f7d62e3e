package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/glowhaus/storefront-backend/internal/cart"
	pkgerrors "github.com/glowhaus/storefront-backend/pkg/errors"
	"github.com/glowhaus/storefront-backend/pkg/logger"
	"github.com/glowhaus/storefront-backend/pkg/redis"
)

// ReasonUnavailable tags errors raised when the XML feed cannot be served.
const ReasonUnavailable = "catalog_unavailable"

// Feed is a remote catalog document source.
type Feed interface {
	Enabled() bool
	Fetch(ctx context.Context) ([]Product, error)
}

// Listing is a page of products. Unavailable names sources that failed to
// load so the storefront can show an error state for them.
type Listing struct {
	Products    []Product `json:"products"`
	Unavailable []Source  `json:"unavailable,omitempty"`
}

// Catalog composes the static catalog and the XML feed.
type Catalog struct {
	static *StaticSource
	feed   Feed
	cache  redis.KeyValueStore
	ttl    time.Duration
	logg   *logger.Logger
	group  singleflight.Group
}

// Params groups the Catalog's collaborators. Feed and Cache are optional.
type Params struct {
	Static   *StaticSource
	Feed     Feed
	Cache    redis.KeyValueStore
	CacheTTL time.Duration
	Logger   *logger.Logger
}

func New(p Params) (*Catalog, error) {
	if p.Static == nil {
		return nil, fmt.Errorf("static catalog required")
	}
	logg := p.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Catalog{static: p.Static, feed: p.Feed, cache: p.Cache, ttl: p.CacheTTL, logg: logg}, nil
}

// List returns products from the requested source ("" for all) matching the
// query. Asking for the XML source alone fails when the feed is down; the
// combined view keeps the static products and reports the gap.
func (c *Catalog) List(ctx context.Context, source Source, query string) (*Listing, error) {
	if source != "" && source != SourceStatic && source != SourceXML {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown catalog source").
			WithDetails(map[string]string{"source": string(source)})
	}
	listing := &Listing{Products: []Product{}}
	if source == "" || source == SourceStatic {
		listing.Products = append(listing.Products, filter(c.static.Products(), query)...)
	}
	if source == SourceXML || (source == "" && c.feedEnabled()) {
		feed, err := c.feedProducts(ctx)
		switch {
		case err != nil && source == SourceXML:
			return nil, err
		case err != nil:
			listing.Unavailable = append(listing.Unavailable, SourceXML)
		default:
			listing.Products = append(listing.Products, filter(feed, query)...)
		}
	}
	return listing, nil
}

// Get looks a product up across both sources. Static entries win on id
// collisions.
func (c *Catalog) Get(ctx context.Context, id string) (*Product, error) {
	id = strings.TrimSpace(id)
	if p, ok := c.static.Get(id); ok {
		return &p, nil
	}
	if !c.feedEnabled() {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	feed, err := c.feedProducts(ctx)
	if err != nil {
		return nil, err
	}
	for i := range feed {
		if feed[i].ID == id {
			return &feed[i], nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
}

// Products returns everything currently loadable, for recommendation rules.
// A failing feed is logged and skipped.
func (c *Catalog) Products(ctx context.Context) ([]Product, error) {
	listing, err := c.List(ctx, "", "")
	if err != nil {
		return nil, err
	}
	return listing.Products, nil
}

// ResolveItem prices a cart line from catalog data.
func (c *Catalog) ResolveItem(ctx context.Context, productID string, variant *string) (cart.Item, error) {
	p, err := c.Get(ctx, productID)
	if err != nil {
		return cart.Item{}, err
	}
	label := variant
	if variant != nil {
		v, ok := p.Variant(*variant)
		if !ok {
			return cart.Item{}, pkgerrors.New(pkgerrors.CodeValidation, "unknown variant").
				WithDetails(map[string]string{"variantLabel": *variant})
		}
		name := v.Name
		label = &name
	}
	return cart.Item{
		ProductID:    p.ID,
		VariantLabel: label,
		Name:         p.Name,
		UnitPrice:    p.Price,
		ImageRef:     p.ImageFor(label),
	}, nil
}

// feedProducts serves the feed from cache, fetching at most once at a time.
func (c *Catalog) feedProducts(ctx context.Context) ([]Product, error) {
	if !c.feedEnabled() {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "xml catalog is not configured").
			WithDetails(map[string]string{"reason": ReasonUnavailable})
	}
	if cached := c.readCache(ctx); cached != nil {
		return cached, nil
	}
	v, err, _ := c.group.Do(string(SourceXML), func() (any, error) {
		products, err := c.feed.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.writeCache(ctx, products)
		return products, nil
	})
	if err != nil {
		c.logg.Error(ctx, "catalog.feed_unavailable", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "product catalog is unavailable").
			WithDetails(map[string]string{"reason": ReasonUnavailable})
	}
	products := v.([]Product)
	out := make([]Product, len(products))
	copy(out, products)
	return out, nil
}

func (c *Catalog) feedEnabled() bool {
	return c.feed != nil && c.feed.Enabled()
}

func (c *Catalog) readCache(ctx context.Context) []Product {
	if c.cache == nil {
		return nil
	}
	key := redis.CatalogKey(string(SourceXML))
	raw, err := c.cache.Get(ctx, key)
	if err != nil {
		if !redis.IsNil(err) {
			c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "catalog.cache_read_failed")
		}
		return nil
	}
	var products []Product
	if err := json.Unmarshal([]byte(raw), &products); err != nil || len(products) == 0 {
		return nil
	}
	return products
}

func (c *Catalog) writeCache(ctx context.Context, products []Product) {
	if c.cache == nil || c.ttl <= 0 {
		return
	}
	payload, err := json.Marshal(products)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, redis.CatalogKey(string(SourceXML)), string(payload), c.ttl); err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "catalog.cache_write_failed")
	}
}

func filter(products []Product, query string) []Product {
	if strings.TrimSpace(query) == "" {
		return products
	}
	out := make([]Product, 0, len(products))
	for _, p := range products {
		if p.Matches(query) {
			out = append(out, p)
		}
	}
	return out
}
