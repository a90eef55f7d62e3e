package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/glowhaus/storefront-backend/pkg/config"
	"github.com/glowhaus/storefront-backend/pkg/logger"
)

const bootstrapTimeout = 10 * time.Second

var (
	errProjectIDRequired    = errors.New("gcp project id is required")
	errDatasetRequired      = errors.New("bigquery dataset is required")
	errTableNameRequired    = errors.New("bigquery table name is required")
	errClientNotInitialized = errors.New("bigquery client not initialized")
)

// TableSpec is a table rows are streamed into. Row is a zero value of the
// row struct and supplies the schema when the table is created.
type TableSpec struct {
	Name           string
	Row            any
	PartitionField string
}

// Client streams rows into one dataset.
type Client struct {
	bq      *bigquery.Client
	dataset *bigquery.Dataset
	tables  []TableSpec
	create  bool
	region  string
	logg    *logger.Logger
}

// NewClient opens the dataset and makes sure it and every table in specs
// exist, creating them when cfg.CreateTables is set.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.BigQueryConfig, logg *logger.Logger, specs ...TableSpec) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errProjectIDRequired
	}
	dataset := strings.TrimSpace(cfg.Dataset)
	if dataset == "" {
		return nil, errDatasetRequired
	}
	tables, err := normalizeSpecs(specs)
	if err != nil {
		return nil, err
	}

	bq, err := bigquery.NewClient(ctx, project, clientOptions(gcp, cfg)...)
	if err != nil {
		return nil, fmt.Errorf("open bigquery: %w", err)
	}
	c := &Client{
		bq:      bq,
		dataset: bq.Dataset(dataset),
		tables:  tables,
		create:  cfg.CreateTables,
		region:  cfg.Location,
		logg:    logg,
	}
	if err := c.bootstrap(ctx); err != nil {
		_ = bq.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"dataset": dataset, "tables": len(tables)}), "bigquery.ready")
	}
	return c, nil
}

func normalizeSpecs(specs []TableSpec) ([]TableSpec, error) {
	if len(specs) == 0 {
		return nil, errTableNameRequired
	}
	out := make([]TableSpec, len(specs))
	for i, s := range specs {
		s.Name = strings.TrimSpace(s.Name)
		if s.Name == "" {
			return nil, errTableNameRequired
		}
		out[i] = s
	}
	return out, nil
}

// clientOptions prefers an emulator endpoint, then inline credentials, then
// a credentials file. No options means application default credentials.
func clientOptions(gcp config.GCPConfig, cfg config.BigQueryConfig) []option.ClientOption {
	switch {
	case strings.TrimSpace(cfg.Endpoint) != "":
		return []option.ClientOption{option.WithEndpoint(strings.TrimSpace(cfg.Endpoint)), option.WithoutAuthentication()}
	case strings.TrimSpace(gcp.CredentialsJSON) != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(gcp.CredentialsJSON))}
	case strings.TrimSpace(gcp.ApplicationCredentials) != "":
		return []option.ClientOption{option.WithCredentialsFile(gcp.ApplicationCredentials)}
	default:
		return nil
	}
}

func tableMetadata(spec TableSpec) (*bigquery.TableMetadata, error) {
	if spec.Row == nil {
		return nil, fmt.Errorf("table %q: no row type to infer a schema from", spec.Name)
	}
	schema, err := bigquery.InferSchema(spec.Row)
	if err != nil {
		return nil, fmt.Errorf("table %q: infer schema: %w", spec.Name, err)
	}
	meta := &bigquery.TableMetadata{Name: spec.Name, Schema: schema}
	if spec.PartitionField != "" {
		meta.TimePartitioning = &bigquery.TimePartitioning{Type: bigquery.DayPartitioningType, Field: spec.PartitionField}
	}
	return meta, nil
}

// bootstrap checks the dataset first, then all tables concurrently.
func (c *Client) bootstrap(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, bootstrapTimeout)
	defer cancel()

	if err := c.ensureDataset(ctx); err != nil {
		return err
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, spec := range c.tables {
		g.Go(func() error { return c.ensureTable(gctx, spec) })
	}
	return g.Wait()
}

func (c *Client) ensureDataset(ctx context.Context) error {
	_, err := c.dataset.Metadata(ctx)
	switch {
	case err == nil:
		return nil
	case !notFound(err):
		return fmt.Errorf("dataset %q: %w", c.dataset.DatasetID, err)
	case !c.create:
		return fmt.Errorf("dataset %q does not exist", c.dataset.DatasetID)
	}
	if err := c.dataset.Create(ctx, &bigquery.DatasetMetadata{Location: c.region}); err != nil {
		return fmt.Errorf("create dataset %q: %w", c.dataset.DatasetID, err)
	}
	return nil
}

func (c *Client) ensureTable(ctx context.Context, spec TableSpec) error {
	table := c.dataset.Table(spec.Name)
	_, err := table.Metadata(ctx)
	switch {
	case err == nil:
		return nil
	case !notFound(err):
		return fmt.Errorf("table %q: %w", spec.Name, err)
	case !c.create:
		return fmt.Errorf("table %q does not exist", spec.Name)
	}
	meta, err := tableMetadata(spec)
	if err != nil {
		return err
	}
	if err := table.Create(ctx, meta); err != nil {
		return fmt.Errorf("create table %q: %w", spec.Name, err)
	}
	if c.logg != nil {
		c.logg.Info(c.logg.WithField(ctx, "table", spec.Name), "bigquery.table_created")
	}
	return nil
}

// Ping re-runs the dataset and table checks.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.dataset == nil {
		return errClientNotInitialized
	}
	return c.bootstrap(ctx)
}

// InsertRows streams rows into table. Rows that implement
// bigquery.ValueSaver supply their own insert ids for dedup.
func (c *Client) InsertRows(ctx context.Context, table string, rows []any) error {
	if c == nil || c.dataset == nil {
		return errClientNotInitialized
	}
	if table = strings.TrimSpace(table); table == "" {
		return errTableNameRequired
	}
	if len(rows) == 0 {
		return nil
	}
	return c.dataset.Table(table).Inserter().Put(ctx, rows)
}

func (c *Client) Close() error {
	if c == nil || c.bq == nil {
		return nil
	}
	return c.bq.Close()
}

func notFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}
