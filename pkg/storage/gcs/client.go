package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/glowhaus/storefront-backend/pkg/config"
	"github.com/glowhaus/storefront-backend/pkg/logger"
	"github.com/glowhaus/storefront-backend/pkg/telemetry"
)

const (
	readScope   = "https://www.googleapis.com/auth/devstorage.read_only"
	apiBaseURL  = "https://storage.googleapis.com/storage/v1"
	pingTimeout = 5 * time.Second
)

// ErrObjectNotFound is returned by Open when the object does not exist.
var ErrObjectNotFound = errors.New("gcs object not found")

// Client reads objects from a single bucket through the JSON API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	bucket     string
}

// NewClient authenticates with the configured service account, or the
// ambient default credentials, and checks that the bucket is listable.
func NewClient(ctx context.Context, bucket string, gcp config.GCPConfig, timeout time.Duration, logg *logger.Logger) (*Client, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errors.New("gcs bucket name is required")
	}

	creds, err := credentials(ctx, gcp)
	if err != nil {
		return nil, err
	}

	base := telemetry.NewHTTPClient(timeout)
	httpClient := &http.Client{
		Timeout:   timeout,
		Transport: &oauth2.Transport{Source: creds.TokenSource, Base: base.Transport},
	}

	client := newClient(httpClient, apiBaseURL, bucket)
	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("gcs health check failed: %w", err)
	}

	if logg != nil {
		logg.Info(ctx, "gcs client initialized")
	}
	return client, nil
}

func newClient(httpClient *http.Client, baseURL, bucket string) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		bucket:     bucket,
	}
}

func credentials(ctx context.Context, gcp config.GCPConfig) (*google.Credentials, error) {
	switch {
	case gcp.CredentialsJSON != "":
		return google.CredentialsFromJSON(ctx, []byte(gcp.CredentialsJSON), readScope)
	case gcp.ApplicationCredentials != "":
		data, err := os.ReadFile(gcp.ApplicationCredentials)
		if err != nil {
			return nil, fmt.Errorf("reading credentials file: %w", err)
		}
		return google.CredentialsFromJSON(ctx, data, readScope)
	default:
		return google.FindDefaultCredentials(ctx, readScope)
	}
}

// Bucket returns the bucket this client reads from.
func (c *Client) Bucket() string {
	if c == nil {
		return ""
	}
	return c.bucket
}

// Ping lists at most one object, which needs storage.objects.list.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.httpClient == nil {
		return errors.New("gcs client not initialized")
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/b/%s/o?maxResults=1", c.baseURL, url.PathEscape(c.bucket))
	resp, err := c.get(ctx, endpoint, "application/json")
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return statusError("gcs object check failed", resp)
	}
	return nil
}

// Open streams the object's content. The caller closes the reader.
func (c *Client) Open(ctx context.Context, object string) (io.ReadCloser, error) {
	if c == nil || c.httpClient == nil {
		return nil, errors.New("gcs client not initialized")
	}
	object = strings.TrimPrefix(strings.TrimSpace(object), "/")
	if object == "" {
		return nil, errors.New("gcs object name is required")
	}

	endpoint := fmt.Sprintf("%s/b/%s/o/%s?alt=media", c.baseURL, url.PathEscape(c.bucket), url.PathEscape(object))
	resp, err := c.get(ctx, endpoint, "")
	if err != nil {
		return nil, err
	}
	switch resp.StatusCode {
	case http.StatusOK:
		return resp.Body, nil
	case http.StatusNotFound:
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: %s/%s", ErrObjectNotFound, c.bucket, object)
	default:
		defer func() { _ = resp.Body.Close() }()
		return nil, statusError("gcs object read failed", resp)
	}
}

func (c *Client) Close() error {
	return nil
}

func (c *Client) get(ctx context.Context, endpoint, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	return c.httpClient.Do(req)
}

func statusError(msg string, resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if body := strings.TrimSpace(string(b)); body != "" {
		return fmt.Errorf("%s: %s: %s", msg, resp.Status, body)
	}
	return fmt.Errorf("%s: %s", msg, resp.Status)
}
