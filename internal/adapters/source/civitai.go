package source

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/corralhq/corral/pkg/logger"
)

const civitaiBaseURL = "https://civitai.com"

// Civitai fetches model records from the Civitai public API.
// Responses carry an items array plus a metadata.nextPage cursor.
type Civitai struct {
	client  *resty.Client
	baseURL string
	logger  logger.Logger
}

// civitaiPage mirrors the envelope Civitai wraps listings in.
type civitaiPage struct {
	Items    []map[string]any `json:"items"`
	Metadata struct {
		NextPage string `json:"nextPage"`
	} `json:"metadata"`
}

// NewCivitai creates a Civitai adapter.
func NewCivitai(opts ...Option) *Civitai {
	c := &Civitai{
		client:  newHTTPClient(),
		baseURL: civitaiBaseURL,
		logger:  logger.Get().Named("source.civitai"),
	}
	for _, opt := range opts {
		opt(&c.client, &c.baseURL)
	}
	return c
}

// Name returns the source identifier.
func (c *Civitai) Name() string { return "civitai" }

// Fetch walks the listing via metadata.nextPage up to MaxPages.
func (c *Civitai) Fetch(ctx context.Context, cfg FetchConfig) ([]map[string]any, error) {
	cfg = cfg.withDefaults()

	url := fmt.Sprintf("%s/api/v1/models?limit=%d&sort=Most%%20Downloaded", c.baseURL, cfg.PageSize)
	var records []map[string]any

	for page := 0; page < cfg.MaxPages && url != ""; page++ {
		resp, err := c.client.R().SetContext(ctx).Get(url)
		if err != nil {
			return records, fmt.Errorf("civitai fetch: %w", err)
		}
		if resp.IsError() {
			return records, fmt.Errorf("%w: civitai status %d", ErrUpstreamError, resp.StatusCode())
		}

		var envelope civitaiPage
		if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
			return records, fmt.Errorf("civitai decode: %w", err)
		}
		if len(envelope.Items) == 0 {
			break
		}
		records = append(records, envelope.Items...)
		url = envelope.Metadata.NextPage
	}

	c.logger.Debug(ctx, "fetched civitai records", logger.Int("count", len(records)))
	return records, nil
}
