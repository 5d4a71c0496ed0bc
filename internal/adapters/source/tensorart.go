package source

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/corralhq/corral/pkg/logger"
)

const tensorArtBaseURL = "https://api.tensor.art"

// TensorArt fetches model records from the TensorArt API. Listings are
// page-numbered; an empty page ends the walk.
type TensorArt struct {
	client  *resty.Client
	baseURL string
	logger  logger.Logger
}

type tensorArtPage struct {
	Models []map[string]any `json:"models"`
	Total  int              `json:"total"`
}

// NewTensorArt creates a TensorArt adapter.
func NewTensorArt(opts ...Option) *TensorArt {
	t := &TensorArt{
		client:  newHTTPClient(),
		baseURL: tensorArtBaseURL,
		logger:  logger.Get().Named("source.tensorart"),
	}
	for _, opt := range opts {
		opt(&t.client, &t.baseURL)
	}
	return t
}

// Name returns the source identifier.
func (t *TensorArt) Name() string { return "tensorart" }

// Fetch walks numbered pages until MaxPages or an empty page.
func (t *TensorArt) Fetch(ctx context.Context, cfg FetchConfig) ([]map[string]any, error) {
	cfg = cfg.withDefaults()

	var records []map[string]any
	for page := 1; page <= cfg.MaxPages; page++ {
		url := fmt.Sprintf("%s/v1/models?pageSize=%d&page=%d", t.baseURL, cfg.PageSize, page)

		resp, err := t.client.R().SetContext(ctx).Get(url)
		if err != nil {
			return records, fmt.Errorf("tensorart fetch: %w", err)
		}
		if resp.IsError() {
			return records, fmt.Errorf("%w: tensorart status %d", ErrUpstreamError, resp.StatusCode())
		}

		var envelope tensorArtPage
		if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
			return records, fmt.Errorf("tensorart decode: %w", err)
		}
		if len(envelope.Models) == 0 {
			break
		}
		records = append(records, envelope.Models...)
	}

	t.logger.Debug(ctx, "fetched tensorart records", logger.Int("count", len(records)))
	return records, nil
}
