package source

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/corralhq/corral/pkg/logger"
)

const huggingFaceBaseURL = "https://huggingface.co"

// HuggingFace fetches model records from the Hugging Face Hub API.
// Pagination follows the Link response header (cursor style).
type HuggingFace struct {
	client  *resty.Client
	baseURL string
	logger  logger.Logger
}

// NewHuggingFace creates a Hugging Face adapter.
func NewHuggingFace(opts ...Option) *HuggingFace {
	h := &HuggingFace{
		client:  newHTTPClient(),
		baseURL: huggingFaceBaseURL,
		logger:  logger.Get().Named("source.huggingface"),
	}
	for _, opt := range opts {
		opt(&h.client, &h.baseURL)
	}
	return h
}

// Name returns the source identifier.
func (h *HuggingFace) Name() string { return "huggingface" }

// Fetch walks the hub listing, following Link headers up to MaxPages.
func (h *HuggingFace) Fetch(ctx context.Context, cfg FetchConfig) ([]map[string]any, error) {
	cfg = cfg.withDefaults()

	url := fmt.Sprintf("%s/api/models?limit=%d&full=true&sort=downloads", h.baseURL, cfg.PageSize)
	var records []map[string]any

	for page := 0; page < cfg.MaxPages && url != ""; page++ {
		resp, err := h.client.R().SetContext(ctx).Get(url)
		if err != nil {
			return records, fmt.Errorf("huggingface fetch: %w", err)
		}
		if resp.IsError() {
			return records, fmt.Errorf("%w: huggingface status %d", ErrUpstreamError, resp.StatusCode())
		}

		var batch []map[string]any
		if err := json.Unmarshal(resp.Body(), &batch); err != nil {
			return records, fmt.Errorf("huggingface decode: %w", err)
		}
		if len(batch) == 0 {
			break
		}
		records = append(records, batch...)

		url = nextLink(resp.Header().Get("Link"))
	}

	h.logger.Debug(ctx, "fetched hub records", logger.Int("count", len(records)))
	return records, nil
}

// nextLink extracts the rel="next" URL from a Link header, or "".
func nextLink(header string) string {
	for _, part := range strings.Split(header, ",") {
		if !strings.Contains(part, `rel="next"`) {
			continue
		}
		start := strings.Index(part, "<")
		end := strings.Index(part, ">")
		if start >= 0 && end > start {
			return part[start+1 : end]
		}
	}
	return ""
}
