package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/corralhq/corral/internal/domain/model"
	"github.com/corralhq/corral/pkg/logger"
)

const (
	serperSearchURL  = "https://google.serper.dev/search"
	webSearchTimeout = 15 * time.Second
)

// WebSearch enriches models from web search snippets. It fills only the
// description; anything deeper needs the API strategy.
type WebSearch struct {
	client   *resty.Client
	endpoint string
	apiKey   string
	logger   logger.Logger
}

type searchResponse struct {
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic"`
	KnowledgeGraph struct {
		Description string `json:"description"`
	} `json:"knowledgeGraph"`
}

// NewWebSearch creates the web search provider. It reuses the API key
// slot from cfg when the configured provider name is "serper".
func NewWebSearch(cfg Config) *WebSearch {
	w := &WebSearch{
		client: resty.New().
			SetHeader("User-Agent", "corral-catalog/1.0").
			SetTimeout(webSearchTimeout),
		endpoint: serperSearchURL,
		logger:   logger.Get().Named("provider.websearch"),
	}
	if cfg.Name == "serper" {
		w.apiKey = cfg.APIKey
		if cfg.Endpoint != "" {
			w.endpoint = cfg.Endpoint
		}
	}
	return w
}

// Source returns the strategy identifier.
func (w *WebSearch) Source() model.ValidationSource { return model.SourceWebsearch }

// Enrich searches for the model and distills a description.
func (w *WebSearch) Enrich(ctx context.Context, m model.Model) (model.Model, error) {
	if w.apiKey == "" {
		return model.Model{}, newError(CategoryDisabled, errors.New("no search API key configured"))
	}

	query := m.Name
	if m.Provider != "" {
		query = m.Provider + " " + m.Name
	}

	var result searchResponse
	resp, err := w.client.R().
		SetContext(ctx).
		SetHeader("X-API-KEY", w.apiKey).
		SetBody(map[string]any{"q": query + " AI model", "num": 5}).
		SetResult(&result).
		Post(w.endpoint)
	if err != nil {
		return model.Model{}, newError(CategoryNetwork, err)
	}
	if resp.IsError() {
		return model.Model{}, newError(categorizeStatus(resp.StatusCode()),
			fmt.Errorf("search returned status %d", resp.StatusCode()))
	}

	partial := model.Model{}
	if result.KnowledgeGraph.Description != "" {
		partial.Description = result.KnowledgeGraph.Description
	} else if len(result.Organic) > 0 {
		partial.Description = result.Organic[0].Snippet
	}
	if partial.Description == "" {
		return model.Model{}, newError(CategoryNotFound, errors.New("no usable search results"))
	}

	w.logger.Debug(ctx, "enriched via web search", logger.String("model", m.Name))
	return partial, nil
}
