package provider

import (
	"context"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/corralhq/corral/internal/domain/model"
	"github.com/corralhq/corral/pkg/logger"
)

const scrapeTimeout = 20 * time.Second

// metaDescriptionRe pulls the description out of a model's landing page.
// Good enough for the meta tags the catalog sites actually emit; a full
// HTML parser buys nothing here.
var metaDescriptionRe = regexp.MustCompile(
	`<meta[^>]+(?:name|property)=["'](?:og:)?description["'][^>]+content=["']([^"']+)["']`)

// Scraper enriches models by fetching their landing page. Last resort
// in the chain: it only ever yields a description.
type Scraper struct {
	client *resty.Client
	logger logger.Logger
}

// NewScraper creates the scraping provider.
func NewScraper() *Scraper {
	return &Scraper{
		client: resty.New().
			SetHeader("User-Agent", "corral-catalog/1.0").
			SetTimeout(scrapeTimeout),
		logger: logger.Get().Named("provider.scrape"),
	}
}

// Source returns the strategy identifier.
func (s *Scraper) Source() model.ValidationSource { return model.SourceScraping }

// Enrich fetches the model's page and extracts its meta description.
func (s *Scraper) Enrich(ctx context.Context, m model.Model) (model.Model, error) {
	if m.URL == "" {
		return model.Model{}, newError(CategoryDisabled, errors.New("model has no URL to scrape"))
	}

	resp, err := s.client.R().SetContext(ctx).Get(m.URL)
	if err != nil {
		return model.Model{}, newError(CategoryNetwork, err)
	}
	if resp.IsError() {
		return model.Model{}, newError(categorizeStatus(resp.StatusCode()),
			fmt.Errorf("page returned status %d", resp.StatusCode()))
	}

	match := metaDescriptionRe.FindSubmatch(resp.Body())
	if match == nil {
		return model.Model{}, newError(CategoryNotFound, errors.New("page has no meta description"))
	}

	desc := strings.TrimSpace(html.UnescapeString(string(match[1])))
	if desc == "" {
		return model.Model{}, newError(CategoryNotFound, errors.New("page has an empty meta description"))
	}

	s.logger.Debug(ctx, "enriched via scraping", logger.String("model", m.Name))
	return model.Model{Description: desc}, nil
}
