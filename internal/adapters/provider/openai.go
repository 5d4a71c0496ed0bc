package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/corralhq/corral/internal/domain/model"
	"github.com/corralhq/corral/pkg/logger"
)

const enrichmentSystemPrompt = `You are a model catalog researcher. Given a partial record for an AI model,
fill in missing fields from your knowledge. Respond with a single JSON object
using these keys (omit any you do not know): description, parameters, domain,
tags, license {name, type, commercial_use, attribution_required, share_alike,
copyleft}, hosting {weights_available, api_available, on_premise_friendly},
pricing [{unit, input_per_unit, output_per_unit, currency}], release_date.
Dates are ISO 8601. Parameter counts use short form like "70B". Never invent
pricing you are not confident about.`

// OpenAI enriches models through a chat-completion API in JSON mode.
type OpenAI struct {
	client  *openai.Client
	model   string
	enabled bool
	logger  logger.Logger
}

// NewOpenAI creates the API enrichment provider. Without an API key the
// provider reports CategoryDisabled so the chain can fall through.
func NewOpenAI(cfg Config) *OpenAI {
	o := &OpenAI{
		model:   cfg.Model,
		enabled: cfg.APIKey != "",
		logger:  logger.Get().Named("provider.openai"),
	}
	if o.model == "" {
		o.model = openai.GPT4oMini
	}
	if !o.enabled {
		return o
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientCfg.BaseURL = cfg.Endpoint
	}
	o.client = openai.NewClientWithConfig(clientCfg)
	return o
}

// Source returns the strategy identifier.
func (o *OpenAI) Source() model.ValidationSource { return model.SourceAPI }

// Enrich asks the LLM for the model's missing fields.
func (o *OpenAI) Enrich(ctx context.Context, m model.Model) (model.Model, error) {
	if !o.enabled {
		return model.Model{}, newError(CategoryDisabled, errors.New("no API key configured"))
	}

	known, err := json.Marshal(struct {
		Name     string       `json:"name"`
		Provider string       `json:"provider,omitempty"`
		Domain   model.Domain `json:"domain,omitempty"`
		URL      string       `json:"url,omitempty"`
		Tags     []string     `json:"tags,omitempty"`
	}{m.Name, m.Provider, m.Domain, m.URL, m.Tags})
	if err != nil {
		return model.Model{}, newError(CategoryBadResponse, err)
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: enrichmentSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: string(known)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return model.Model{}, categorizeOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return model.Model{}, newError(CategoryBadResponse, errors.New("no choices returned"))
	}

	partial, err := parsePartialModel(resp.Choices[0].Message.Content)
	if err != nil {
		return model.Model{}, newError(CategoryBadResponse, err)
	}

	o.logger.Debug(ctx, "enriched via API", logger.String("model", m.Name))
	return partial, nil
}

// parsePartialModel decodes the LLM reply into a partial model,
// dropping anything the provider has no business setting.
func parsePartialModel(content string) (model.Model, error) {
	content = strings.TrimSpace(content)

	var partial model.Model
	if err := json.Unmarshal([]byte(content), &partial); err != nil {
		return model.Model{}, fmt.Errorf("decode enrichment reply: %w", err)
	}

	// Identity and user state belong to the store, not the provider.
	partial.ID = ""
	partial.Source = ""
	partial.IsFavorite = false
	partial.IsNSFWFlagged = false
	partial.FlaggedImageURLs = nil
	partial.SourceStats = nil
	return partial, nil
}

// categorizeOpenAIError maps API errors onto failure categories.
func categorizeOpenAIError(err error) *Error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return newError(categorizeStatus(apiErr.HTTPStatusCode), err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return newError(categorizeStatus(reqErr.HTTPStatusCode), err)
	}
	return newError(CategoryNetwork, err)
}
