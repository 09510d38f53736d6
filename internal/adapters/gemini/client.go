// Package gemini generates reply text with the Gemini API.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/okian/affirmbot/internal/config"
	"github.com/okian/affirmbot/internal/domain/model"
	"github.com/okian/affirmbot/pkg/logger"
	"github.com/okian/affirmbot/pkg/metrics"
)

// contentGenerator is the part of genai.Models the client uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client implements modes.Generator.
type Client struct {
	models contentGenerator
	model  string
	log    logger.Logger
}

// New connects to the Gemini API with apiKey.
func New(ctx context.Context, apiKey, modelName string, httpClient *http.Client) (*Client, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newClient(gc.Models, modelName), nil
}

func newClient(models contentGenerator, modelName string) *Client {
	return &Client{models: models, model: modelName, log: logger.Named("gemini")}
}

type affirmation struct {
	Text  string `json:"text"`
	Score int    `json:"score"`
}

type judgement struct {
	Result  bool   `json:"result"`
	Comment string `json:"comment"`
}

// Generate implements modes.Generator. Only affirmations carry a score.
func (c *Client) Generate(ctx context.Context, req model.GenerationRequest) (model.Generation, error) {
	p, err := prompt(req, "")
	if err != nil {
		return model.Generation{}, err
	}
	if req.Mode != config.ModeAffirmation {
		text, err := c.call(ctx, req.Mode, req.Locale, p, false)
		if err != nil {
			return model.Generation{}, err
		}
		return model.Generation{Text: text}, nil
	}

	raw, err := c.call(ctx, req.Mode, req.Locale, p, true)
	if err != nil {
		return model.Generation{}, err
	}
	var out affirmation
	if err := json.Unmarshal([]byte(cleanJSON(raw)), &out); err != nil {
		metrics.RecordGenerationError(req.Mode)
		return model.Generation{}, fmt.Errorf("%w: decode affirmation: %w", model.ErrGeneration, err)
	}
	out.Text = strings.TrimSpace(out.Text)
	if out.Text == "" {
		metrics.RecordGenerationError(req.Mode)
		return model.Generation{}, fmt.Errorf("%w: empty affirmation", model.ErrGeneration)
	}
	return model.Generation{Text: out.Text, Score: clamp(out.Score)}, nil
}

// Judge implements modes.Generator.
func (c *Client) Judge(ctx context.Context, req model.GenerationRequest) (model.Judgement, error) {
	instruction := judgeJA
	if req.Locale == "en" {
		instruction = judgeEN
	}
	p, err := prompt(req, instruction)
	if err != nil {
		return model.Judgement{}, err
	}
	raw, err := c.call(ctx, "judge", req.Locale, p, true)
	if err != nil {
		return model.Judgement{}, err
	}
	var out judgement
	if err := json.Unmarshal([]byte(cleanJSON(raw)), &out); err != nil {
		metrics.RecordGenerationError("judge")
		return model.Judgement{}, fmt.Errorf("%w: decode judgement: %w", model.ErrGeneration, err)
	}
	return model.Judgement{OK: out.Result, Comment: out.Comment}, nil
}

func (c *Client) call(ctx context.Context, mode, locale, prompt string, jsonOut bool) (string, error) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: system(locale)}}},
	}
	if jsonOut {
		cfg.ResponseMIMEType = "application/json"
	}

	start := time.Now()
	resp, err := c.models.GenerateContent(ctx, c.model, genai.Text(prompt), cfg)
	metrics.RecordGenerationLatency(mode, float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordGenerationError(mode)
		c.log.Warn(ctx, "generation failed", logger.String("mode", mode), logger.Error(err))
		return "", fmt.Errorf("%w: %s: %w", model.ErrGeneration, mode, err)
	}
	text := firstText(resp)
	if text == "" {
		metrics.RecordGenerationError(mode)
		return "", fmt.Errorf("%w: %s: empty response", model.ErrGeneration, mode)
	}
	return text, nil
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	cand := resp.Candidates[0]
	if cand == nil || cand.Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range cand.Content.Parts {
		if p != nil {
			b.WriteString(p.Text)
		}
	}
	return strings.TrimSpace(b.String())
}

func cleanJSON(input string) string {
	input = strings.TrimSpace(input)
	input = strings.TrimPrefix(input, "```json")
	input = strings.TrimPrefix(input, "```")
	input = strings.TrimSuffix(input, "```")
	return strings.TrimSpace(input)
}

func clamp(score int) int {
	return max(0, min(100, score))
}
