// Package translate machine-translates localized JSONB fields. Writes enqueue
// an outbox job in the same transaction as the record mutation; a polling
// worker claims jobs, calls the translation provider and merges the results
// back into the stored locale maps.
package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Translator produces a targetLocale → translation map for one text.
type Translator interface {
	Translate(ctx context.Context, text, sourceLocale string, targetLocales []string) (map[string]string, error)
}

// Client talks to an OpenAI-compatible chat completions endpoint and asks for
// a strict JSON object keyed by locale code.
type Client struct {
	BaseURL string
	APIKey  string
	Model   string
	http    *resty.Client
}

func NewClient(baseURL, apiKey, model string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		http:    resty.New().SetTimeout(30 * time.Second),
	}
}

const systemPrompt = `You are a professional medical translator. Translate the user's text from the source locale into every target locale. Respond with a JSON object whose keys are exactly the target locale codes and whose values are the translations. Do not add any other keys or commentary.`

func (c *Client) Translate(ctx context.Context, text, sourceLocale string, targetLocales []string) (map[string]string, error) {
	if len(targetLocales) == 0 {
		return map[string]string{}, nil
	}

	userPrompt := fmt.Sprintf("Source locale: %s\nTarget locales: %s\nText:\n%s",
		sourceLocale, strings.Join(targetLocales, ", "), text)

	body := map[string]any{
		"model": c.Model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userPrompt},
		},
		"temperature":     0.2,
		"response_format": map[string]string{"type": "json_object"},
	}

	var resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}

	url := strings.TrimRight(c.BaseURL, "/") + "/chat/completions"
	r, err := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+c.APIKey).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&resp).
		Post(url)
	if err != nil {
		return nil, fmt.Errorf("translate request: %w", err)
	}
	if r.IsError() {
		return nil, fmt.Errorf("translate request: %s; body: %s", r.Status(), r.String())
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("translate request: no choices returned")
	}

	return parseTranslations(resp.Choices[0].Message.Content, targetLocales)
}

// parseTranslations extracts the locale map, tolerating fenced code blocks
// around the JSON.
func parseTranslations(content string, targetLocales []string) (map[string]string, error) {
	s := strings.TrimSpace(content)
	if idx := strings.Index(s, "```"); idx >= 0 {
		rest := strings.TrimPrefix(s[idx+3:], "json")
		if j := strings.Index(rest, "```"); j >= 0 {
			s = strings.TrimSpace(rest[:j])
		}
	}

	var raw map[string]string
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, fmt.Errorf("parse translations: %w", err)
	}

	out := make(map[string]string, len(targetLocales))
	for _, locale := range targetLocales {
		if v, ok := raw[locale]; ok && v != "" {
			out[locale] = v
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("parse translations: no target locales in response")
	}
	return out, nil
}
