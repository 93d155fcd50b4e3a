package insights

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Gustavofrb/relatorio-mensal/internal/core"
)

const (
	defaultModel       = "gpt-4"
	defaultBaseURL     = "https://api.openai.com/v1"
	defaultConcurrency = 4
	minTextLength      = 10
	errorBodyLimit     = 512
)

var ErrAPIKeyRequired = errors.New("llm api key is required")

const classifyPrompt = `Classifique o seguinte feedback de hóspede em UMA das categorias:
%s
Feedback: %q

Responda apenas com o nome da categoria, nada mais.`

// LLMClassifier asks an OpenAI compatible chat completions endpoint for the
// category of each feedback. Rows with short text, failed calls and unknown
// answers keep the keyword result.
type LLMClassifier struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	model       string
	concurrency int
	fallback    KeywordClassifier
}

// LLMOption configures optional classifier behavior.
type LLMOption func(*LLMClassifier)

// WithLLMHTTPClient overrides the default HTTP client.
func WithLLMHTTPClient(client *http.Client) LLMOption {
	return func(c *LLMClassifier) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLLMBaseURL overrides the API base URL.
func WithLLMBaseURL(baseURL string) LLMOption {
	return func(c *LLMClassifier) {
		if trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/"); trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithModel sets the chat model.
func WithModel(model string) LLMOption {
	return func(c *LLMClassifier) {
		if model != "" {
			c.model = model
		}
	}
}

// WithConcurrency bounds the number of in-flight requests.
func WithConcurrency(n int) LLMOption {
	return func(c *LLMClassifier) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

func NewLLMClassifier(apiKey string, opts ...LLMOption) (*LLMClassifier, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, ErrAPIKeyRequired
	}
	c := &LLMClassifier{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		baseURL:     defaultBaseURL,
		apiKey:      apiKey,
		model:       defaultModel,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

func (c *LLMClassifier) Classify(ctx context.Context, feedback []core.RawFeedback) ([]core.ClassifiedFeedback, error) {
	out, err := c.fallback.Classify(ctx, feedback)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i := range out {
		i := i
		text := strings.TrimSpace(out[i].Comment)
		if len([]rune(text)) < minTextLength {
			continue
		}
		g.Go(func() error {
			category, err := c.complete(gctx, text)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				slog.WarnContext(gctx, "LLM classification failed, keeping keyword category",
					"property_id", out[i].PropertyID, "error", err)
				return nil
			}
			if !IsCategory(category) {
				slog.WarnContext(gctx, "LLM returned unknown category, keeping keyword category",
					"property_id", out[i].PropertyID, "category", category)
				return nil
			}
			out[i].Category = category
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *LLMClassifier) complete(ctx context.Context, text string) (string, error) {
	var list strings.Builder
	for _, name := range Categories() {
		list.WriteString("- " + name + "\n")
	}

	payload, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: fmt.Sprintf(classifyPrompt, list.String(), text)}},
		MaxTokens:   10,
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute chat request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return "", fmt.Errorf("chat completions returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", errors.New("chat response has no choices")
	}
	answer := strings.ToLower(strings.TrimSpace(decoded.Choices[0].Message.Content))
	return strings.Trim(answer, ".\"' "), nil
}
