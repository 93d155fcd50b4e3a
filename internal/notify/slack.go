package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Gustavofrb/relatorio-mensal/internal/core"
)

type slackAttachment struct {
	Color string `json:"color"`
	Text  string `json:"text"`
}

type slackMessage struct {
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments,omitempty"`
}

// SlackNotifier posts to an incoming webhook.
type SlackNotifier struct {
	webhookURL string
	httpClient *http.Client
}

func NewSlackNotifier(webhookURL string, client *http.Client) *SlackNotifier {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &SlackNotifier{webhookURL: webhookURL, httpClient: client}
}

func (s *SlackNotifier) Success(ctx context.Context, report core.RunReport) error {
	text := fmt.Sprintf("Fechamento mensal %s concluído com sucesso! %d imóveis, faturamento bruto %s.",
		report.Month, report.Stats.TotalProperties, core.FormatBRL(report.Stats.TotalRevenue))
	return s.post(ctx, text, "good")
}

func (s *SlackNotifier) Failure(ctx context.Context, month string, runErr error) error {
	text := fmt.Sprintf("ERRO no fechamento mensal %s", month)
	if runErr != nil {
		text += ": " + runErr.Error()
	}
	return s.post(ctx, text, "danger")
}

// Summary is a no-op; the executive summary goes by email only.
func (s *SlackNotifier) Summary(context.Context, core.RunReport) error {
	return nil
}

func (s *SlackNotifier) post(ctx context.Context, text, color string) error {
	if s.webhookURL == "" {
		slog.WarnContext(ctx, "Slack webhook not configured, message not sent")
		return nil
	}

	payload, err := json.Marshal(slackMessage{
		Text:        text,
		Attachments: []slackAttachment{{Color: color, Text: text}},
	})
	if err != nil {
		return fmt.Errorf("marshal slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post slack message: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	slog.InfoContext(ctx, "Slack notification sent", "color", color)
	return nil
}
