package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Gustavofrb/relatorio-mensal/internal/core"
)

// Recipients groups the mailing lists of each audience.
type Recipients struct {
	Finance    []string
	Operations []string
	Support    []string
	IT         []string
	Leadership []string
}

// EmailConfig holds the SMTP settings.
type EmailConfig struct {
	Host       string
	Port       int
	User       string
	Password   string
	From       string
	Recipients Recipients
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailNotifier sends HTML mail through an SMTP relay with STARTTLS.
type EmailNotifier struct {
	cfg  EmailConfig
	send sendFunc
	now  func() time.Time
}

func NewEmailNotifier(cfg EmailConfig) *EmailNotifier {
	if cfg.From == "" {
		cfg.From = cfg.User
	}
	return &EmailNotifier{cfg: cfg, send: smtp.SendMail, now: time.Now}
}

func (e *EmailNotifier) enabled() bool {
	return e.cfg.User != "" && e.cfg.Password != ""
}

// Success mails finance, operations and support with the reports attached.
func (e *EmailNotifier) Success(ctx context.Context, report core.RunReport) error {
	to := dedupe(e.cfg.Recipients.Finance, e.cfg.Recipients.Operations, e.cfg.Recipients.Support)
	body, err := render(successTemplate, map[string]any{
		"Month":     report.Month,
		"RunID":     report.RunID,
		"Processed": e.now().Format("02/01/2006 15:04:05"),
		"Reports":   report.Reports,
		"Rows":      report.Rows,
	})
	if err != nil {
		return err
	}
	return e.deliver(ctx, to, fmt.Sprintf("Fechamento Mensal %s - Concluído com Sucesso", report.Month), body, report.Reports)
}

// Failure mails IT.
func (e *EmailNotifier) Failure(ctx context.Context, month string, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	body, err := render(failureTemplate, map[string]any{
		"Month": month,
		"When":  e.now().Format("02/01/2006 15:04:05"),
		"Error": msg,
	})
	if err != nil {
		return err
	}
	return e.deliver(ctx, dedupe(e.cfg.Recipients.IT), fmt.Sprintf("ERRO no Fechamento Mensal %s", month), body, nil)
}

// Summary mails the executive summary to leadership.
func (e *EmailNotifier) Summary(ctx context.Context, report core.RunReport) error {
	rating := "sem avaliações"
	if report.Stats.AvgRating != nil {
		rating = fmt.Sprintf("%.2f", *report.Stats.AvgRating)
	}
	body, err := render(summaryTemplate, map[string]any{
		"Month":      report.Month,
		"Properties": report.Stats.TotalProperties,
		"Gross":      core.FormatBRL(report.Stats.TotalRevenue),
		"Net":        core.FormatBRL(report.Stats.NetRevenue),
		"Occupancy":  fmt.Sprintf("%.1f%%", report.Stats.AvgOccupancy),
		"Rating":     rating,
		"Text":       report.Summary,
	})
	if err != nil {
		return err
	}
	return e.deliver(ctx, dedupe(e.cfg.Recipients.Leadership), fmt.Sprintf("Resumo Executivo - Fechamento %s", report.Month), body, nil)
}

func (e *EmailNotifier) deliver(ctx context.Context, to []string, subject, html string, attachments []string) error {
	if !e.enabled() {
		slog.WarnContext(ctx, "SMTP credentials not configured, email not sent", "subject", subject)
		return nil
	}
	if len(to) == 0 {
		slog.WarnContext(ctx, "No recipients configured, email not sent", "subject", subject)
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := buildMessage(e.cfg.From, to, subject, html, attachments)
	if err != nil {
		return err
	}

	addr := e.cfg.Host + ":" + strconv.Itoa(e.cfg.Port)
	auth := smtp.PlainAuth("", e.cfg.User, e.cfg.Password, e.cfg.Host)
	if err := e.send(addr, auth, e.cfg.From, to, msg); err != nil {
		return fmt.Errorf("send email %q: %w", subject, err)
	}
	slog.InfoContext(ctx, "Email sent", "subject", subject, "recipients", len(to), "attachments", len(attachments))
	return nil
}

// buildMessage renders a multipart/mixed message. Missing attachment files
// are skipped.
func buildMessage(from string, to []string, subject, html string, attachments []string) ([]byte, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", w.Boundary())

	part, err := w.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/html; charset=utf-8"},
		"Content-Transfer-Encoding": {"base64"},
	})
	if err != nil {
		return nil, err
	}
	if err := writeBase64(part, []byte(html)); err != nil {
		return nil, err
	}

	for _, path := range attachments {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("Attachment not readable, skipping", "file", path, "error", err)
			continue
		}
		name := filepath.Base(path)
		ctype := mime.TypeByExtension(filepath.Ext(name))
		if ctype == "" {
			ctype = "application/octet-stream"
		}
		part, err := w.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {ctype},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": name})},
		})
		if err != nil {
			return nil, err
		}
		if err := writeBase64(part, data); err != nil {
			return nil, err
		}
	}

	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeBase64 wraps encoded lines at 76 characters.
func writeBase64(w io.Writer, data []byte) error {
	encoded := base64.StdEncoding.EncodeToString(data)
	for len(encoded) > 76 {
		if _, err := w.Write([]byte(encoded[:76] + "\r\n")); err != nil {
			return err
		}
		encoded = encoded[76:]
	}
	_, err := w.Write([]byte(encoded + "\r\n"))
	return err
}

func dedupe(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range lists {
		for _, addr := range list {
			addr = strings.TrimSpace(addr)
			if addr == "" {
				continue
			}
			key := strings.ToLower(addr)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, addr)
		}
	}
	sort.Strings(out)
	return out
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}

var successTemplate = template.Must(template.New("success").Parse(`<html><body style="font-family: Arial, sans-serif;">
<h1>Fechamento Mensal Concluído</h1>
<p><strong>Mês de Referência:</strong> {{.Month}}</p>
<p><strong>Execução:</strong> {{.RunID}} ({{.Rows}} imóveis)</p>
<p><strong>Data/Hora de Processamento:</strong> {{.Processed}}</p>
<h2>Relatórios Gerados</h2>
<ul>{{range .Reports}}<li>{{.}}</li>{{end}}</ul>
<p>Os relatórios estão anexados a este email.</p>
</body></html>`))

var failureTemplate = template.Must(template.New("failure").Parse(`<html><body style="font-family: Arial, sans-serif;">
<h1>Erro no Fechamento Mensal</h1>
<p><strong>Mês de Referência:</strong> {{.Month}}</p>
<p><strong>Data/Hora:</strong> {{.When}}</p>
<p><strong>Mensagem:</strong> {{.Error}}</p>
<p>O fechamento mensal não foi concluído. Os relatórios do mês {{.Month}} não foram gerados.</p>
<p>Executar manualmente: <code>fechamento run --month {{.Month}}</code></p>
</body></html>`))

var summaryTemplate = template.Must(template.New("summary").Parse(`<html><body style="font-family: Arial, sans-serif;">
<h2>Resumo Executivo - {{.Month}}</h2>
<table style="border-collapse: collapse;">
<tr><td>Total de Imóveis</td><td>{{.Properties}}</td></tr>
<tr><td>Faturamento Bruto Total</td><td>{{.Gross}}</td></tr>
<tr><td>Receita Líquida Total</td><td>{{.Net}}</td></tr>
<tr><td>Taxa de Ocupação Média</td><td>{{.Occupancy}}</td></tr>
<tr><td>Nota Média dos Hóspedes</td><td>{{.Rating}}</td></tr>
</table>
<pre>{{.Text}}</pre>
</body></html>`))
