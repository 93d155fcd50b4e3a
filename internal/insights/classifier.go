// Package insights classifies guest feedback and derives the rule-based
// analysis attached to a monthly closing.
package insights

import (
	"context"
	"strings"

	"github.com/Gustavofrb/relatorio-mensal/internal/core"
)

// CategoryOther is assigned when no keyword matches.
const CategoryOther = "outro"

// Classifier assigns a complaint category to each feedback row.
type Classifier interface {
	Classify(ctx context.Context, feedback []core.RawFeedback) ([]core.ClassifiedFeedback, error)
}

type category struct {
	name     string
	keywords []string
}

// categories is ordered; the first match wins.
var categories = []category{
	{"limpeza", []string{"sujo", "limpo", "limpeza", "sujeira", "higiene"}},
	{"manutenção", []string{"quebrado", "estragado", "manutenção", "defeito", "conserto"}},
	{"check-in", []string{"check-in", "checkin", "entrada", "chave", "recepção"}},
	{"localização", []string{"localização", "local", "distante", "longe", "acesso"}},
	{"comunicação", []string{"comunicação", "resposta", "contato", "atendimento"}},
	{"equipamentos", []string{"equipamento", "aparelho", "eletrodoméstico", "tv", "geladeira"}},
	{"barulho", []string{"barulho", "ruído", "barulhento", "silencioso"}},
	{"wifi", []string{"wifi", "wi-fi", "internet", "conexão"}},
	{"água quente", []string{"água", "chuveiro", "banho", "quente"}},
	{"estacionamento", []string{"estacionamento", "garagem", "vaga", "carro"}},
}

// Categories returns the known category names in priority order, followed by
// CategoryOther.
func Categories() []string {
	out := make([]string, 0, len(categories)+1)
	for _, c := range categories {
		out = append(out, c.name)
	}
	return append(out, CategoryOther)
}

// IsCategory reports whether name is one of Categories.
func IsCategory(name string) bool {
	if name == CategoryOther {
		return true
	}
	for _, c := range categories {
		if c.name == name {
			return true
		}
	}
	return false
}

// KeywordClassifier matches case-insensitive keywords against the comment and
// then the complaint category of each row.
type KeywordClassifier struct{}

func NewKeywordClassifier() KeywordClassifier {
	return KeywordClassifier{}
}

func (KeywordClassifier) Classify(ctx context.Context, feedback []core.RawFeedback) ([]core.ClassifiedFeedback, error) {
	out := make([]core.ClassifiedFeedback, len(feedback))
	for i, fb := range feedback {
		out[i] = core.ClassifiedFeedback{RawFeedback: fb, Category: ClassifyText(fb.Comment, fb.ComplaintCategory)}
	}
	return out, ctx.Err()
}

// ClassifyText returns the first category whose keywords appear in any of
// texts, checked in order.
func ClassifyText(texts ...string) string {
	for _, text := range texts {
		text = strings.ToLower(text)
		if strings.TrimSpace(text) == "" {
			continue
		}
		for _, c := range categories {
			for _, kw := range c.keywords {
				if strings.Contains(text, kw) {
					return c.name
				}
			}
		}
	}
	return CategoryOther
}
