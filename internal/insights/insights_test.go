package insights

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gustavofrb/relatorio-mensal/internal/core"
)

func f64(v float64) *float64 { return &v }

func TestClassifyText(t *testing.T) {
	tests := []struct {
		name  string
		texts []string
		want  string
	}{
		{"cleaning", []string{"O banheiro estava sujo"}, "limpeza"},
		{"case insensitive", []string{"WIFI não funcionava"}, "wifi"},
		{"first category wins", []string{"Barulho e sujeira no quarto"}, "limpeza"},
		{"hot water", []string{"Chuveiro sem pressão"}, "água quente"},
		{"falls back to complaint", []string{"", "estacionamento"}, "estacionamento"},
		{"comment before complaint", []string{"ar condicionado com defeito", "limpeza"}, "manutenção"},
		{"no match", []string{"Tudo perfeito"}, CategoryOther},
		{"empty", nil, CategoryOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyText(tt.texts...))
		})
	}
}

func TestKeywordClassifier_Classify(t *testing.T) {
	feedback := []core.RawFeedback{
		{PropertyID: "P1", Comment: "Cheguei e a chave não estava na portaria"},
		{PropertyID: "P2", ComplaintCategory: "barulho"},
	}
	got, err := NewKeywordClassifier().Classify(context.Background(), feedback)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "check-in", got[0].Category)
	assert.Equal(t, "barulho", got[1].Category)
	assert.Equal(t, "P1", got[0].PropertyID)
}

func TestCategories(t *testing.T) {
	cats := Categories()
	assert.Equal(t, "limpeza", cats[0])
	assert.Equal(t, CategoryOther, cats[len(cats)-1])
	assert.True(t, IsCategory("água quente"))
	assert.False(t, IsCategory("piscina"))
}

func chatServer(t *testing.T, answer func(prompt string) (int, string)) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))

		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)

		status, content := answer(req.Messages[0].Content)
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": content}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestLLMClassifier_Classify(t *testing.T) {
	srv, calls := chatServer(t, func(prompt string) (int, string) {
		switch {
		case strings.Contains(prompt, "vizinhos"):
			return http.StatusOK, " Barulho.\n"
		case strings.Contains(prompt, "piscina"):
			return http.StatusOK, "piscina"
		default:
			return http.StatusInternalServerError, ""
		}
	})

	c, err := NewLLMClassifier("key", WithLLMBaseURL(srv.URL), WithModel("test-model"), WithConcurrency(2))
	require.NoError(t, err)

	feedback := []core.RawFeedback{
		{PropertyID: "P1", Comment: "Os vizinhos fizeram festa a noite toda"},
		{PropertyID: "P2", Comment: "A piscina estava fechada, mas o quarto estava sujo"},
		{PropertyID: "P3", Comment: "curto", ComplaintCategory: "wifi"},
		{PropertyID: "P4", Comment: "O chuveiro não esquentava de jeito nenhum"},
	}
	got, err := c.Classify(context.Background(), feedback)
	require.NoError(t, err)
	require.Len(t, got, 4)

	assert.Equal(t, "barulho", got[0].Category)
	assert.Equal(t, "limpeza", got[1].Category, "unknown answer keeps keyword result")
	assert.Equal(t, "wifi", got[2].Category, "short text is not sent")
	assert.Equal(t, "água quente", got[3].Category, "failed call keeps keyword result")
	assert.EqualValues(t, 3, calls.Load())
}

func TestNewLLMClassifier_RequiresKey(t *testing.T) {
	_, err := NewLLMClassifier("")
	assert.ErrorIs(t, err, ErrAPIKeyRequired)
}

func TestRecurringIssues(t *testing.T) {
	var classified []core.ClassifiedFeedback
	add := func(id, cat string, n int) {
		for i := 0; i < n; i++ {
			classified = append(classified, core.ClassifiedFeedback{RawFeedback: core.RawFeedback{PropertyID: id}, Category: cat})
		}
	}
	add("P1", "limpeza", 3)
	add("P1", "wifi", 4)
	add("P1", "barulho", 2)
	add("P2", "limpeza", 1)
	add("", "limpeza", 5)

	got := RecurringIssues(classified)
	assert.Equal(t, map[string][]string{"P1": {"limpeza", "wifi"}}, got)
}

func summaryRows() []core.MonthlySummary {
	return []core.MonthlySummary{
		{PropertyID: "P1", GrossRevenue: 5000, NetRevenue: 4000, OccupancyRate: 0.9, AvgRating: f64(3.5), ReservationsCount: 4, MarginPercent: f64(80)},
		{PropertyID: "P2", GrossRevenue: 3000, NetRevenue: 2500, OccupancyRate: 0.5, AvgRating: f64(4.8), ReservationsCount: 2, MarginPercent: f64(83.3)},
		{PropertyID: "P3", GrossRevenue: 1000, NetRevenue: 50, OccupancyRate: 0.2, ReservationsCount: 1, MarginPercent: f64(5)},
		{PropertyID: "P4", GrossRevenue: 2000, NetRevenue: 1500, OccupancyRate: 0.8, AvgRating: f64(4.9), ReservationsCount: 3, MarginPercent: f64(75)},
	}
}

func TestTopBottom(t *testing.T) {
	top, bottom := TopBottom(summaryRows(), 2)
	require.Len(t, top, 2)
	require.Len(t, bottom, 2)
	assert.Equal(t, "P1", top[0].PropertyID)
	assert.Equal(t, "P2", top[1].PropertyID)
	assert.Equal(t, "P3", bottom[0].PropertyID)
	assert.Equal(t, "P4", bottom[1].PropertyID)

	top, bottom = TopBottom(summaryRows(), 10)
	assert.Len(t, top, 4)
	assert.Len(t, bottom, 4)

	top, bottom = TopBottom(nil, 3)
	assert.Nil(t, top)
	assert.Nil(t, bottom)
}

func TestPropertyInsight(t *testing.T) {
	rows := summaryRows()
	assert.Equal(t, InsightRisk, PropertyInsight(rows[0]).Kind)
	assert.Equal(t, InsightNormal, PropertyInsight(rows[1]).Kind)
	assert.Equal(t, InsightLowMargin, PropertyInsight(rows[2]).Kind)
	assert.Equal(t, InsightExcellent, PropertyInsight(rows[3]).Kind)

	lowOcc := core.MonthlySummary{OccupancyRate: 0.1, MarginPercent: f64(50)}
	assert.Equal(t, InsightLowOccupancy, PropertyInsight(lowOcc).Kind)

	noData := core.MonthlySummary{OccupancyRate: 0.5}
	assert.Equal(t, InsightNormal, PropertyInsight(noData).Kind)
}

func TestSummarize(t *testing.T) {
	text := Summarize(summaryRows(), "2025-06")

	assert.Contains(t, text, "RESUMO EXECUTIVO - 2025-06")
	assert.Contains(t, text, "Processamos 4 imóveis")
	assert.Contains(t, text, "Faturamento bruto total: R$ 11.000,00")
	assert.Contains(t, text, "Receita líquida total: R$ 8.050,00")
	assert.Contains(t, text, "Taxa média de ocupação: 60.0%")
	assert.Contains(t, text, "Total de reservas: 10")
	assert.Contains(t, text, "Nota média dos hóspedes: 4.40/5.0")
	assert.Contains(t, text, "Imóveis com nota abaixo de 4.0: 1")
	assert.Contains(t, text, "Top 3 em faturamento: P1, P2, P4")
	assert.Contains(t, text, "Alertas de qualidade: 1 imóveis")
}

func TestSummarize_Empty(t *testing.T) {
	text := Summarize(nil, "2025-06")
	assert.Contains(t, text, "Processamos 0 imóveis")
	assert.Contains(t, text, "sem avaliações")
	assert.Contains(t, text, "Top 3 em faturamento: nenhum")
}
