// Package services provides business logic and orchestration services.
//
// This file implements the Strategy Pattern for feedback classification.
// Each capability (keyword matching, LLM enrichment) has its own factory,
// selected at startup from the configuration.

package services

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Gustavofrb/relatorio-mensal/internal/insights"
)

// ClassifierKind names a classification strategy.
type ClassifierKind string

const (
	ClassifierKeyword ClassifierKind = "keyword"
	ClassifierLLM     ClassifierKind = "llm"
)

// ClassifierConfig carries what a factory may need.
type ClassifierConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// ClassifierFactory builds a classifier for a strategy.
type ClassifierFactory func(cfg ClassifierConfig) (insights.Classifier, error)

var (
	classifierMu         sync.RWMutex
	classifierStrategies = map[ClassifierKind]ClassifierFactory{
		ClassifierKeyword: func(ClassifierConfig) (insights.Classifier, error) {
			return insights.NewKeywordClassifier(), nil
		},
		ClassifierLLM: func(cfg ClassifierConfig) (insights.Classifier, error) {
			return insights.NewLLMClassifier(cfg.APIKey,
				insights.WithLLMBaseURL(cfg.BaseURL),
				insights.WithModel(cfg.Model))
		},
	}
)

// GetClassifierFactory returns the factory registered for kind.
func GetClassifierFactory(kind ClassifierKind) (ClassifierFactory, error) {
	classifierMu.RLock()
	defer classifierMu.RUnlock()
	factory, ok := classifierStrategies[kind]
	if !ok {
		return nil, fmt.Errorf("unknown classifier kind: %s", kind)
	}
	return factory, nil
}

// RegisterClassifier adds or replaces the factory for kind.
func RegisterClassifier(kind ClassifierKind, factory ClassifierFactory) {
	classifierMu.Lock()
	defer classifierMu.Unlock()
	classifierStrategies[kind] = factory
}

// ClassifierKinds lists the registered kinds in name order.
func ClassifierKinds() []ClassifierKind {
	classifierMu.RLock()
	defer classifierMu.RUnlock()
	out := make([]ClassifierKind, 0, len(classifierStrategies))
	for k := range classifierStrategies {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// KindFor picks the LLM strategy iff an API key is configured.
func KindFor(cfg ClassifierConfig) ClassifierKind {
	if cfg.APIKey != "" {
		return ClassifierLLM
	}
	return ClassifierKeyword
}

// NewClassifier resolves the strategy for cfg and builds it.
func NewClassifier(cfg ClassifierConfig) (insights.Classifier, ClassifierKind, error) {
	kind := KindFor(cfg)
	factory, err := GetClassifierFactory(kind)
	if err != nil {
		return nil, kind, err
	}
	c, err := factory(cfg)
	if err != nil {
		return nil, kind, fmt.Errorf("build %s classifier: %w", kind, err)
	}
	return c, kind, nil
}
