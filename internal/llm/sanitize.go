package llm

import (
	"regexp"
	"strings"

	"github.com/jdkato/prose/v2"
	"go.uber.org/zap"

	"github.com/ecotracker/backend/pkg/logger"
)

// leakPattern matches sentences that echo the internal part of the
// recommendation prompt. Whole words only, so "lightweight" and
// "international" pass.
var leakPattern = regexp.MustCompile(`(?i)\bweights?\b|\blime\b|\binternal (reference|accuracy rules|only)\b|\bdo not show\b|\baccuracy rules\b|\bgood_used_`)

// Sanitize drops sentences that leak internal prompt material. The text is
// returned unchanged when nothing leaks or when every sentence would be
// dropped.
func Sanitize(text string) string {
	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		logger.Warn("Failed to segment recommendation", zap.Error(err))
		return text
	}

	sentences := doc.Sentences()
	kept := make([]string, 0, len(sentences))
	for _, s := range sentences {
		if !leaks(s.Text) {
			kept = append(kept, strings.TrimSpace(s.Text))
		}
	}

	if len(kept) == len(sentences) || len(kept) == 0 {
		return text
	}

	logger.Debug("Dropped leaking sentences", zap.Int("dropped", len(sentences)-len(kept)))

	return strings.Join(kept, " ")
}

func leaks(sentence string) bool {
	return leakPattern.MatchString(sentence)
}
