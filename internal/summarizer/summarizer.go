// Package summarizer turns bulletins into short human-readable summaries via
// Gemini, with a deterministic template fallback and cached results.
package summarizer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jdsantos/quakewatch/internal/monitor"
	"github.com/jdsantos/quakewatch/internal/telemetry"
)

// Generator produces prose for a prompt. The Gemini implementation lives in
// gemini.go; tests substitute fakes.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Service implements monitor.Summarizer. Summaries are cached per bulletin
// so repeated fan-out over many users costs one generation call.
type Service struct {
	gen      Generator
	cache    monitor.Cache
	cacheTTL time.Duration
	logger   *zap.Logger
}

// New builds a Service. A zero cacheTTL defaults to one hour.
func New(gen Generator, cache monitor.Cache, cacheTTL time.Duration, logger *zap.Logger) *Service {
	if cacheTTL == 0 {
		cacheTTL = time.Hour
	}
	return &Service{
		gen:      gen,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// Summarize returns roughly five sentences describing the bulletin. It never
// fails: any generator error degrades to the template fallback.
func (s *Service) Summarize(ctx context.Context, b monitor.Bulletin, includeSafetyTips bool) string {
	key := cacheKeyFor(b)
	if cached, ok := s.cache.Get(ctx, key); ok {
		s.logger.Debug("summary served from cache", zap.String("key", key))
		telemetry.ObserveSummary("cached")
		return cached
	}

	summary, err := s.gen.Generate(ctx, BuildPrompt(b, includeSafetyTips))
	if err != nil {
		s.logger.Error("summary generation failed, using fallback", zap.Error(err))
		telemetry.ObserveSummary("fallback")
		return FallbackSummary(b)
	}

	s.cache.Set(ctx, key, summary, s.cacheTTL)
	telemetry.ObserveSummary("generated")
	return summary
}

// Disabled is the Generator used when no API key is configured. It always
// reports an error, so every summary comes from the template fallback.
type Disabled struct{}

// Generate always fails.
func (Disabled) Generate(context.Context, string) (string, error) {
	return "", errDisabled
}

var errDisabled = fmt.Errorf("summary generation disabled: no API key configured")

// cacheKeyFor keys summaries by bulletin identity: the detail link when
// present, otherwise the datetime text.
func cacheKeyFor(b monitor.Bulletin) string {
	id := b.DetailLink
	if id == "" {
		id = b.DateTime
	}
	return id + "-summary"
}

// BuildPrompt assembles the fixed-structure generation prompt. The safety-tip
// instruction is injected only for magnitude 4.0 and above, and only when the
// recipient asked for tips.
func BuildPrompt(b monitor.Bulletin, includeSafetyTips bool) string {
	safetyClause := ""
	if monitor.ParseMagnitude(b.Magnitude) >= 4.0 && includeSafetyTips {
		safetyClause = "Since the magnitude is 4.0 or higher, " +
			"include 2 short, simple, and relevant safety tips for the affected areas. "
	}

	return "TASK:\n" +
		"Summarize the following earthquake information in exactly 5 sentences. " +
		"Make it easy to understand and reassuring in tone. " +
		safetyClause + "\n\n" +
		"EARTHQUAKE DETAILS:\n" +
		fmt.Sprintf("- Date and Time: %s\n", b.DateTime) +
		fmt.Sprintf("- Latitude: %s\n", b.Latitude) +
		fmt.Sprintf("- Longitude: %s\n", b.Longitude) +
		fmt.Sprintf("- Depth: %s\n", b.Depth) +
		fmt.Sprintf("- Magnitude: %s\n", b.Magnitude) +
		fmt.Sprintf("- Location: %s\n", b.Location)
}

// FallbackSummary is the deterministic template used when generation fails.
func FallbackSummary(b monitor.Bulletin) string {
	return fmt.Sprintf(
		"An earthquake with magnitude %s occurred at %s on %s. "+
			"The depth was %s. Please stay alert and follow safety protocols. "+
			"Monitor official updates for more information.",
		b.Magnitude, b.Location, b.DateTime, b.Depth,
	)
}
