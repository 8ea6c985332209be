package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/canvas-comb/app/content"
)

const (
	summaryFallbackLength = 300

	FallbackSentiment = "neutral"
	FallbackTopic     = "General"
)

// Client is the LLM collaborator boundary. The Anthropic implementation
// satisfies it; tests substitute fakes.
type Client interface {
	Summarize(ctx context.Context, text string) (string, error)
	Sentiment(ctx context.Context, text string) (string, error)
	ClassifyTopic(ctx context.Context, text string) (primary string, secondary []string, err error)
}

// Service enriches canonical items with summary, sentiment and topic
// metadata. It degrades deterministically when no client is configured
// or a call fails: truncated text, "neutral", "General". Enrichment is
// therefore never fatal to a run and the pipeline is fully testable
// without a live LLM dependency.
type Service struct {
	client Client
	delay  time.Duration
}

// NewService builds an enrichment service. A nil client puts the
// service in fallback-only mode.
func NewService(client Client, delay time.Duration) *Service {
	return &Service{client: client, delay: delay}
}

// Enrich fills the item's summary, sentiment and topic fields in place.
// The item's content is sanitized and PII-redacted first. Per-field
// failures are logged and fall back; the item always comes back usable.
func (s *Service) Enrich(ctx context.Context, item *content.Item) {
	text := RedactPII(Sanitize(item.Content))
	if text == "" {
		text = RedactPII(item.Title)
	}
	item.Content = text

	item.Summary = s.summarize(ctx, item.SourceID, text)
	item.Sentiment = s.sentiment(ctx, item.SourceID, text)
	item.PrimaryTopic, item.Topics = s.classifyTopic(ctx, item.SourceID, text)
}

func (s *Service) summarize(ctx context.Context, sourceID, text string) string {
	if s.client != nil {
		summary, err := s.client.Summarize(ctx, text)
		s.pause()
		if err == nil && summary != "" {
			return summary
		}
		if err != nil {
			slog.Warn("Summary enrichment failed, using fallback", "source_id", sourceID, "error", err)
		}
	}
	return Truncate(text, summaryFallbackLength)
}

func (s *Service) sentiment(ctx context.Context, sourceID, text string) string {
	if s.client != nil {
		sentiment, err := s.client.Sentiment(ctx, text)
		s.pause()
		if err == nil && sentiment != "" {
			return sentiment
		}
		if err != nil {
			slog.Warn("Sentiment enrichment failed, using fallback", "source_id", sourceID, "error", err)
		}
	}
	return FallbackSentiment
}

func (s *Service) classifyTopic(ctx context.Context, sourceID, text string) (string, []string) {
	if s.client != nil {
		primary, secondary, err := s.client.ClassifyTopic(ctx, text)
		s.pause()
		if err == nil && primary != "" {
			return primary, secondary
		}
		if err != nil {
			slog.Warn("Topic enrichment failed, using fallback", "source_id", sourceID, "error", err)
		}
	}
	return FallbackTopic, nil
}

// DescribeFeature generates a short description for a canonical
// feature area. Unlike item enrichment there is no useful fallback
// text, so a missing client is an error and the caller skips the
// feature instead of storing filler.
func (s *Service) DescribeFeature(ctx context.Context, name string) (string, error) {
	if s.client == nil {
		return "", fmt.Errorf("no enrichment client configured")
	}

	description, err := s.client.Summarize(ctx, "The "+name+" feature area of the Canvas learning management system.")
	s.pause()
	if err != nil {
		return "", err
	}
	if description == "" {
		return "", fmt.Errorf("empty description for feature %s", name)
	}
	return description, nil
}

// pause is the fixed inter-call delay that keeps successive enrichment
// calls under the API rate limit.
func (s *Service) pause() {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
}
