// Package topic implements the topic analysis stage: it turns the caller's
// brief into a topic document with a title, angle, audience, language, and
// keyword list for the script stage.
package topic

import (
	"cmp"
	"context"
	"log/slog"
	"strings"

	"golang.org/x/text/cases"

	"framecast/internal/language"
	"framecast/internal/logging"
	"framecast/internal/services"
	"framecast/internal/stage"
	"framecast/internal/stagedoc"
	"framecast/internal/textutil"
)

const (
	defaultAngle          = "explainer"
	defaultAudience       = "general"
	defaultTargetDuration = 60
	maxKeywords           = 8
)

// Brief is what the caller asked for.
type Brief struct {
	Topic                 string
	Title                 string
	Angle                 string
	Audience              string
	Language              string
	Keywords              []string
	TargetDurationSeconds float64
}

// Analyzer expands a brief into a topic document. A text-model backed
// implementation can replace the local KeywordAnalyzer.
type Analyzer interface {
	Analyze(ctx context.Context, brief Brief) (stagedoc.Topic, error)
}

// KeywordAnalyzer derives a title and keywords from the topic text alone.
type KeywordAnalyzer struct{}

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "how": {}, "why": {}, "what": {},
	"are": {}, "was": {}, "from": {}, "into": {}, "about": {}, "your": {}, "you": {},
	"this": {}, "that": {}, "their": {}, "its": {},
}

// Analyze fills in defaults and extracts keywords when none were supplied.
func (KeywordAnalyzer) Analyze(_ context.Context, brief Brief) (stagedoc.Topic, error) {
	lang := language.Normalize(brief.Language)
	title := strings.TrimSpace(brief.Title)
	if title == "" {
		title = cases.Title(language.Tag(lang)).String(strings.TrimSpace(brief.Topic))
	}
	keywords := normalizeKeywords(brief.Keywords)
	if len(keywords) == 0 {
		keywords = extractKeywords(brief.Topic)
	}
	target := brief.TargetDurationSeconds
	if target <= 0 {
		target = defaultTargetDuration
	}
	return stagedoc.Topic{
		Topic:                 strings.TrimSpace(brief.Topic),
		Title:                 title,
		Angle:                 cmp.Or(strings.TrimSpace(brief.Angle), defaultAngle),
		Audience:              cmp.Or(strings.TrimSpace(brief.Audience), defaultAudience),
		Language:              lang,
		Keywords:              keywords,
		TargetDurationSeconds: target,
	}, nil
}

func normalizeKeywords(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, kw := range raw {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	return out
}

func extractKeywords(topic string) []string {
	tokens := textutil.Tokenize(topic)
	filtered := tokens[:0]
	for _, token := range tokens {
		if _, stop := stopWords[token]; stop {
			continue
		}
		filtered = append(filtered, token)
	}
	keywords := normalizeKeywords(filtered)
	if len(keywords) > maxKeywords {
		keywords = keywords[:maxKeywords]
	}
	return keywords
}

// Adapter is the topic stage.
type Adapter struct {
	analyzer Analyzer
	logger   *slog.Logger
}

// New builds the stage. A nil analyzer uses KeywordAnalyzer.
func New(analyzer Analyzer, logger *slog.Logger) *Adapter {
	if analyzer == nil {
		analyzer = KeywordAnalyzer{}
	}
	return &Adapter{analyzer: analyzer, logger: logging.NewComponentLogger(logger, "topic")}
}

func (a *Adapter) Stage() stagedoc.StageType { return stagedoc.StageTopic }

func (a *Adapter) Requires() []stagedoc.StageType { return nil }

func (a *Adapter) HealthCheck(context.Context) stage.Health {
	return stage.Healthy("topic")
}

// Generate reads the brief from options: topic (required), title, angle,
// audience, language, keywords, targetDurationSeconds.
func (a *Adapter) Generate(ctx context.Context, req stage.Request, _ stage.Upstream) (stagedoc.Payload, error) {
	brief := Brief{
		Topic:                 req.Options.String("topic", ""),
		Title:                 req.Options.String("title", ""),
		Angle:                 req.Options.String("angle", ""),
		Audience:              req.Options.String("audience", ""),
		Language:              req.Options.String("language", ""),
		Keywords:              req.Options.Strings("keywords"),
		TargetDurationSeconds: req.Options.Float("targetDurationSeconds", 0),
	}
	if brief.Topic == "" {
		return nil, services.Wrap(services.ErrValidation, "topic", "generate", "options.topic is required", nil)
	}
	doc, err := a.analyzer.Analyze(ctx, brief)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("topic analyzed",
		logging.String("title", doc.Title),
		logging.Strings("keywords", doc.Keywords),
	)
	return doc, nil
}
