package usecase

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/araddon/dateparse"
	"github.com/rotisserie/eris"

	"OpportunityMonitor/internal/domain"
	"OpportunityMonitor/internal/fingerprint"
	"OpportunityMonitor/internal/ports"
	"OpportunityMonitor/internal/scoring"
)

const (
	untitled       = "(no title)"
	maxSummaryLen  = 500
	publishedShape = "2006-01-02"
	minYear        = 1000
)

// Fallback chains, highest priority first.
var (
	summaryFields = []string{domain.FieldSummary, domain.FieldDescription}
	dateFields    = []string{domain.FieldPublished, domain.FieldUpdated, domain.FieldCreated}
)

var tagExpr = regexp.MustCompile(`<[^<]+?>`)

// PipelineDeps wires the driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source ports.EntrySource
	Ledger ports.SeenLedger
	Logger *slog.Logger
}

// RunRequest is the input of a single pipeline run.
type RunRequest struct {
	Sources  []domain.Source
	Policy   domain.KeywordPolicy
	MaxItems int
}

// Pipeline filters, deduplicates and ranks feed entries.
type Pipeline struct {
	source ports.EntrySource
	ledger ports.SeenLedger
	logger *slog.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{
		source: deps.Source,
		ledger: deps.Ledger,
		logger: logger,
	}
}

// Run executes one pass over all sources and returns the digest items,
// highest score first, capped at req.MaxItems.
//
// Every new relevant entry is marked seen as soon as it is accepted, before
// ranking. Entries cut by the MaxItems cap are therefore never reported later.
func (p *Pipeline) Run(ctx context.Context, req RunRequest) ([]domain.Item, error) {
	if p.source == nil {
		return nil, eris.New("pipeline: entry source is not configured")
	}
	if p.ledger == nil {
		return nil, eris.New("pipeline: seen ledger is not configured")
	}

	scorer := scoring.New(req.Policy)
	batches := p.source.FetchAll(ctx, req.Sources)

	var items []domain.Item
	for _, batch := range batches {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "pipeline: interrupted")
		}
		if batch.Err != nil {
			p.logger.Warn("source failed, continuing without it", "source", batch.Source.Name, "error", batch.Err)
			continue
		}

		accepted, err := p.processSource(ctx, batch, scorer)
		if err != nil {
			return nil, err
		}
		items = append(items, accepted...)
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "pipeline: interrupted")
	}

	ranked := Rank(items, req.MaxItems)
	p.logger.Info("pipeline run complete", "sources", len(batches), "new_items", len(items), "digest_items", len(ranked))
	return ranked, nil
}

func (p *Pipeline) processSource(ctx context.Context, batch domain.SourceBatch, scorer *scoring.Scorer) ([]domain.Item, error) {
	src := batch.Source
	var items []domain.Item
	irrelevant, alreadyNotified := 0, 0

	for _, entry := range batch.Entries {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "pipeline: interrupted")
		}

		title := strings.TrimSpace(entry.Get(domain.FieldTitle))
		link := strings.TrimSpace(entry.Get(domain.FieldLink))
		summary := p.summaryOf(src, entry)
		published := p.publishedOf(src, entry)

		relevant, score := scorer.Score(title + "\n" + summary)
		if !relevant {
			irrelevant++
			continue
		}

		id := fingerprint.Fingerprint(title, link)
		seen, err := p.ledger.Contains(ctx, id)
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: source %s", src.Name)
		}
		if seen {
			alreadyNotified++
			continue
		}

		if title == "" {
			title = untitled
		}
		item := domain.Item{
			ID:        id,
			Source:    src.Name,
			Title:     title,
			Link:      link,
			Published: published,
			Summary:   StripTags(summary, maxSummaryLen),
			Tags:      append([]string(nil), src.Tags...),
			Score:     score,
		}

		if err := p.ledger.MarkSeen(ctx, id); err != nil {
			return nil, eris.Wrapf(err, "pipeline: source %s", src.Name)
		}
		items = append(items, item)
	}

	p.logger.Debug("source processed",
		"source", src.Name,
		"entries", len(batch.Entries),
		"irrelevant", irrelevant,
		"already_seen", alreadyNotified,
		"new", len(items),
	)
	return items, nil
}

func (p *Pipeline) summaryOf(src domain.Source, entry domain.RawEntry) string {
	summary, _, ok := entry.First(summaryFields...)
	if !ok {
		p.logger.Debug("entry has no summary field", "source", src.Name, "tried", summaryFields, "link", entry.Get(domain.FieldLink))
	}
	return strings.TrimSpace(summary)
}

func (p *Pipeline) publishedOf(src domain.Source, entry domain.RawEntry) string {
	published, key, err := ParsePublished(entry)
	if err != nil {
		p.logger.Debug("entry date unparseable", "source", src.Name, "field", key, "error", err)
	}
	if published == "" && key == "" {
		p.logger.Debug("entry has no date field", "source", src.Name, "tried", dateFields, "link", entry.Get(domain.FieldLink))
	}
	return published
}

// ParsePublished tries the date fields in priority order and returns the first
// one that parses to a dated value, as a calendar date. Fragments without a
// full year (before minYear) count as unparseable. On total failure it returns an empty
// date, the last field tried and its parse error.
func ParsePublished(entry domain.RawEntry) (date, field string, err error) {
	for _, key := range dateFields {
		raw := strings.TrimSpace(entry.Get(key))
		if raw == "" {
			continue
		}
		parsed, perr := dateparse.ParseAny(raw)
		if perr == nil && parsed.Year() < minYear {
			perr = eris.Errorf("no plausible year in %q", raw)
		}
		if perr != nil {
			field, err = key, perr
			continue
		}
		return parsed.Format(publishedShape), key, nil
	}
	return "", field, err
}

// StripTags replaces every HTML tag with a space and truncates the result to limit characters.
func StripTags(s string, limit int) string {
	out := tagExpr.ReplaceAllString(s, " ")
	if limit >= 0 {
		if runes := []rune(out); len(runes) > limit {
			out = string(runes[:limit])
		}
	}
	return out
}

// Rank orders items by score, then published date, both descending, and keeps at most limit items.
// Items without a date sort after dated ones with the same score.
func Rank(items []domain.Item, limit int) []domain.Item {
	ranked := append([]domain.Item(nil), items...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Published > ranked[j].Published
	})
	if limit >= 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
