package feed

import (
	"context"
	"log/slog"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"OpportunityMonitor/internal/domain"
	"OpportunityMonitor/internal/ports"
	"OpportunityMonitor/internal/scanner"
)

// StrategySource implements ports.EntrySource via registered scanner strategies.
type StrategySource struct {
	registry    *scanner.Registry
	maxEntries  int
	concurrency int
	logger      *slog.Logger
}

var _ ports.EntrySource = (*StrategySource)(nil)

// NewStrategySource wires the scanner registry with retrieval limits.
func NewStrategySource(reg *scanner.Registry, maxEntries, concurrency int, log *slog.Logger) *StrategySource {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &StrategySource{
		registry:    reg,
		maxEntries:  maxEntries,
		concurrency: concurrency,
		logger:      log,
	}
}

// FetchAll retrieves every supported source concurrently. Batches come back in
// configuration order; a failing source carries its error in the batch instead
// of aborting the others. Sources of an unknown type are skipped.
func (s *StrategySource) FetchAll(ctx context.Context, sources []domain.Source) []domain.SourceBatch {
	if s.registry == nil {
		return nil
	}

	type job struct {
		source  domain.Source
		scanner scanner.Scanner
	}

	jobs := make([]job, 0, len(sources))
	for _, src := range sources {
		sc, err := s.registry.Resolve(src.Type)
		if err != nil {
			s.debug("skip unsupported source", "source", src.Name, "type", src.Type, "reason", err)
			continue
		}
		jobs = append(jobs, job{source: src, scanner: sc})
	}

	batches := make([]domain.SourceBatch, len(jobs))
	var g errgroup.Group
	g.SetLimit(s.concurrency)

	for i, j := range jobs {
		batches[i].Source = j.source
		g.Go(func() error {
			s.debug("scan source", "source", j.source.Name, "type", j.source.Type)
			entries, err := j.scanner.Scan(ctx, scanner.Request{
				Source:     j.source,
				MaxEntries: s.maxEntries,
			})
			if err != nil {
				batches[i].Err = eris.Wrapf(err, "scan source %s", j.source.Name)
				return nil
			}
			batches[i].Entries = entries
			s.debug("source produced entries", "source", j.source.Name, "count", len(entries))
			return nil
		})
	}

	_ = g.Wait()
	return batches
}

func (s *StrategySource) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
