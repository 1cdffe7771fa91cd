package scanner

import (
	"context"

	"github.com/rotisserie/eris"

	"OpportunityMonitor/internal/domain"
)

// ErrUnsupported is returned by Resolve for source types without a strategy.
var ErrUnsupported = eris.New("source type is not supported")

// Request carries all parameters required to scan one source.
type Request struct {
	Source     domain.Source
	MaxEntries int
}

// Scanner captures a single retrieval strategy (RSS/Atom, ...).
type Scanner interface {
	Type() string
	Scan(ctx context.Context, req Request) ([]domain.RawEntry, error)
}

// Registry keeps a mapping from source types to their implementations.
type Registry struct {
	scanners map[string]Scanner
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{scanners: map[string]Scanner{}}
}

// Register adds or replaces a scanner implementation.
func (r *Registry) Register(scanner Scanner) {
	if r.scanners == nil {
		r.scanners = map[string]Scanner{}
	}
	r.scanners[scanner.Type()] = scanner
}

// Resolve returns the scanner for a source type or an error wrapping ErrUnsupported.
func (r *Registry) Resolve(sourceType string) (Scanner, error) {
	if scanner, ok := r.scanners[sourceType]; ok {
		return scanner, nil
	}
	return nil, eris.Wrapf(ErrUnsupported, "type %q", sourceType)
}
