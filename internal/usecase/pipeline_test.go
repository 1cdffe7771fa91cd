package usecase

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"OpportunityMonitor/internal/domain"
	"OpportunityMonitor/internal/fingerprint"
	"OpportunityMonitor/internal/infrastructure/storage"
)

type staticSource struct {
	batches []domain.SourceBatch
}

func (s staticSource) FetchAll(context.Context, []domain.Source) []domain.SourceBatch {
	return s.batches
}

type memLedger struct {
	seen    map[string]int
	failOn  string
	lookups int
}

func newMemLedger() *memLedger {
	return &memLedger{seen: map[string]int{}}
}

func (m *memLedger) Contains(_ context.Context, id string) (bool, error) {
	m.lookups++
	if m.failOn != "" && id == m.failOn {
		return false, errors.New("storage unavailable")
	}
	_, ok := m.seen[id]
	return ok, nil
}

func (m *memLedger) MarkSeen(_ context.Context, id string) error {
	m.seen[id]++
	return nil
}

func entry(title, link, summary, published string) domain.RawEntry {
	return domain.RawEntry{
		domain.FieldTitle:     title,
		domain.FieldLink:      link,
		domain.FieldSummary:   summary,
		domain.FieldPublished: published,
	}
}

var tendersSource = domain.Source{Name: "tenders", Type: "rss", URL: "https://example.org/feed", Tags: []string{"gov", "apac"}}

func TestPipelineRunFiltersAndBuildsItems(t *testing.T) {
	t.Parallel()

	ledger := newMemLedger()
	p := NewPipeline(PipelineDeps{
		Source: staticSource{batches: []domain.SourceBatch{{
			Source: tendersSource,
			Entries: []domain.RawEntry{
				entry("Cloud RFP", "https://example.org/1", "<p>Managed <b>cloud</b> services</p>", "Mon, 05 Feb 2024 10:00:00 +0000"),
				entry("Award cancelled", "https://example.org/2", "tender cancelled", "2024-02-01"),
				entry("Weather", "https://example.org/3", "sunny", "2024-02-01"),
			},
		}}},
		Ledger: ledger,
	})

	items, err := p.Run(context.Background(), RunRequest{
		Policy: domain.KeywordPolicy{
			ExcludeAny:    []string{"cancelled"},
			MustHaveAny:   []string{"rfp", "tender"},
			NiceToHaveAny: []string{"cloud"},
		},
		MaxItems: 10,
	})
	require.NoError(t, err)
	require.Len(t, items, 1)

	got := items[0]
	assert.Equal(t, fingerprint.Fingerprint("Cloud RFP", "https://example.org/1"), got.ID)
	assert.Equal(t, "tenders", got.Source)
	assert.Equal(t, "Cloud RFP", got.Title)
	assert.Equal(t, "2024-02-05", got.Published)
	assert.Equal(t, " Managed  cloud  services ", got.Summary)
	assert.Equal(t, []string{"gov", "apac"}, got.Tags)
	assert.Equal(t, 70, got.Score)

	assert.Len(t, ledger.seen, 1, "irrelevant entries must not touch the ledger")
	assert.Equal(t, 1, ledger.lookups)
}

func TestPipelineRunDefaultsAndFallbacks(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 600)
	p := NewPipeline(PipelineDeps{
		Source: staticSource{batches: []domain.SourceBatch{{
			Source: tendersSource,
			Entries: []domain.RawEntry{
				{
					domain.FieldLink:        "https://example.org/untitled",
					domain.FieldDescription: "procurement " + long,
					domain.FieldPublished:   "not a date",
					domain.FieldUpdated:     "2024-03-04T05:06:07Z",
				},
			},
		}}},
		Ledger: newMemLedger(),
	})

	items, err := p.Run(context.Background(), RunRequest{MaxItems: 5})
	require.NoError(t, err)
	require.Len(t, items, 1)

	assert.Equal(t, "(no title)", items[0].Title)
	assert.Equal(t, "2024-03-04", items[0].Published, "falls back to updated when published is unparseable")
	assert.Len(t, []rune(items[0].Summary), 500)
	assert.True(t, strings.HasPrefix(items[0].Summary, "procurement "))
	assert.Equal(t, fingerprint.Fingerprint("", "https://example.org/untitled"), items[0].ID)
}

func TestPipelineRankingAndTruncationMarksSeen(t *testing.T) {
	t.Parallel()

	ledger := newMemLedger()
	p := NewPipeline(PipelineDeps{
		Source: staticSource{batches: []domain.SourceBatch{{
			Source: tendersSource,
			Entries: []domain.RawEntry{
				entry("First tender", "https://example.org/a", "", "2024-01-01"),
				entry("Second tender", "https://example.org/b", "", "2024-02-01"),
			},
		}}},
		Ledger: ledger,
	})

	items, err := p.Run(context.Background(), RunRequest{MaxItems: 1})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Second tender", items[0].Title)

	assert.Contains(t, ledger.seen, fingerprint.Fingerprint("First tender", "https://example.org/a"))
	assert.Contains(t, ledger.seen, fingerprint.Fingerprint("Second tender", "https://example.org/b"))
}

func TestPipelineDuplicateWithinRunIsReportedOnce(t *testing.T) {
	t.Parallel()

	ledger := newMemLedger()
	p := NewPipeline(PipelineDeps{
		Source: staticSource{batches: []domain.SourceBatch{
			{Source: tendersSource, Entries: []domain.RawEntry{entry("Bid notice", "https://example.org/x", "", "")}},
			{Source: domain.Source{Name: "mirror"}, Entries: []domain.RawEntry{entry("  BID   notice ", "https://EXAMPLE.org/x", "", "")}},
		}},
		Ledger: ledger,
	})

	items, err := p.Run(context.Background(), RunRequest{MaxItems: 10})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "tenders", items[0].Source)
	for _, n := range ledger.seen {
		assert.Equal(t, 1, n, "a fingerprint must never be marked twice")
	}
}

func TestPipelineSourceFailureContributesNothing(t *testing.T) {
	t.Parallel()

	p := NewPipeline(PipelineDeps{
		Source: staticSource{batches: []domain.SourceBatch{
			{Source: domain.Source{Name: "down"}, Err: errors.New("connection refused")},
			{Source: tendersSource, Entries: []domain.RawEntry{entry("Tender", "https://example.org/t", "", "")}},
		}},
		Ledger: newMemLedger(),
	})

	items, err := p.Run(context.Background(), RunRequest{MaxItems: 10})
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

type sourceFunc func(ctx context.Context, sources []domain.Source) []domain.SourceBatch

func (f sourceFunc) FetchAll(ctx context.Context, sources []domain.Source) []domain.SourceBatch {
	return f(ctx, sources)
}

func TestPipelineInterruptedRunFails(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	ledger := newMemLedger()
	p := NewPipeline(PipelineDeps{
		Source: sourceFunc(func(ctx context.Context, _ []domain.Source) []domain.SourceBatch {
			cancel()
			return []domain.SourceBatch{
				{Source: tendersSource, Err: ctx.Err()},
				{Source: domain.Source{Name: "notices"}, Err: ctx.Err()},
			}
		}),
		Ledger: ledger,
	})

	items, err := p.Run(ctx, RunRequest{MaxItems: 10})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "pipeline: interrupted")
	assert.Nil(t, items)
	assert.Empty(t, ledger.seen)
}

func TestPipelineLedgerFailureIsFatal(t *testing.T) {
	t.Parallel()

	ledger := newMemLedger()
	ledger.failOn = fingerprint.Fingerprint("Tender", "https://example.org/t")
	p := NewPipeline(PipelineDeps{
		Source: staticSource{batches: []domain.SourceBatch{
			{Source: tendersSource, Entries: []domain.RawEntry{entry("Tender", "https://example.org/t", "", "")}},
		}},
		Ledger: ledger,
	})

	items, err := p.Run(context.Background(), RunRequest{MaxItems: 10})
	require.Error(t, err)
	assert.Nil(t, items)
	assert.Contains(t, err.Error(), "storage unavailable")
}

func TestPipelineRequiresCollaborators(t *testing.T) {
	t.Parallel()

	_, err := NewPipeline(PipelineDeps{Ledger: newMemLedger()}).Run(context.Background(), RunRequest{})
	assert.Error(t, err)

	_, err = NewPipeline(PipelineDeps{Source: staticSource{}}).Run(context.Background(), RunRequest{})
	assert.Error(t, err)
}

func TestPipelineSecondRunYieldsNothing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "seen.sqlite3")
	source := staticSource{batches: []domain.SourceBatch{{
		Source: tendersSource,
		Entries: []domain.RawEntry{
			entry("EOI: data platform", "https://example.org/1", "", "2024-01-02"),
			entry("Procurement plan", "https://example.org/2", "", "2024-01-03"),
		},
	}}}

	run := func() []domain.Item {
		ledger, err := storage.OpenLedger(ctx, storage.DriverSQLite, dbPath)
		require.NoError(t, err)
		defer ledger.Close() //nolint:errcheck

		items, err := NewPipeline(PipelineDeps{Source: source, Ledger: ledger}).Run(ctx, RunRequest{MaxItems: 10})
		require.NoError(t, err)
		return items
	}

	assert.Len(t, run(), 2)
	assert.Empty(t, run())
}

func TestRank(t *testing.T) {
	t.Parallel()

	items := []domain.Item{
		{Title: "a", Score: 80, Published: "2024-01-01"},
		{Title: "b", Score: 95, Published: "2024-01-01"},
		{Title: "c", Score: 80, Published: "2024-02-01"},
		{Title: "d", Score: 80, Published: ""},
	}

	ranked := Rank(items, 10)
	titles := make([]string, 0, len(ranked))
	for _, it := range ranked {
		titles = append(titles, it.Title)
	}
	assert.Equal(t, []string{"b", "c", "a", "d"}, titles)
	assert.Equal(t, "a", items[0].Title, "input slice must not be reordered")

	assert.Len(t, Rank(items, 2), 2)
	assert.Empty(t, Rank(items, 0))
}

func TestParsePublished(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		entry domain.RawEntry
		want  string
		field string
		err   bool
	}{
		{"rfc1123", domain.RawEntry{domain.FieldPublished: "Tue, 10 Sep 2024 08:00:00 GMT"}, "2024-09-10", domain.FieldPublished, false},
		{"iso", domain.RawEntry{domain.FieldPublished: "2024-09-10T23:30:00+08:00"}, "2024-09-10", domain.FieldPublished, false},
		{"created only", domain.RawEntry{domain.FieldCreated: "2023-12-31"}, "2023-12-31", domain.FieldCreated, false},
		{"published wins", domain.RawEntry{domain.FieldPublished: "2024-01-01", domain.FieldUpdated: "2024-05-05"}, "2024-01-01", domain.FieldPublished, false},
		{"garbage", domain.RawEntry{domain.FieldUpdated: "soon"}, "", domain.FieldUpdated, true},
		{"absent", domain.RawEntry{}, "", "", false},
		{"weekday fragment", domain.RawEntry{domain.FieldPublished: "Mon,"}, "", domain.FieldPublished, true},
		{"time fragment", domain.RawEntry{domain.FieldPublished: "1:"}, "", domain.FieldPublished, true},
		{"short numeric", domain.RawEntry{domain.FieldPublished: "4/5/2"}, "", domain.FieldPublished, true},
		{"fragment falls back", domain.RawEntry{domain.FieldPublished: "Mon,", domain.FieldUpdated: "2024-05-05"}, "2024-05-05", domain.FieldUpdated, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, field, err := ParsePublished(tt.entry)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.field, field)
			if tt.err {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStripTags(t *testing.T) {
	t.Parallel()

	assert.Equal(t, " a  b ", StripTags("<p>a<br/>b</p>", 500))
	assert.Equal(t, "plain", StripTags("plain", 500))
	assert.Equal(t, "héll", StripTags("héllo", 4))
	assert.Equal(t, "1 < 2", StripTags("1 < 2", 500))
}
