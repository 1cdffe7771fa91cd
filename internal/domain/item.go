package domain

import "time"

// Raw entry keys understood by the pipeline.
const (
	FieldTitle       = "title"
	FieldLink        = "link"
	FieldSummary     = "summary"
	FieldDescription = "description"
	FieldPublished   = "published"
	FieldUpdated     = "updated"
	FieldCreated     = "created"
)

// Source is a configured feed to poll.
type Source struct {
	Name string
	Type string
	URL  string
	Tags []string
}

// RawEntry is a single feed entry as produced by a scanner, keyed by field name.
type RawEntry map[string]string

// Get returns the value stored under key, or an empty string.
func (e RawEntry) Get(key string) string {
	return e[key]
}

// First walks keys in priority order and returns the first non-empty value
// together with the key it came from. ok is false when none of the keys hold a value.
func (e RawEntry) First(keys ...string) (value, key string, ok bool) {
	for _, k := range keys {
		if v := e[k]; v != "" {
			return v, k, true
		}
	}
	return "", "", false
}

// SourceBatch is the outcome of retrieving one source.
type SourceBatch struct {
	Source  Source
	Entries []RawEntry
	Err     error
}

// KeywordPolicy drives relevance scoring.
type KeywordPolicy struct {
	ExcludeAny    []string
	MustHaveAny   []string
	NiceToHaveAny []string
}

// Item is a new, relevant entry destined for the digest.
type Item struct {
	ID        string
	Source    string
	Title     string
	Link      string
	Published string
	Summary   string
	Tags      []string
	Score     int
}

// SeenRecord is a ledger row.
type SeenRecord struct {
	ID           string
	FirstSeenUTC time.Time
}
