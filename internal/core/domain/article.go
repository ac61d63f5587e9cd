package domain

import "time"

// PartitionKeyLayout is the time layout for partition keys: one UTC
// date bucket per day, matching the object storage key layout.
const PartitionKeyLayout = "2006-01-02"

// Article is a single immutable news record. Articles are unique by ID
// within a partition; global uniqueness is enforced when partitions are
// merged into the replica.
type Article struct {
	// ID uniquely identifies the article.
	ID string `json:"id"`

	// Title is the cleaned article headline.
	Title string `json:"title"`

	// Body is the article text.
	Body string `json:"body"`

	// Company is the company the article is about.
	Company string `json:"company"`

	// Category is the editorial category.
	Category string `json:"category"`

	// Source names the upstream feed the article came from.
	Source string `json:"source"`

	// URL is the canonical article link.
	URL string `json:"url"`

	// Sentiment is the sentiment score in [-1, 1].
	Sentiment float64 `json:"sentiment"`

	// PublishedAt is the publication time in UTC. It determines the
	// article's partition.
	PublishedAt time.Time `json:"published_at"`
}

// PartitionKey returns the date bucket the article belongs to.
func (a Article) PartitionKey() string {
	return PartitionKeyFor(a.PublishedAt)
}

// PartitionKeyFor derives the partition key for a timestamp.
func PartitionKeyFor(t time.Time) string {
	return t.UTC().Format(PartitionKeyLayout)
}

// ValidPartitionKey reports whether key parses as a date bucket.
func ValidPartitionKey(key string) bool {
	_, err := time.Parse(PartitionKeyLayout, key)
	return err == nil
}

// Partition is a named group of articles pulled from object storage.
// Partitions are the unit of export, listing and retrieval; they are
// never split or merged across key boundaries.
type Partition struct {
	Key      string
	Articles []Article
}

// ScanFilter narrows a replica scan. Zero values mean "no filter".
type ScanFilter struct {
	// Company matches articles whose company contains this substring
	// (case-insensitive).
	Company string

	// Category matches articles whose category contains this substring
	// (case-insensitive).
	Category string

	// Since keeps only articles published at or after this time.
	Since time.Time

	// Limit caps the number of returned articles. Zero means the
	// default limit decided by the store.
	Limit int
}

// StoreStats describes the currently served replica. Callers use
// LastRefreshAt for staleness decisions; it always reflects the last
// successful refresh, regardless of failed cycles since.
type StoreStats struct {
	RowCount       int64     `json:"row_count"`
	PartitionCount int64     `json:"partition_count"`
	LastRefreshAt  time.Time `json:"last_refresh_at"`
}
