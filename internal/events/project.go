package events

import "time"

// SchemaFetchStart is emitted when a schema refresh begins resolving the
// service schema for a tag.
type SchemaFetchStart struct {
	Tag string
}

// SchemaFetchFinish is emitted when a schema refresh completes, successfully
// or not.
type SchemaFetchFinish struct {
	Tag      string
	Err      error
	Duration time.Duration
}

// SchemaMergeFailed is emitted when merging client extensions into the
// service schema fails and the unmerged schema is substituted.
type SchemaMergeFailed struct {
	Tag string
	Err error
}

// ValidationStart is emitted before a full validation pass over the tracked
// document set.
type ValidationStart struct {
	Files int
}

// ValidationFinish is emitted after a validation pass.
type ValidationFinish struct {
	Files    int
	Issues   int
	Duration time.Duration
}

// AnnotationStart is emitted before a stats annotation pass.
type AnnotationStart struct {
	Files int
}

// AnnotationFinish is emitted after a stats annotation pass.
type AnnotationFinish struct {
	Decorations int
	Duration    time.Duration
}

// StatsLoaded is emitted after schema tags and field stats are fetched from
// the engine.
type StatsLoaded struct {
	ServiceID string
	Tags      []string
}
