// Package refresh owns the merged schema lifecycle: fetching the service
// schema for the active tag, merging it with the client extension document,
// and publishing the result as an immutable versioned snapshot.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	eventbus "github.com/hanpama/gqlproject/internal/eventbus"
	events "github.com/hanpama/gqlproject/internal/events"
	language "github.com/hanpama/gqlproject/internal/language"
	merge "github.com/hanpama/gqlproject/internal/merge"
	opid "github.com/hanpama/gqlproject/internal/opid"
)

// DefaultTag names the current production schema variant.
const DefaultTag = "current"

// FetchError reports a transport or parse failure while resolving the
// service schema. The previously published snapshot is retained.
type FetchError struct {
	Tag string
	Err error
}

func (e *FetchError) Error() string { return fmt.Sprintf("fetch schema tag %q: %v", e.Tag, e.Err) }

func (e *FetchError) Unwrap() error { return e.Err }

// Provider resolves the service schema for a tag.
type Provider interface {
	ResolveSchema(ctx context.Context, tag string) (merge.ServiceSchema, error)
}

// Snapshot is one published schema state. Snapshots are immutable; readers
// hold them without locking.
type Snapshot struct {
	// Schema is the schema used for validation: the merged schema, or the
	// unmerged service schema when the last merge failed.
	Schema  *language.Schema
	Service merge.ServiceSchema
	Tag     string
	Version uint64
	// MergeErr records the last merge failure, nil when merged cleanly.
	MergeErr error
}

// Controller runs the fetch→merge→publish pipeline. It is the single writer
// of the published snapshot cell; overlapping refreshes are permitted and
// the last one to publish wins.
type Controller struct {
	provider Provider
	ext      func() []*language.Source

	cell    atomic.Pointer[Snapshot]
	version atomic.Uint64
	group   singleflight.Group

	afterPublish func(context.Context)
}

// NewController creates a controller. ext supplies the current client
// extension sources at merge time.
func NewController(p Provider, ext func() []*language.Source) *Controller {
	return &Controller{provider: p, ext: ext}
}

// OnPublish registers fn to run after every successful publish, including
// publishes whose schema is unchanged.
func (c *Controller) OnPublish(fn func(context.Context)) { c.afterPublish = fn }

// Current returns the last published snapshot, or nil before the first
// successful refresh.
func (c *Controller) Current() *Snapshot { return c.cell.Load() }

// Refresh resolves the service schema for tag, merges it with the current
// client extensions and publishes the result. The operation is surfaced as a
// cancellable fetch envelope on the event bus. Concurrent refreshes of the
// same tag are coalesced; refreshes of different tags race and the last
// publish wins.
func (c *Controller) Refresh(ctx context.Context, tag string) (*Snapshot, error) {
	ctx, _ = opid.NewContext(ctx)
	start := time.Now()
	eventbus.Publish(ctx, events.SchemaFetchStart{Tag: tag})

	v, err, _ := c.group.Do(tag, func() (any, error) {
		return c.fetchAndMerge(ctx, tag)
	})
	if err != nil {
		eventbus.Publish(ctx, events.SchemaFetchFinish{Tag: tag, Err: err, Duration: time.Since(start)})
		return nil, err
	}
	snap := c.publish(v.(*Snapshot))
	eventbus.Publish(ctx, events.SchemaFetchFinish{Tag: tag, Duration: time.Since(start)})
	if c.afterPublish != nil {
		c.afterPublish(ctx)
	}
	return snap, nil
}

// Remerge re-runs the merge step against the already-fetched service schema,
// for when the client extension document changed without a tag change.
// It is a no-op before the first successful refresh.
func (c *Controller) Remerge(ctx context.Context) *Snapshot {
	cur := c.Current()
	if cur == nil {
		return nil
	}
	snap := c.publish(c.mergeSnapshot(ctx, cur.Service, cur.Tag))
	if c.afterPublish != nil {
		c.afterPublish(ctx)
	}
	return snap
}

func (c *Controller) fetchAndMerge(ctx context.Context, tag string) (*Snapshot, error) {
	svc, err := c.provider.ResolveSchema(ctx, tag)
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			return nil, err
		}
		return nil, &FetchError{Tag: tag, Err: err}
	}
	if merge.NeedsReconstitution(svc) {
		if re, rerr := merge.Reconstitute(svc); rerr == nil {
			svc = re
		}
	}
	return c.mergeSnapshot(ctx, svc, tag), nil
}

func (c *Controller) mergeSnapshot(ctx context.Context, svc merge.ServiceSchema, tag string) *Snapshot {
	snap := &Snapshot{Service: svc, Tag: tag}
	merged, err := merge.Merge(svc, c.ext())
	if err != nil {
		// Never crash, always have some schema: substitute the unmerged
		// service schema and keep going.
		log.Printf("schema merge failed, using unmerged service schema: %v", err)
		eventbus.Publish(ctx, events.SchemaMergeFailed{Tag: tag, Err: err})
		snap.Schema = svc.Schema
		snap.MergeErr = err
		return snap
	}
	snap.Schema = merged
	return snap
}

func (c *Controller) publish(s *Snapshot) *Snapshot {
	out := *s
	out.Version = c.version.Add(1)
	c.cell.Store(&out)
	return &out
}
