// Package project orchestrates the client project pipeline: schema refresh,
// document validation and stats annotation over the tracked file set.
package project

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	annotate "github.com/hanpama/gqlproject/internal/annotate"
	docset "github.com/hanpama/gqlproject/internal/docset"
	engine "github.com/hanpama/gqlproject/internal/engine"
	eventbus "github.com/hanpama/gqlproject/internal/eventbus"
	events "github.com/hanpama/gqlproject/internal/events"
	fragments "github.com/hanpama/gqlproject/internal/fragments"
	language "github.com/hanpama/gqlproject/internal/language"
	opid "github.com/hanpama/gqlproject/internal/opid"
	refresh "github.com/hanpama/gqlproject/internal/refresh"
	validate "github.com/hanpama/gqlproject/internal/validate"
)

// DiagnosticsFunc receives one batch per file per validation pass.
type DiagnosticsFunc func(validate.Batch)

// DecorationsFunc receives the full replacement decoration list per
// annotation pass.
type DecorationsFunc func([]annotate.Decoration)

// SchemaTagsFunc receives the named schema variants after each successful
// stats load.
type SchemaTagsFunc func(serviceID string, tags []string)

// Option configures a Project.
type Option func(*Project)

func WithDiagnosticsSink(fn DiagnosticsFunc) Option {
	return func(p *Project) { p.diagnostics = fn }
}

func WithDecorationsSink(fn DecorationsFunc) Option {
	return func(p *Project) { p.decorations = fn }
}

func WithSchemaTagsSink(fn SchemaTagsFunc) Option {
	return func(p *Project) { p.schemaTags = fn }
}

// Project ties a tracked document set to a schema refresh controller and
// runs the validation and annotation passes. Both passes are pure functions
// of (schema, documents, fragments, stats) and re-run in full on every
// trigger; their outputs always fully replace the previous batch.
type Project struct {
	set  *docset.Set
	ctrl *refresh.Controller

	diagnostics DiagnosticsFunc
	decorations DecorationsFunc
	schemaTags  SchemaTagsFunc

	mu    sync.Mutex
	stats annotate.FieldStats
}

// New wires a project over the document set and schema provider. The
// controller pulls client extension sources from the set at merge time and
// schedules a validation pass after every publish.
func New(set *docset.Set, provider refresh.Provider, opts ...Option) *Project {
	p := &Project{set: set}
	p.ctrl = refresh.NewController(provider, set.ExtensionSources)
	p.ctrl.OnPublish(func(ctx context.Context) { p.Revalidate(ctx) })
	for _, o := range opts {
		o(p)
	}
	return p
}

// Controller exposes the schema refresh controller.
func (p *Project) Controller() *refresh.Controller { return p.ctrl }

// Documents exposes the tracked document set.
func (p *Project) Documents() *docset.Set { return p.set }

// HasSchema reports whether a schema has been published.
func (p *Project) HasSchema() bool {
	snap := p.ctrl.Current()
	return snap != nil && snap.Schema != nil
}

// HasDocuments reports whether any files are tracked.
func (p *Project) HasDocuments() bool { return p.set.Len() > 0 }

// HasFragments reports whether any fragments are defined in the project.
func (p *Project) HasFragments() bool {
	return len(fragments.Index(p.set.Snapshot())) > 0
}

// Schema returns the currently published schema, nil before the first
// successful refresh.
func (p *Project) Schema() *language.Schema {
	snap := p.ctrl.Current()
	if snap == nil {
		return nil
	}
	return snap.Schema
}

// Refresh re-runs the fetch→merge→publish pipeline for tag. An empty tag
// selects the current production schema. Validation is scheduled by the
// controller's publish hook.
func (p *Project) Refresh(ctx context.Context, tag string) error {
	if tag == "" {
		tag = refresh.DefaultTag
	}
	_, err := p.ctrl.Refresh(ctx, tag)
	return err
}

// Revalidate runs a full validation pass: one diagnostics batch per tracked
// file, empty batches included so stale diagnostics clear. It runs whenever
// both a schema and a diagnostics sink are registered, and finishes by
// re-running the annotation pass so overlays stay consistent.
func (p *Project) Revalidate(ctx context.Context) []validate.Batch {
	schema := p.Schema()
	if schema == nil || p.diagnostics == nil {
		return nil
	}
	if _, ok := opid.FromContext(ctx); !ok {
		ctx, _ = opid.NewContext(ctx)
	}
	docs := p.set.Snapshot()
	idx := fragments.Index(docs)

	start := time.Now()
	eventbus.Publish(ctx, events.ValidationStart{Files: len(docs)})
	batches := validate.Run(schema, docs, idx)
	issues := 0
	for _, b := range batches {
		p.diagnostics(b)
		issues += len(b.Issues)
	}
	eventbus.Publish(ctx, events.ValidationFinish{
		Files:    len(batches),
		Issues:   issues,
		Duration: time.Since(start),
	})

	p.Annotate(ctx)
	return batches
}

// Annotate runs a full annotation pass and publishes the replacement
// decoration list. With no schema or no stats table it is a no-op so a
// stale-but-valid overlay is never force-cleared.
func (p *Project) Annotate(ctx context.Context) []annotate.Decoration {
	if p.decorations == nil {
		return nil
	}
	schema := p.Schema()
	p.mu.Lock()
	stats := p.stats
	p.mu.Unlock()
	if schema == nil || stats == nil {
		return nil
	}
	if _, ok := opid.FromContext(ctx); !ok {
		ctx, _ = opid.NewContext(ctx)
	}
	docs := p.set.Snapshot()
	frags := fragments.List(fragments.Index(docs))

	start := time.Now()
	eventbus.Publish(ctx, events.AnnotationStart{Files: len(docs)})
	decs := annotate.Run(schema, docs, frags, stats)
	p.decorations(decs)
	eventbus.Publish(ctx, events.AnnotationFinish{
		Decorations: len(decs),
		Duration:    time.Since(start),
	})
	return decs
}

// UpdateStats replaces the stats table wholesale and re-runs annotation.
func (p *Project) UpdateStats(ctx context.Context, stats annotate.FieldStats) {
	p.mu.Lock()
	p.stats = stats
	p.mu.Unlock()
	p.Annotate(ctx)
}

// LoadStats fetches schema tags and field stats through the engine client,
// reports the tags and applies the stats.
func (p *Project) LoadStats(ctx context.Context, client *engine.Client, serviceID string) error {
	tags, stats, err := client.LoadTagsAndStats(ctx, serviceID)
	if err != nil {
		return err
	}
	eventbus.Publish(ctx, events.StatsLoaded{ServiceID: serviceID, Tags: tags})
	if p.schemaTags != nil {
		p.schemaTags(serviceID, tags)
	}
	p.UpdateStats(ctx, stats)
	return nil
}

// ApplyChange folds one file set notification into the tracked set and
// re-runs the pipeline. Changes touching client type-system definitions
// re-merge the published schema first.
func (p *Project) ApplyChange(ctx context.Context, root string, op docset.Op, rel string) {
	hadTypeDefs := false
	if old, ok := p.set.Get(rel); ok {
		hadTypeDefs = old.HasTypeDefs()
	}
	switch op {
	case docset.OpRemove:
		p.set.Remove(rel)
	case docset.OpUpsert:
		content, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			p.set.Remove(rel)
		} else {
			doc := docset.Parse(rel, string(content))
			p.set.Upsert(doc)
			hadTypeDefs = hadTypeDefs || doc.HasTypeDefs()
		}
	}
	if hadTypeDefs {
		// Remerge publishes and the publish hook revalidates.
		if p.ctrl.Remerge(ctx) != nil {
			return
		}
	}
	p.Revalidate(ctx)
}
