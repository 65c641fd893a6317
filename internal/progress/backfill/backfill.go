// Package backfill rebuilds a progress aggregate from the per-event history
// and reconciles it against what the aggregate and its mirror already hold.
// It runs rarely (session bootstrap, explicit recovery) and favours reading
// everything over speed.
package backfill

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/progressfacts/internal/data/docstore"
	"github.com/yungbote/progressfacts/internal/data/mirror"
	historyrepo "github.com/yungbote/progressfacts/internal/data/repos/history"
	"github.com/yungbote/progressfacts/internal/domain/progress"
	"github.com/yungbote/progressfacts/internal/platform/ctxutil"
	"github.com/yungbote/progressfacts/internal/platform/dbctx"
	"github.com/yungbote/progressfacts/internal/platform/logger"
)

// Run statuses.
const (
	StatusComplete    = "complete"
	StatusNoHistory   = "no_history"
	StatusReconciled  = "reconciled"
	StatusOverwritten = "overwritten"
	StatusFailed      = "failed"
)

const keepPracticeSessions = 500

// reconciledBlocks are compared newest-wins by their updatedAt.
var reconciledBlocks = []string{
	progress.BlockIntent,
	progress.BlockMotivation,
	progress.BlockEvaluation,
	progress.BlockRecommendation,
	progress.BlockQuickAssessment,
}

var tracer = otel.Tracer("progressfacts/backfill")

// Hooks receives one IncRun per finished run and an IncSkipped for history
// inputs that could not be used.
type Hooks interface {
	IncRun(status string)
	IncSkipped(source string, n int)
}

type noopHooks struct{}

func (noopHooks) IncRun(string)          {}
func (noopHooks) IncSkipped(string, int) {}

func NoopHooks() Hooks { return noopHooks{} }

// Report describes one reconciliation.
type Report struct {
	OwnerID string `json:"ownerId"`
	Status  string `json:"status"`
	// Rebuilt lists blocks taken from history; Kept lists blocks whose
	// stored copy was newer.
	Rebuilt []string               `json:"rebuilt,omitempty"`
	Kept    []string               `json:"kept,omitempty"`
	Fact    *progress.ProgressFact `json:"fact,omitempty"`
	DryRun  bool                   `json:"dryRun,omitempty"`
}

type Reconciler struct {
	store   docstore.Store
	mirror  mirror.Mirror
	history historyrepo.Reader
	log     *logger.Logger
	hooks   Hooks
	now     func() time.Time
	dryRun  bool
}

type Option func(*Reconciler)

func WithHooks(h Hooks) Option {
	return func(r *Reconciler) {
		if h != nil {
			r.hooks = h
		}
	}
}

func WithNow(now func() time.Time) Option {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

// WithDryRun computes the reconciled aggregate without writing it.
func WithDryRun(on bool) Option {
	return func(r *Reconciler) { r.dryRun = on }
}

func New(store docstore.Store, m mirror.Mirror, history historyrepo.Reader, baseLog *logger.Logger, opts ...Option) *Reconciler {
	if m == nil {
		m = mirror.Noop{}
	}
	r := &Reconciler{
		store:   store,
		mirror:  m,
		history: history,
		log:     baseLog.With("service", "BackfillReconciler"),
		hooks:   NoopHooks(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile makes the owner's aggregate as complete as history allows. An
// aggregate that already has intent, motivation and evaluation is returned
// as is.
func (r *Reconciler) Reconcile(ctx context.Context, ownerID string) (rep Report, err error) {
	ctx = ctxutil.Default(ctx)
	owner := ctxutil.ResolveOwner(ctx, ownerID)
	if owner == "" {
		return Report{Status: StatusFailed}, progress.Validation("backfill.reconcile", "owner id required")
	}
	ctx, span := tracer.Start(ctx, "backfill.reconcile")
	rep = Report{OwnerID: owner, DryRun: r.dryRun}
	defer func() {
		span.SetAttributes(attribute.String("status", rep.Status))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		r.hooks.IncRun(rep.Status)
	}()

	current, readErr := r.store.Get(ctx, progress.CollectionFacts, owner)
	switch {
	case readErr == nil:
		var f progress.ProgressFact
		if decErr := docstore.Decode(current, &f); decErr != nil {
			r.log.Warn("backfill aggregate decode failed", "owner", owner, "error", decErr)
			readErr = decErr
		} else if f.Complete() {
			rep.Status = StatusComplete
			rep.Fact = &f
			return rep, nil
		}
	case errors.Is(readErr, docstore.ErrNotFound):
		current, readErr = nil, nil
	default:
		r.log.Warn("backfill aggregate read failed", "owner", owner, "error", readErr)
	}

	dbc := dbctx.Context{Ctx: ctx}
	snap, err := r.history.LatestIntentSnapshot(dbc, owner)
	if err != nil {
		rep.Status = StatusFailed
		return rep, err
	}
	if snap == nil {
		rep.Status = StatusNoHistory
		if readErr == nil && current != nil {
			var f progress.ProgressFact
			if docstore.Decode(current, &f) == nil {
				rep.Fact = &f
			}
		}
		return rep, nil
	}

	journey, jerr := r.history.LatestJourney(dbc, owner)
	if jerr != nil {
		r.log.Warn("backfill journey read failed", "owner", owner, "error", jerr)
		r.hooks.IncSkipped("journey", 1)
		journey = nil
	}
	rebuilt := rebuildFact(snap, journey)

	knowledgeRows, kerr := r.history.KnowledgeAssessments(dbc, owner, historyrepo.DefaultLimit)
	if kerr != nil {
		r.log.Warn("backfill knowledge history read failed", "owner", owner, "error", kerr)
		r.hooks.IncSkipped("knowledge", 1)
	}
	abilityRows, aerr := r.history.AbilityAssessments(dbc, owner, historyrepo.DefaultLimit)
	if aerr != nil {
		r.log.Warn("backfill ability history read failed", "owner", owner, "error", aerr)
		r.hooks.IncSkipped("ability", 1)
	}
	in := inputs{
		percs:  knowledgePercents(knowledgeRows),
		assess: abilityAssessments(abilityRows),
	}
	if n := len(knowledgeRows) - len(in.percs); n > 0 {
		r.log.Debug("backfill skipped malformed knowledge rows", "owner", owner, "count", n)
		r.hooks.IncSkipped("knowledge", n)
	}

	mirrored, mirrorErr := r.mirror.Load(ctx, owner)
	if errors.Is(mirrorErr, docstore.ErrNotFound) {
		mirrored, mirrorErr = nil, nil
	} else if mirrorErr != nil {
		r.log.Warn("backfill mirror read failed", "owner", owner, "error", mirrorErr)
	}

	now := r.now()
	var next docstore.Document
	if readErr != nil || mirrorErr != nil {
		next, err = overwriteDoc(&rebuilt, in, now)
		rep.Status = StatusOverwritten
		rep.Rebuilt = blocksOf(next)
	} else {
		next, rep.Rebuilt, rep.Kept, err = reconcileDoc(&rebuilt, current, mirrored, in, now)
		rep.Status = StatusReconciled
	}
	if err != nil {
		rep.Status = StatusFailed
		return rep, progress.Wrap(progress.CodeMalformed, "backfill.reconcile", err)
	}

	next[progress.FieldUpdatedAt] = docstore.ServerTimestamp()
	merged := docstore.Merge(current, next, r.store.Now())
	var out progress.ProgressFact
	if decErr := docstore.Decode(merged, &out); decErr == nil {
		rep.Fact = &out
	}
	if r.dryRun {
		return rep, nil
	}
	if werr := r.write(ctx, owner, next); werr != nil {
		rep.Status = StatusFailed
		return rep, werr
	}
	r.log.Info("backfill completed", "owner", owner, "status", rep.Status, "rebuilt", rep.Rebuilt, "kept", rep.Kept)
	return rep, nil
}

// write persists next to the aggregate and the mirror in parallel. Either may
// fail without stopping the other.
func (r *Reconciler) write(ctx context.Context, owner string, next docstore.Document) error {
	ctx, span := tracer.Start(ctx, "backfill.write")
	defer span.End()

	var g errgroup.Group
	g.Go(func() error {
		if err := r.store.MergeSet(ctx, progress.CollectionFacts, owner, docstore.Clone(next)); err != nil {
			r.log.Warn("backfill primary write failed", "owner", owner, "error", err)
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := r.mirror.MergeFlat(ctx, owner, docstore.Clone(next)); err != nil {
			r.log.Warn("backfill mirror write failed", "owner", owner, "error", err)
			return err
		}
		return nil
	})
	return g.Wait()
}

// ReconcileAll runs Reconcile for every owner, stopping only when ctx ends.
// Per-owner failures are reported, not returned.
func (r *Reconciler) ReconcileAll(ctx context.Context, owners []string) ([]Report, error) {
	ctx = ctxutil.Default(ctx)
	out := make([]Report, 0, len(owners))
	for _, owner := range owners {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		rep, err := r.Reconcile(ctx, owner)
		if err != nil {
			r.log.Warn("backfill owner failed", "owner", owner, "error", err)
		}
		out = append(out, rep)
	}
	return out, nil
}

func blocksOf(doc docstore.Document) []string {
	out := make([]string, 0, len(doc))
	for k := range doc {
		if k != progress.FieldUpdatedAt {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
