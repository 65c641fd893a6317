package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/yungbote/progressfacts/internal/data/docstore"
	"github.com/yungbote/progressfacts/internal/data/mirror"
	"github.com/yungbote/progressfacts/internal/domain/progress"
	"github.com/yungbote/progressfacts/internal/platform/ctxutil"
	"github.com/yungbote/progressfacts/internal/platform/logger"
	"github.com/yungbote/progressfacts/internal/progress/backfill"
	"github.com/yungbote/progressfacts/internal/progress/metrics"
	"github.com/yungbote/progressfacts/internal/progress/unlocks"
)

// Backfiller is the part of backfill.Reconciler the read model needs.
type Backfiller interface {
	Reconcile(ctx context.Context, ownerID string) (backfill.Report, error)
}

// ProgressView is what the dashboard renders for one owner.
type ProgressView struct {
	OwnerID  string                `json:"ownerId"`
	Fact     progress.ProgressFact `json:"fact"`
	Indices  metrics.Indices       `json:"indices"`
	Unlocks  unlocks.Unlocks       `json:"unlocks"`
	Backfill string                `json:"backfill,omitempty"`
	// Source is "aggregate" or "mirror".
	Source string `json:"source"`
}

type ProgressViewService interface {
	Get(ctx context.Context, ownerID string) (*ProgressView, error)
	Backfill(ctx context.Context, ownerID string) (backfill.Report, error)
}

type progressViewService struct {
	store      docstore.Store
	mirror     mirror.Mirror
	backfiller Backfiller
	log        *logger.Logger
	opts       metrics.Options
	now        func() time.Time

	attempted sync.Map
	group     singleflight.Group
}

type ViewOption func(*progressViewService)

func WithMetricsOptions(o metrics.Options) ViewOption {
	return func(s *progressViewService) { s.opts = o }
}

func WithViewClock(now func() time.Time) ViewOption {
	return func(s *progressViewService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewProgressViewService(store docstore.Store, m mirror.Mirror, bf Backfiller, baseLog *logger.Logger, opts ...ViewOption) ProgressViewService {
	if m == nil {
		m = mirror.Noop{}
	}
	s := &progressViewService{
		store:      store,
		mirror:     m,
		backfiller: bf,
		log:        baseLog.With("service", "ProgressViewService"),
		opts:       metrics.DefaultOptions(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get loads the aggregate, backfilling it at most once per process per owner
// while it is incomplete, and derives indices and unlocks from it.
func (s *progressViewService) Get(ctx context.Context, ownerID string) (*ProgressView, error) {
	ctx = ctxutil.Default(ctx)
	owner := ctxutil.ResolveOwner(ctx, ownerID)
	if owner == "" {
		return nil, progress.Validation("progressview.get", "owner id required")
	}

	fact, source, err := s.load(ctx, owner)
	if err != nil {
		return nil, err
	}
	view := &ProgressView{OwnerID: owner, Source: source}

	if !fact.Complete() && s.backfiller != nil {
		if _, done := s.attempted.LoadOrStore(owner, struct{}{}); !done {
			rep, berr := s.reconcile(ctx, owner)
			view.Backfill = rep.Status
			if berr != nil {
				s.log.Warn("dashboard backfill failed", "owner", owner, "error", berr)
			} else if rep.Fact != nil {
				fact = rep.Fact
			}
		}
	}

	view.Fact = *fact
	view.Indices = metrics.ComputeIndices(fact, s.now(), s.opts)
	view.Unlocks = unlocks.Derive(fact)
	return view, nil
}

// Backfill reconciles unconditionally. Concurrent calls for one owner share
// a single run.
func (s *progressViewService) Backfill(ctx context.Context, ownerID string) (backfill.Report, error) {
	ctx = ctxutil.Default(ctx)
	owner := ctxutil.ResolveOwner(ctx, ownerID)
	if owner == "" {
		return backfill.Report{Status: backfill.StatusFailed}, progress.Validation("progressview.backfill", "owner id required")
	}
	if s.backfiller == nil {
		return backfill.Report{OwnerID: owner, Status: backfill.StatusFailed}, progress.NewError(progress.CodeInternal, "progressview.backfill", "backfill not configured", nil)
	}
	s.attempted.Store(owner, struct{}{})
	return s.reconcile(ctx, owner)
}

func (s *progressViewService) reconcile(ctx context.Context, owner string) (backfill.Report, error) {
	v, err, _ := s.group.Do(owner, func() (any, error) {
		return s.backfiller.Reconcile(ctx, owner)
	})
	rep, _ := v.(backfill.Report)
	return rep, err
}

// load reads the canonical aggregate and falls back to the mirror when the
// store cannot be read. A missing aggregate is an empty one.
func (s *progressViewService) load(ctx context.Context, owner string) (*progress.ProgressFact, string, error) {
	doc, err := s.store.Get(ctx, progress.CollectionFacts, owner)
	source := "aggregate"
	switch {
	case err == nil:
	case errors.Is(err, docstore.ErrNotFound):
		doc = nil
	default:
		s.log.Warn("dashboard aggregate read failed, trying mirror", "owner", owner, "error", err)
		mirrored, merr := s.mirror.Load(ctx, owner)
		if merr != nil {
			return nil, "", err
		}
		doc, source = mirrored, "mirror"
	}
	var f progress.ProgressFact
	if doc != nil {
		if derr := docstore.Decode(doc, &f); derr != nil {
			return nil, "", progress.Wrap(progress.CodeMalformed, "progressview.load", derr)
		}
	}
	return &f, source, nil
}
