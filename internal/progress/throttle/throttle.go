// Package throttle serializes aggregate writes through a single in-order
// worker. It spaces physical writes, collapses identical bursts and stops
// writing for a while after the store reports quota exhaustion.
package throttle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/yungbote/progressfacts/internal/data/docstore"
	"github.com/yungbote/progressfacts/internal/data/mirror"
	"github.com/yungbote/progressfacts/internal/domain/progress"
	"github.com/yungbote/progressfacts/internal/platform/ctxutil"
	"github.com/yungbote/progressfacts/internal/platform/logger"
)

// ErrClosed is reported for patches submitted after Close.
var ErrClosed = errors.New("throttle: closed")

var tracer = otel.Tracer("progressfacts/throttle")

type job struct {
	ctx   context.Context
	owner string
	patch docstore.Document
	reply chan progress.Result
}

// Service is the write queue for one process. Use one instance per session
// scope; instances share no state.
type Service struct {
	store  docstore.Store
	mirror mirror.Mirror
	log    *logger.Logger
	cfg    Config
	hooks  Hooks
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error

	limiter *rate.Limiter
	breaker atomic.Pointer[gobreaker.CircuitBreaker[struct{}]]
	// suppressedUntil is the end of the current suppression window in unix
	// nanoseconds on the service clock, 0 when none was opened.
	suppressedUntil atomic.Int64

	queue     chan job
	quit      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	// worker-owned
	lastSig   string
	lastSigAt time.Time
}

func New(store docstore.Store, m mirror.Mirror, baseLog *logger.Logger, cfg Config, opts ...Option) *Service {
	cfg = cfg.withDefaults()
	if m == nil {
		m = mirror.Noop{}
	}
	s := &Service{
		store:   store,
		mirror:  m,
		log:     baseLog.With("service", "WriteThrottler"),
		cfg:     cfg,
		hooks:   NoopHooks(),
		now:     time.Now,
		sleep:   sleepCtx,
		queue:   make(chan job, cfg.QueueSize),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	limit := rate.Inf
	if cfg.MinSpacing > 0 {
		limit = rate.Every(cfg.MinSpacing)
	}
	s.limiter = rate.NewLimiter(limit, 1)
	s.breaker.Store(s.newBreaker())
	go s.run()
	return s
}

// newBreaker trips on the first quota error. The window itself is tracked on
// the service clock in suppressedUntil; the breaker is replaced once it ends.
func (s *Service) newBreaker() *gobreaker.CircuitBreaker[struct{}] {
	return gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "progress-writes",
		MaxRequests: 1,
		Timeout:     s.cfg.SuppressFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 1
		},
		// Only quota exhaustion opens the breaker; other failures are lost writes.
		IsSuccessful: func(err error) bool {
			return err == nil || !docstore.IsQuota(err)
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				s.suppressedUntil.Store(s.now().Add(s.cfg.SuppressFor).UnixNano())
				s.log.Warn("progress writes suppressed after quota error", "window", s.cfg.SuppressFor.String())
				s.hooks.IncSuppressionTrip()
				return
			}
			s.log.Debug("progress write breaker state change", "from", from.String(), "to", to.String())
		},
	})
}

// Suppressed reports whether a quota suppression window is active.
func (s *Service) Suppressed() bool {
	until := s.suppressedUntil.Load()
	return until != 0 && s.now().UnixNano() < until
}

// resetExpiredBreaker closes a breaker whose window has ended on the service
// clock but not yet on gobreaker's wall clock. Worker only.
func (s *Service) resetExpiredBreaker() {
	if s.Suppressed() || s.breaker.Load().State() != gobreaker.StateOpen {
		return
	}
	s.breaker.Store(s.newBreaker())
}

// Submit queues patch for ownerID (or the context owner) and waits for the
// worker to settle it. It never panics on store failures; the outcome is
// carried in the result.
func (s *Service) Submit(ctx context.Context, ownerID string, patch docstore.Document) progress.Result {
	ctx = ctxutil.Default(ctx)
	if s.cfg.WritesDisabled {
		return progress.Suppressed()
	}
	if s.Suppressed() {
		s.hooks.ObserveBatch(progress.OutcomeSuppressed, 0)
		return progress.Suppressed()
	}
	owner := ctxutil.ResolveOwner(ctx, ownerID)
	if owner == "" {
		return progress.Invalid(progress.Validation("throttle.submit", "no owner id"))
	}
	if len(patch) == 0 {
		return progress.Invalid(progress.Validation("throttle.submit", "empty patch"))
	}

	j := job{
		ctx:   context.WithoutCancel(ctx),
		owner: owner,
		patch: patch,
		reply: make(chan progress.Result, 1),
	}
	select {
	case s.queue <- j:
	case <-s.quit:
		return progress.Failed(owner, ErrClosed)
	case <-ctx.Done():
		return progress.Failed(owner, ctx.Err())
	}
	select {
	case r := <-j.reply:
		return r
	case <-s.stopped:
		select {
		case r := <-j.reply:
			return r
		default:
			return progress.Failed(owner, ErrClosed)
		}
	case <-ctx.Done():
		// The queued write still runs.
		return progress.Failed(owner, ctx.Err())
	}
}

// Close stops the worker after the write in flight. Queued patches are
// answered with ErrClosed.
func (s *Service) Close() {
	s.closeOnce.Do(func() {
		close(s.quit)
		<-s.stopped
	})
}

func (s *Service) run() {
	defer close(s.stopped)
	for {
		select {
		case <-s.quit:
			s.drain()
			return
		case j := <-s.queue:
			j.reply <- s.process(j)
		}
	}
}

func (s *Service) drain() {
	for {
		select {
		case j := <-s.queue:
			j.reply <- progress.Failed(j.owner, ErrClosed)
		default:
			return
		}
	}
}

func (s *Service) process(j job) progress.Result {
	start := s.now()
	res := s.processJob(j)
	s.hooks.ObserveBatch(res.Outcome, s.now().Sub(start))
	return res
}

func (s *Service) processJob(j job) progress.Result {
	if s.Suppressed() {
		return progress.Suppressed()
	}
	s.resetExpiredBreaker()
	sig := Signature(j.owner, j.patch)
	now := s.now()
	if sig != "" && sig == s.lastSig && now.Sub(s.lastSigAt) < s.cfg.DedupeWindow {
		// A skipped duplicate still occupies a slot so a burst cannot pile up behind it.
		s.limiter.ReserveN(now, 1)
		s.log.Debug("skipping duplicate progress patch", "owner_id", j.owner)
		return progress.Deduplicated(j.owner)
	}

	r := s.limiter.ReserveN(now, 1)
	if d := r.DelayFrom(now); d > 0 {
		if err := s.sleep(j.ctx, d); err != nil {
			r.CancelAt(s.now())
			return progress.Failed(j.owner, err)
		}
	}

	ctx, span := tracer.Start(j.ctx, "progress.write_batch")
	defer span.End()

	var canonErr, mirrorErr error
	_, err := s.breaker.Load().Execute(func() (struct{}, error) {
		canonErr, mirrorErr = s.write(ctx, j.owner, j.patch)
		if docstore.IsQuota(mirrorErr) && !docstore.IsQuota(canonErr) {
			return struct{}{}, mirrorErr
		}
		return struct{}{}, canonErr
	})

	s.lastSig, s.lastSigAt = sig, s.now()

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		span.SetAttributes(attribute.String("outcome", string(progress.OutcomeSuppressed)))
		return progress.Suppressed()
	}
	if canonErr != nil {
		span.RecordError(canonErr)
		span.SetAttributes(attribute.String("outcome", string(progress.OutcomeFailed)))
		return progress.Failed(j.owner, docstore.MapError("throttle.write", canonErr))
	}
	span.SetAttributes(attribute.String("outcome", string(progress.OutcomeWritten)))
	return progress.Written(j.owner)
}

// write sends the patch to the aggregate and the mirror in parallel. Each
// side fails independently.
func (s *Service) write(ctx context.Context, owner string, patch docstore.Document) (canonErr, mirrorErr error) {
	payload := docstore.Clone(patch)
	payload[progress.FieldUpdatedAt] = docstore.ServerTimestamp()
	mirrored := docstore.Clone(payload)

	var g errgroup.Group
	g.Go(func() error {
		canonErr = s.store.MergeSet(ctx, progress.CollectionFacts, owner, payload)
		if canonErr != nil {
			s.log.Warn("progress fact primary write failed", "owner_id", owner, "code", string(progress.CodeOf(docstore.MapError("", canonErr))), "error", canonErr)
		}
		return nil
	})
	g.Go(func() error {
		mirrorErr = s.mirror.MergeFlat(ctx, owner, mirrored)
		if mirrorErr != nil {
			s.log.Warn("profile progress mirror write failed", "owner_id", owner, "code", string(progress.CodeOf(docstore.MapError("", mirrorErr))), "error", mirrorErr)
		}
		return nil
	})
	_ = g.Wait()
	return canonErr, mirrorErr
}

// Signature is a structural fingerprint of a patch for one owner. It is
// empty when the patch cannot be encoded, which disables deduplication.
func Signature(owner string, patch docstore.Document) string {
	b, err := json.Marshal(map[string]any{"owner": owner, "patch": patch})
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
