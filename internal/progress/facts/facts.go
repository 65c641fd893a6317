// Package facts holds the typed recorders that fold UI signals into the
// per-owner progress aggregate. Recorders validate their payload, render a
// typed patch and hand it to the write throttle; they never return errors for
// expected failures, only a Result.
package facts

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/progressfacts/internal/data/docstore"
	"github.com/yungbote/progressfacts/internal/domain/progress"
	"github.com/yungbote/progressfacts/internal/platform/ctxutil"
	"github.com/yungbote/progressfacts/internal/platform/logger"
)

var tracer = otel.Tracer("progressfacts/facts")

// Writer is the write queue recorders submit to.
type Writer interface {
	Submit(ctx context.Context, ownerID string, patch docstore.Document) progress.Result
}

type Service struct {
	writer Writer
	// profiles receives secondary artifacts such as the active mission.
	profiles docstore.Store
	log      *logger.Logger
	now      func() time.Time
}

type Option func(*Service)

func WithNow(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New builds the recorder service. profiles may be nil, which skips the
// active mission upsert.
func New(w Writer, profiles docstore.Store, baseLog *logger.Logger, opts ...Option) *Service {
	s := &Service{
		writer:   w,
		profiles: profiles,
		log:      baseLog.With("service", "FactRecorder"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// record renders p and submits it. Render failures are validation outcomes
// when the patch itself was malformed.
func (s *Service) record(ctx context.Context, op, ownerID string, p progress.Patch) progress.Result {
	ctx = ctxutil.Default(ctx)
	ctx, span := tracer.Start(ctx, "facts."+op)
	defer span.End()

	doc, err := Render(p, s.now())
	if err != nil {
		if progress.IsCode(err, progress.CodeValidation) {
			return progress.Invalid(err)
		}
		s.log.Warn("render progress patch failed", "op", op, "error", err)
		return progress.Failed(ctxutil.ResolveOwner(ctx, ownerID), err)
	}
	res := s.writer.Submit(ctx, ownerID, doc)
	span.SetAttributes(attribute.String("outcome", string(res.Outcome)))
	if res.Outcome == progress.OutcomeFailed {
		s.log.Warn("progress fact write failed", "op", op, "owner", res.OwnerID, "error", res.Err)
	}
	return res
}

func invalid(op string, v any) (progress.Result, bool) {
	if err := progress.ValidateStruct(op, v); err != nil {
		return progress.Invalid(err), true
	}
	return progress.Result{}, false
}
