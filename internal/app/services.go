package app

import (
	"github.com/yungbote/progressfacts/internal/data/docstore"
	"github.com/yungbote/progressfacts/internal/data/mirror"
	"github.com/yungbote/progressfacts/internal/observability"
	"github.com/yungbote/progressfacts/internal/platform/logger"
	"github.com/yungbote/progressfacts/internal/progress/backfill"
	"github.com/yungbote/progressfacts/internal/progress/facts"
	"github.com/yungbote/progressfacts/internal/progress/journal"
	"github.com/yungbote/progressfacts/internal/progress/throttle"
	"github.com/yungbote/progressfacts/internal/services"
)

type Services struct {
	Throttle *throttle.Service
	Facts    *facts.Service
	Journal  *journal.Service
	Backfill *backfill.Reconciler
	View     services.ProgressViewService
}

func wireServices(log *logger.Logger, cfg Config, st *Storage, m mirror.Mirror, metrics *observability.Metrics) Services {
	log.Info("Wiring services...")

	var (
		throttleOpts []throttle.Option
		journalOpts  []journal.Option
		backfillOpts []backfill.Option
	)
	if metrics != nil {
		throttleOpts = append(throttleOpts, throttle.WithHooks(metrics))
		journalOpts = append(journalOpts, journal.WithHooks(metrics))
		backfillOpts = append(backfillOpts, backfill.WithHooks(metrics))
	}

	writer := throttle.New(st.Store, m, log, cfg.Throttle.Throttle(), throttleOpts...)
	reconciler := backfill.New(st.Store, m, st.History, log, backfillOpts...)

	return Services{
		Throttle: writer,
		// Profiles share the canonical store.
		Facts:    facts.New(writer, st.Store, log),
		Journal:  journal.New(st.Store, log, journalOpts...),
		Backfill: reconciler,
		View:     services.NewProgressViewService(st.Store, m, reconciler, log),
	}
}

func storeOptions(metrics *observability.Metrics) []docstore.Option {
	if metrics == nil {
		return nil
	}
	return []docstore.Option{docstore.WithHooks(metrics)}
}

func (s Services) Close() {
	if s.Throttle != nil {
		s.Throttle.Close()
	}
}
