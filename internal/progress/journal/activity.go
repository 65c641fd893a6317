package journal

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/progressfacts/internal/data/docstore"
	"github.com/yungbote/progressfacts/internal/domain/progress"
	"github.com/yungbote/progressfacts/internal/platform/ctxutil"
)

// ActivityInput is one unit of activity for the action trend.
type ActivityInput struct {
	// StartedAt defaults to now.
	StartedAt   time.Time `json:"startedAt"`
	Source      string    `json:"source" validate:"required,oneof=omnikuno omniabil breathing journal drill slider other"`
	Category    string    `json:"category" validate:"required,oneof=knowledge practice reflection"`
	Units       *float64  `json:"units,omitempty"`
	DurationMin *float64  `json:"durationMin,omitempty"`
	FocusTag    string    `json:"focusTag,omitempty"`
}

// Event renders the stored event. Units is at least 1; duration is rounded
// and never negative.
func (in ActivityInput) Event(now time.Time) progress.ActivityEvent {
	started := in.StartedAt
	if started.IsZero() {
		started = now
	}
	units := 1
	if in.Units != nil && !math.IsNaN(*in.Units) && !math.IsInf(*in.Units, 0) {
		units = int(math.Max(1, math.Floor(*in.Units)))
	}
	ev := progress.ActivityEvent{
		ID:        uuid.NewString(),
		StartedAt: progress.Time{Time: started.UTC()},
		Source:    in.Source,
		Category:  progress.ActivityCategory(in.Category),
		Units:     units,
		FocusTag:  strings.TrimSpace(in.FocusTag),
	}
	if in.DurationMin != nil && !math.IsNaN(*in.DurationMin) && !math.IsInf(*in.DurationMin, 0) {
		d := int(math.Max(0, math.Round(*in.DurationMin)))
		ev.DurationMin = &d
	}
	return ev
}

// AppendActivityEvent appends an event to the activity log, keeping the
// newest 200.
func (s *Service) AppendActivityEvent(ctx context.Context, ownerID string, in ActivityInput) progress.Result {
	ctx = ctxutil.Default(ctx)
	owner := ctxutil.ResolveOwner(ctx, ownerID)
	if owner == "" {
		return progress.Invalid(progress.Validation("journal.activity", "no owner id"))
	}
	if err := progress.ValidateStruct("journal.activity", in); err != nil {
		return progress.Invalid(err)
	}
	ev, err := docstore.Encode(in.Event(s.now()))
	if err != nil {
		return progress.Invalid(progress.Wrap(progress.CodeMalformed, "journal.activity", err))
	}

	ctx, span := tracer.Start(ctx, "journal.append_activity_event")
	defer span.End()

	err = s.store.RunTransaction(ctx, progress.CollectionFacts, owner, func(current docstore.Document) (docstore.Document, error) {
		cur, _ := current[progress.BlockActivityEvents].([]any)
		next := make([]any, 0, len(cur)+1)
		next = append(next, cur...)
		next = append(next, map[string]any(ev))
		if len(next) > keepActivity {
			next = next[len(next)-keepActivity:]
		}
		return docstore.Document{
			progress.BlockActivityEvents: next,
			progress.FieldUpdatedAt:      docstore.ServerTimestamp(),
		}, nil
	})
	if err != nil {
		span.RecordError(err)
		s.log.Warn("recordActivityEvent failed", "owner_id", owner, "error", err)
		return progress.Failed(owner, docstore.MapError("journal.activity", err))
	}
	return progress.Written(owner)
}

// RecordHabitTick increments today's tick for habitKey.
func (s *Service) RecordHabitTick(ctx context.Context, ownerID, habitKey string) progress.Result {
	ctx = ctxutil.Default(ctx)
	owner := ctxutil.ResolveOwner(ctx, ownerID)
	if owner == "" {
		return progress.Invalid(progress.Validation("journal.habit", "no owner id"))
	}
	habitKey = strings.TrimSpace(habitKey)
	if habitKey == "" || strings.Contains(habitKey, ".") {
		return progress.Invalid(progress.Validation("journal.habit", "invalid habit key %q", habitKey))
	}
	day := progress.DayKey(s.now())

	err := s.store.RunTransaction(ctx, progress.CollectionFacts, owner, func(docstore.Document) (docstore.Document, error) {
		return docstore.Document{
			progress.BlockHabits: map[string]any{
				"ticks": map[string]any{
					day: map[string]any{habitKey: docstore.Increment(1)},
				},
				"updatedAt": docstore.ServerTimestamp(),
			},
			progress.FieldUpdatedAt: docstore.ServerTimestamp(),
		}, nil
	})
	if err != nil {
		s.log.Warn("recordHabitTick failed", "owner_id", owner, "error", err)
		return progress.Failed(owner, docstore.MapError("journal.habit", err))
	}
	return progress.Written(owner)
}
