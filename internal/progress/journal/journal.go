// Package journal keeps the list-shaped parts of the aggregate that need to
// see the current value before writing: recent free-text entries, the
// activity event log and habit ticks. Every write is a store transaction,
// so overlapping saves from other devices are retried rather than lost.
package journal

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/yungbote/progressfacts/internal/data/docstore"
	"github.com/yungbote/progressfacts/internal/domain/progress"
	"github.com/yungbote/progressfacts/internal/platform/ctxutil"
	"github.com/yungbote/progressfacts/internal/platform/logger"
)

const (
	keepRecentWorking = 100
	keepRecent        = 50
	keepActivity      = 200
)

var tracer = otel.Tracer("progressfacts/journal")

type Service struct {
	store docstore.Store
	log   *logger.Logger
	hooks Hooks
	now   func() time.Time
}

type Option func(*Service)

func WithHooks(h Hooks) Option {
	return func(s *Service) {
		if h != nil {
			s.hooks = h
		}
	}
}

func WithNow(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func New(store docstore.Store, baseLog *logger.Logger, opts ...Option) *Service {
	s := &Service{
		store: store,
		log:   baseLog.With("service", "JournalService"),
		hooks: NoopHooks(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EntryInput is a free-text entry to append.
type EntryInput struct {
	Text string `json:"text"`
	// Timestamp defaults to now.
	Timestamp   time.Time `json:"timestamp"`
	TabID       string    `json:"tabId,omitempty"`
	Theme       *string   `json:"theme,omitempty"`
	SourceBlock *string   `json:"sourceBlock,omitempty"`
	SourceType  string    `json:"sourceType,omitempty"`
	ModuleID    string    `json:"moduleId,omitempty"`
	LessonID    string    `json:"lessonId,omitempty"`
	LessonTitle string    `json:"lessonTitle,omitempty"`
}

type storedEntry struct {
	raw  map[string]any
	ms   int64
	norm string
}

func readEntries(current docstore.Document) []storedEntry {
	arr, _ := current[progress.BlockRecentEntries].([]any)
	out := make([]storedEntry, 0, len(arr)+1)
	for _, v := range arr {
		m, ok := docstore.AsMap(v)
		if !ok {
			continue
		}
		text, _ := m["text"].(string)
		out = append(out, storedEntry{raw: m, ms: progress.MillisOf(m["timestamp"]), norm: Normalize(text)})
	}
	return out
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

// AppendRecentEntry appends a journal entry unless the same draft or the
// same text (within 12 hours) is already there. Earlier drafts from the same
// tab in the same two-minute bucket are replaced by this one.
func (s *Service) AppendRecentEntry(ctx context.Context, ownerID string, in EntryInput) progress.Result {
	ctx = ctxutil.Default(ctx)
	res := s.appendRecentEntry(ctx, ownerID, in)
	s.hooks.IncAppend(res.Outcome)
	return res
}

func (s *Service) appendRecentEntry(ctx context.Context, ownerID string, in EntryInput) progress.Result {
	owner := ctxutil.ResolveOwner(ctx, ownerID)
	if owner == "" {
		return progress.Invalid(progress.Validation("journal.append", "no owner id"))
	}
	text := progress.TruncateRunes(in.Text, MaxTextRunes)
	if strings.TrimSpace(text) == "" {
		return progress.Invalid(progress.Validation("journal.append", "empty text"))
	}
	ts := in.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	ts = ts.UTC()
	nowMs := ts.UnixMilli()
	tabID := strings.TrimSpace(in.TabID)
	normText := Normalize(text)
	bucket := Bucket(nowMs)
	sig := Signature(normText, tabID, nowMs)

	candidate := map[string]any{"text": text, "timestamp": ts, "sig": sig}
	if tabID != "" {
		candidate["tabId"] = tabID
	}
	if in.Theme != nil {
		candidate["theme"] = *in.Theme
	}
	if in.SourceBlock != nil {
		candidate["sourceBlock"] = *in.SourceBlock
	}
	for k, v := range map[string]string{
		"sourceType":  in.SourceType,
		"moduleId":    in.ModuleID,
		"lessonId":    in.LessonID,
		"lessonTitle": in.LessonTitle,
	} {
		if v = strings.TrimSpace(v); v != "" {
			candidate[k] = v
		}
	}

	ctx, span := tracer.Start(ctx, "journal.append_recent_entry")
	defer span.End()

	duplicate := false
	err := s.store.RunTransaction(ctx, progress.CollectionFacts, owner, func(current docstore.Document) (docstore.Document, error) {
		duplicate = false
		entries := readEntries(current)
		for _, e := range entries {
			if str(e.raw["sig"]) == sig {
				duplicate = true
				break
			}
			dt := nowMs - e.ms
			if dt < 0 {
				dt = -dt
			}
			if e.norm == normText && dt <= DuplicateWindowMillis {
				duplicate = true
				break
			}
		}
		if duplicate {
			return nil, docstore.ErrAbort
		}

		kept := entries[:0]
		for _, e := range entries {
			if strings.TrimSpace(str(e.raw["tabId"])) == tabID && Bucket(e.ms) == bucket {
				continue
			}
			kept = append(kept, e)
		}
		kept = append(kept, storedEntry{raw: candidate, ms: nowMs, norm: normText})

		return docstore.Document{
			progress.BlockRecentEntries: compactEntries(kept),
			progress.FieldUpdatedAt:     docstore.ServerTimestamp(),
		}, nil
	})
	if err != nil {
		span.RecordError(err)
		s.log.Warn("recordRecentEntry failed", "owner_id", owner, "error", err)
		return progress.Failed(owner, docstore.MapError("journal.append", err))
	}
	if duplicate {
		return progress.Deduplicated(owner)
	}
	return progress.Written(owner)
}

// compactEntries sorts ascending, keeps the latest occurrence per normalized
// text and caps the list.
func compactEntries(entries []storedEntry) []any {
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].ms < entries[j].ms })
	if len(entries) > keepRecentWorking {
		entries = entries[len(entries)-keepRecentWorking:]
	}
	latest := make(map[string]storedEntry, len(entries))
	for _, e := range entries {
		latest[e.norm] = e
	}
	uniq := make([]storedEntry, 0, len(latest))
	for _, e := range latest {
		uniq = append(uniq, e)
	}
	sort.SliceStable(uniq, func(i, j int) bool {
		if uniq[i].ms != uniq[j].ms {
			return uniq[i].ms < uniq[j].ms
		}
		return uniq[i].norm < uniq[j].norm
	})
	if len(uniq) > keepRecent {
		uniq = uniq[len(uniq)-keepRecent:]
	}
	out := make([]any, 0, len(uniq))
	for _, e := range uniq {
		out = append(out, renderEntry(e.raw))
	}
	return out
}

func renderEntry(raw map[string]any) map[string]any {
	out := map[string]any{
		"text":        str(raw["text"]),
		"timestamp":   raw["timestamp"],
		"theme":       raw["theme"],
		"sourceBlock": raw["sourceBlock"],
	}
	for _, k := range []string{"tabId", "sig", "sourceType", "moduleId", "lessonId", "lessonTitle"} {
		if v := str(raw[k]); v != "" {
			out[k] = v
		}
	}
	return out
}

// DeleteRecentEntry removes entries whose trimmed text equals text and whose
// timestamp matches at to the millisecond.
func (s *Service) DeleteRecentEntry(ctx context.Context, ownerID, text string, at time.Time) progress.Result {
	ctx = ctxutil.Default(ctx)
	owner := ctxutil.ResolveOwner(ctx, ownerID)
	if owner == "" {
		return progress.Invalid(progress.Validation("journal.delete", "no owner id"))
	}
	target := strings.TrimSpace(text)
	var targetMs int64
	if !at.IsZero() {
		targetMs = at.UnixMilli()
	}

	removed := false
	err := s.store.RunTransaction(ctx, progress.CollectionFacts, owner, func(current docstore.Document) (docstore.Document, error) {
		removed = false
		if current == nil {
			return nil, docstore.ErrAbort
		}
		arr, _ := current[progress.BlockRecentEntries].([]any)
		kept := make([]any, 0, len(arr))
		for _, v := range arr {
			m, ok := docstore.AsMap(v)
			if ok && strings.TrimSpace(str(m["text"])) == target && progress.MillisOf(m["timestamp"]) == targetMs {
				continue
			}
			kept = append(kept, v)
		}
		if len(kept) == len(arr) {
			return nil, docstore.ErrAbort
		}
		removed = true
		return docstore.Document{
			progress.BlockRecentEntries: kept,
			progress.FieldUpdatedAt:     docstore.ServerTimestamp(),
		}, nil
	})
	if err != nil {
		s.log.Warn("deleteRecentEntry failed", "owner_id", owner, "error", err)
		return progress.Failed(owner, docstore.MapError("journal.delete", err))
	}
	if !removed {
		return progress.Unchanged(owner)
	}
	return progress.Written(owner)
}
