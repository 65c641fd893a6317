package journal

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/yungbote/progressfacts/internal/data/docstore"
	storetest "github.com/yungbote/progressfacts/internal/data/docstore/testutil"
	"github.com/yungbote/progressfacts/internal/domain/progress"
	"github.com/yungbote/progressfacts/internal/platform/logger"
)

// bucketStart is aligned to a two-minute boundary.
var bucketStart = time.UnixMilli(BucketMillis * 14_000_000).UTC()

type appendSpy struct {
	mu       sync.Mutex
	outcomes map[progress.Outcome]int
}

func (s *appendSpy) IncAppend(o progress.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outcomes == nil {
		s.outcomes = map[progress.Outcome]int{}
	}
	s.outcomes[o]++
}

func newService(t *testing.T, store docstore.Store, now time.Time) (*Service, *appendSpy) {
	t.Helper()
	spy := &appendSpy{}
	return New(store, logger.Nop(), WithHooks(spy), WithNow(func() time.Time { return now })), spy
}

func loadFact(t *testing.T, store docstore.Store, owner string) progress.ProgressFact {
	t.Helper()
	doc, err := store.Get(context.Background(), progress.CollectionFacts, owner)
	if err != nil {
		t.Fatalf("get fact: %v", err)
	}
	var f progress.ProgressFact
	if err := docstore.Decode(doc, &f); err != nil {
		t.Fatalf("decode fact: %v", err)
	}
	return f
}

func texts(entries []progress.RecentEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Text)
	}
	return out
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"  Încredere   în  SINE ", "incredere in sine"},
		{"Relații și țeluri", "relatii si teluri"},
		{"momomoooo", "momomoo"},
		{"aaa\t\tbbb", "aa bb"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.want {
			t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSignatureAndBucket(t *testing.T) {
	ms := bucketStart.Add(90 * time.Second).UnixMilli()
	if got, want := Signature("abc", "tab", ms), fmt.Sprintf("abc|tab|%d", ms/BucketMillis); got != want {
		t.Fatalf("Signature = %q, want %q", got, want)
	}
	if Bucket(0) != -1 {
		t.Fatalf("unknown timestamps fall in bucket -1")
	}
}

func TestAppendSameTextTwiceKeepsOneEntry(t *testing.T) {
	store := docstore.NewMemoryStore()
	svc, spy := newService(t, store, bucketStart)
	ctx := context.Background()

	res := svc.AppendRecentEntry(ctx, "o", EntryInput{Text: "Azi am respirat", Timestamp: bucketStart, TabID: "a"})
	if res.Outcome != progress.OutcomeWritten {
		t.Fatalf("first append: %+v", res)
	}
	res = svc.AppendRecentEntry(ctx, "o", EntryInput{Text: "azi am  RESPIRAT", Timestamp: bucketStart.Add(5 * time.Hour), TabID: "b"})
	if res.Outcome != progress.OutcomeDeduplicated {
		t.Fatalf("expected dedupe within 12h, got %+v", res)
	}
	f := loadFact(t, store, "o")
	if len(f.RecentEntries) != 1 {
		t.Fatalf("expected a single entry, got %v", texts(f.RecentEntries))
	}
	if f.UpdatedAt == nil {
		t.Fatalf("expected updatedAt to be stamped")
	}
	if spy.outcomes[progress.OutcomeDeduplicated] != 1 || spy.outcomes[progress.OutcomeWritten] != 1 {
		t.Fatalf("unexpected hook counts %v", spy.outcomes)
	}

	res = svc.AppendRecentEntry(ctx, "o", EntryInput{Text: "Azi am respirat", Timestamp: bucketStart.Add(13 * time.Hour), TabID: "a"})
	if res.Outcome != progress.OutcomeWritten {
		t.Fatalf("expected write after 12h, got %+v", res)
	}
	f = loadFact(t, store, "o")
	if len(f.RecentEntries) != 1 || !f.RecentEntries[0].Timestamp.Equal(bucketStart.Add(13*time.Hour)) {
		t.Fatalf("expected only the latest occurrence, got %+v", f.RecentEntries)
	}
}

func TestDraftsInSameBucketCoalesce(t *testing.T) {
	store := docstore.NewMemoryStore()
	svc, _ := newService(t, store, bucketStart)
	ctx := context.Background()

	for i, text := range []string{"a", "ab", "abc"} {
		res := svc.AppendRecentEntry(ctx, "o", EntryInput{Text: text, TabID: "journal", Timestamp: bucketStart.Add(time.Duration(i*10) * time.Second)})
		if res.Outcome != progress.OutcomeWritten {
			t.Fatalf("append %q: %+v", text, res)
		}
	}
	other := svc.AppendRecentEntry(ctx, "o", EntryInput{Text: "other tab", TabID: "notes", Timestamp: bucketStart.Add(40 * time.Second)})
	if other.Outcome != progress.OutcomeWritten {
		t.Fatalf("append other tab: %+v", other)
	}

	got := texts(loadFact(t, store, "o").RecentEntries)
	if len(got) != 2 || got[0] != "abc" || got[1] != "other tab" {
		t.Fatalf("expected [abc other tab], got %v", got)
	}
}

func TestRecentEntriesCappedAndAscending(t *testing.T) {
	store := docstore.NewMemoryStore()
	svc, _ := newService(t, store, bucketStart)
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		ts := bucketStart.Add(time.Duration(i) * 3 * time.Minute)
		res := svc.AppendRecentEntry(ctx, "o", EntryInput{Text: fmt.Sprintf("note %d", i), TabID: "t", Timestamp: ts})
		if res.Outcome != progress.OutcomeWritten {
			t.Fatalf("append %d: %+v", i, res)
		}
	}
	entries := loadFact(t, store, "o").RecentEntries
	if len(entries) != 50 {
		t.Fatalf("expected 50 entries, got %d", len(entries))
	}
	if entries[0].Text != "note 10" || entries[49].Text != "note 59" {
		t.Fatalf("expected newest 50 ascending, got %s .. %s", entries[0].Text, entries[49].Text)
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Timestamp.Before(entries[i-1].Timestamp.Time) {
			t.Fatalf("entries not ascending at %d", i)
		}
	}
	if entries[0].Sig == "" || entries[0].TabID != "t" {
		t.Fatalf("expected sig and tabId to be kept, got %+v", entries[0])
	}
}

func TestAppendLongTextTruncated(t *testing.T) {
	store := docstore.NewMemoryStore()
	svc, _ := newService(t, store, bucketStart)
	long := make([]rune, MaxTextRunes+50)
	for i := range long {
		long[i] = 'ă'
		if i%2 == 1 {
			long[i] = 'b'
		}
	}
	svc.AppendRecentEntry(context.Background(), "o", EntryInput{Text: string(long)})
	entries := loadFact(t, store, "o").RecentEntries
	if len(entries) != 1 || len([]rune(entries[0].Text)) != MaxTextRunes {
		t.Fatalf("expected text truncated to %d runes", MaxTextRunes)
	}
}

func TestAppendRejectsBlankText(t *testing.T) {
	svc, _ := newService(t, docstore.NewMemoryStore(), bucketStart)
	if res := svc.AppendRecentEntry(context.Background(), "o", EntryInput{Text: "   "}); res.Outcome != progress.OutcomeInvalid {
		t.Fatalf("expected invalid, got %+v", res)
	}
}

func TestConcurrentAppendsAreNotLost(t *testing.T) {
	store := docstore.NewMemoryStore()
	svc, _ := newService(t, store, bucketStart)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			svc.AppendRecentEntry(context.Background(), "o", EntryInput{
				Text:      fmt.Sprintf("entry %d", n),
				TabID:     fmt.Sprintf("tab-%d", n),
				Timestamp: bucketStart.Add(time.Duration(n) * time.Second),
			})
		}(i)
	}
	wg.Wait()
	if n := len(loadFact(t, store, "o").RecentEntries); n != 10 {
		t.Fatalf("expected 10 entries, got %d", n)
	}
}

func TestAppendStoreFailureIsReported(t *testing.T) {
	store := storetest.NewFaultyStore(nil)
	store.FailTxs(docstore.ErrTransient)
	svc, _ := newService(t, store, bucketStart)
	res := svc.AppendRecentEntry(context.Background(), "o", EntryInput{Text: "x"})
	if res.Outcome != progress.OutcomeFailed || !progress.IsCode(res.Err, progress.CodeTransient) {
		t.Fatalf("expected transient failure, got %+v", res)
	}
}

func TestDeleteRecentEntry(t *testing.T) {
	store := docstore.NewMemoryStore()
	svc, _ := newService(t, store, bucketStart)
	ctx := context.Background()
	ts := bucketStart.Add(1234 * time.Millisecond)
	svc.AppendRecentEntry(ctx, "o", EntryInput{Text: "keep me", Timestamp: bucketStart.Add(10 * time.Minute)})
	svc.AppendRecentEntry(ctx, "o", EntryInput{Text: "drop me", Timestamp: ts})

	if res := svc.DeleteRecentEntry(ctx, "o", "drop me", ts.Add(time.Millisecond)); res.Outcome != progress.OutcomeUnchanged {
		t.Fatalf("expected no match on different millisecond, got %+v", res)
	}
	if res := svc.DeleteRecentEntry(ctx, "o", "  drop me ", ts); res.Outcome != progress.OutcomeWritten {
		t.Fatalf("expected delete, got %+v", res)
	}
	got := texts(loadFact(t, store, "o").RecentEntries)
	if len(got) != 1 || got[0] != "keep me" {
		t.Fatalf("unexpected entries after delete %v", got)
	}
	if res := svc.DeleteRecentEntry(ctx, "missing", "x", ts); res.Outcome != progress.OutcomeUnchanged {
		t.Fatalf("expected unchanged for missing aggregate, got %+v", res)
	}
}

func f64(v float64) *float64 { return &v }

func TestAppendActivityEventNormalizesAndCaps(t *testing.T) {
	store := docstore.NewMemoryStore()
	svc, _ := newService(t, store, bucketStart)
	ctx := context.Background()

	res := svc.AppendActivityEvent(ctx, "o", ActivityInput{Source: "journal", Category: "reflection", Units: f64(2.7), DurationMin: f64(-3)})
	if res.Outcome != progress.OutcomeWritten {
		t.Fatalf("append: %+v", res)
	}
	ev := loadFact(t, store, "o").ActivityEvents[0]
	if ev.Units != 2 || ev.DurationMin == nil || *ev.DurationMin != 0 || ev.ID == "" {
		t.Fatalf("unexpected event %+v", ev)
	}
	if !ev.StartedAt.Equal(bucketStart) {
		t.Fatalf("expected startedAt to default to now, got %v", ev.StartedAt)
	}

	for i := 0; i < 205; i++ {
		svc.AppendActivityEvent(ctx, "o", ActivityInput{Source: "drill", Category: "practice", StartedAt: bucketStart.Add(time.Duration(i) * time.Minute)})
	}
	events := loadFact(t, store, "o").ActivityEvents
	if len(events) != 200 {
		t.Fatalf("expected 200 events, got %d", len(events))
	}
	if !events[199].StartedAt.Equal(bucketStart.Add(204 * time.Minute)) {
		t.Fatalf("expected newest event last, got %v", events[199].StartedAt)
	}
}

func TestAppendActivityEventValidation(t *testing.T) {
	svc, _ := newService(t, docstore.NewMemoryStore(), bucketStart)
	res := svc.AppendActivityEvent(context.Background(), "o", ActivityInput{Source: "tv", Category: "knowledge"})
	if res.Outcome != progress.OutcomeInvalid || !progress.IsCode(res.Err, progress.CodeValidation) {
		t.Fatalf("expected validation failure, got %+v", res)
	}
}

func TestRecordHabitTickIncrements(t *testing.T) {
	store := docstore.NewMemoryStore()
	now := time.Date(2025, 2, 3, 8, 0, 0, 0, time.Local)
	svc, _ := newService(t, store, now)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if res := svc.RecordHabitTick(ctx, "o", "water"); res.Outcome != progress.OutcomeWritten {
			t.Fatalf("tick: %+v", res)
		}
	}
	f := loadFact(t, store, "o")
	if f.Habits == nil || f.Habits.Ticks["d20250203"]["water"] != 2 {
		t.Fatalf("expected two ticks, got %+v", f.Habits)
	}
	if f.Habits.UpdatedAt == nil || f.UpdatedAt == nil {
		t.Fatalf("expected updatedAt stamps")
	}
	if res := svc.RecordHabitTick(ctx, "o", "a.b"); res.Outcome != progress.OutcomeInvalid {
		t.Fatalf("expected dotted key to be rejected, got %+v", res)
	}
}
