package history_test

import (
	"context"
	"testing"
	"time"

	"gorm.io/datatypes"

	repo "github.com/yungbote/progressfacts/internal/data/repos/history"
	"github.com/yungbote/progressfacts/internal/data/testutil"
	types "github.com/yungbote/progressfacts/internal/domain/history"
	"github.com/yungbote/progressfacts/internal/platform/dbctx"
)

func strPtr(s string) *string { return &s }

func repos(t *testing.T) map[string]repo.Repo {
	t.Helper()
	db := testutil.SQLite(t, types.Models()...)
	return map[string]repo.Repo{
		"gorm":   repo.NewRepo(db, testutil.Logger(t)),
		"memory": repo.NewMemoryRepo(),
	}
}

func TestLatestIntentSnapshotFallsBackToOwnerUID(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	for name, r := range repos(t) {
		t.Run(name, func(t *testing.T) {
			dbc := dbctx.Context{Ctx: context.Background()}
			if err := r.AppendIntentSnapshot(dbc, &types.IntentSnapshot{OwnerUID: "u1", Lang: "en", Timestamp: base}); err != nil {
				t.Fatalf("append: %v", err)
			}
			if err := r.AppendIntentSnapshot(dbc, &types.IntentSnapshot{OwnerUID: "u1", Lang: "ro", Timestamp: base.Add(time.Hour)}); err != nil {
				t.Fatalf("append: %v", err)
			}
			got, err := r.LatestIntentSnapshot(dbc, "u1")
			if err != nil {
				t.Fatalf("latest: %v", err)
			}
			if got == nil || got.Lang != "ro" {
				t.Fatalf("expected newest legacy snapshot, got %+v", got)
			}

			if err := r.AppendIntentSnapshot(dbc, &types.IntentSnapshot{ProfileID: strPtr("u1"), Lang: "de", Timestamp: base}); err != nil {
				t.Fatalf("append: %v", err)
			}
			got, err = r.LatestIntentSnapshot(dbc, "u1")
			if err != nil {
				t.Fatalf("latest: %v", err)
			}
			if got == nil || got.Lang != "de" {
				t.Fatalf("expected profile match to win, got %+v", got)
			}

			none, err := r.LatestIntentSnapshot(dbc, "nobody")
			if err != nil || none != nil {
				t.Fatalf("expected nil for unknown owner, got %+v err=%v", none, err)
			}
		})
	}
}

func TestAssessmentsAscendingAndLimited(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	for name, r := range repos(t) {
		t.Run(name, func(t *testing.T) {
			dbc := dbctx.Context{Ctx: context.Background()}
			for i := 5; i >= 1; i-- {
				row := &types.KnowledgeAssessment{
					ProfileID: "u1",
					Score:     datatypes.JSON([]byte(`{"percent":` + string(rune('0'+i)) + `0}`)),
					Timestamp: base.Add(time.Duration(i) * time.Minute),
				}
				if err := r.AppendKnowledgeAssessment(dbc, row); err != nil {
					t.Fatalf("append: %v", err)
				}
			}
			rows, err := r.KnowledgeAssessments(dbc, "u1", 3)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(rows) != 3 {
				t.Fatalf("expected 3 rows, got %d", len(rows))
			}
			for i := 1; i < len(rows); i++ {
				if rows[i].Timestamp.Before(rows[i-1].Timestamp) {
					t.Fatalf("rows not ascending: %v", rows)
				}
			}
			if p, ok := rows[0].Percent(); !ok || p != 10 {
				t.Fatalf("expected first percent 10, got %v ok=%v", p, ok)
			}
		})
	}
}

func TestLatestJourneyAndOwners(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	for name, r := range repos(t) {
		t.Run(name, func(t *testing.T) {
			dbc := dbctx.Context{Ctx: context.Background()}
			_ = r.AppendJourney(dbc, &types.JourneyRecord{ProfileID: "u2", RecommendedPath: "group", Choice: "individual", Timestamp: base})
			_ = r.AppendJourney(dbc, &types.JourneyRecord{ProfileID: "u2", RecommendedPath: "group", Choice: "group", Timestamp: base.Add(time.Minute)})
			_ = r.AppendIntentSnapshot(dbc, &types.IntentSnapshot{OwnerUID: "u1", Timestamp: base})

			j, err := r.LatestJourney(dbc, "u2")
			if err != nil || j == nil {
				t.Fatalf("latest journey: %v %v", j, err)
			}
			if acc := j.Accepted(); acc == nil || !*acc {
				t.Fatalf("expected inferred acceptance, got %v", acc)
			}

			owners, err := r.Owners(dbc)
			if err != nil {
				t.Fatalf("owners: %v", err)
			}
			if len(owners) != 2 || owners[0] != "u1" || owners[1] != "u2" {
				t.Fatalf("unexpected owners %v", owners)
			}
		})
	}
}
