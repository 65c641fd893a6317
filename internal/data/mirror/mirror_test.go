package mirror

import (
	"context"
	"errors"
	"os"
	"reflect"
	"testing"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/progressfacts/internal/data/docstore"
	"github.com/yungbote/progressfacts/internal/domain/progress"
	"github.com/yungbote/progressfacts/internal/platform/logger"
)

func TestFlattenUnflatten(t *testing.T) {
	doc := docstore.Document{
		"intent": map[string]any{"urgency": 7.0, "tags": []any{"a"}},
		"omni": map[string]any{
			"scope": map[string]any{"directionMotivationIndex": 64.0},
			"kuno":  map[string]any{},
		},
		"updatedAt": "2025-01-01T00:00:00Z",
	}
	flat := Flatten(doc)
	want := map[string]any{
		"intent.urgency":                      7.0,
		"intent.tags":                         []any{"a"},
		"omni.scope.directionMotivationIndex": 64.0,
		"omni.kuno":                           map[string]any{},
		"updatedAt":                           "2025-01-01T00:00:00Z",
	}
	if !reflect.DeepEqual(flat, want) {
		t.Fatalf("flatten mismatch:\nwant=%#v\ngot=%#v", want, flat)
	}
	if back := Unflatten(flat); !reflect.DeepEqual(back, doc) {
		t.Fatalf("unflatten mismatch:\nwant=%#v\ngot=%#v", doc, back)
	}
}

func TestUnflattenDeeperPathWins(t *testing.T) {
	back := Unflatten(map[string]any{"omni.scope": nil, "omni.scope.x": 1.0})
	scope, ok := docstore.AsMap(back["omni"].(map[string]any)["scope"])
	if !ok || scope["x"] != 1.0 {
		t.Fatalf("deeper path lost: %#v", back)
	}
}

func TestStoreMirrorMergesUnderProfile(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	m := NewStoreMirror(store)

	if err := store.MergeSet(ctx, progress.CollectionProfiles, "u1", docstore.Document{"name": "Ana"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := m.MergeFlat(ctx, "u1", docstore.Document{
		"intent": map[string]any{"urgency": 7},
		"stats":  map[string]any{"drillsCount": docstore.Increment(1)},
	}); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if err := m.MergeFlat(ctx, "u1", docstore.Document{"stats": map[string]any{"drillsCount": docstore.Increment(1)}}); err != nil {
		t.Fatalf("merge 2: %v", err)
	}

	profile, err := store.Get(ctx, progress.CollectionProfiles, "u1")
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if profile["name"] != "Ana" {
		t.Fatalf("profile fields clobbered: %#v", profile)
	}
	got, err := m.Load(ctx, "u1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	stats, _ := docstore.AsMap(got["stats"])
	if stats["drillsCount"] != 2.0 {
		t.Fatalf("increment not applied: %#v", got)
	}
	if _, err := m.Load(ctx, "missing"); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("want not found, got %v", err)
	}
}

func TestNoopMirror(t *testing.T) {
	var m Mirror = Noop{}
	if err := m.MergeFlat(context.Background(), "u1", docstore.Document{"a": 1}); err != nil {
		t.Fatalf("noop merge: %v", err)
	}
	if _, err := m.Load(context.Background(), "u1"); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("noop load should report not found")
	}
}

func redisMirror(t *testing.T) *RedisMirror {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis mirror tests")
	}
	m, err := NewRedisMirror(logger.Nop(), RedisConfig{Addr: addr, Prefix: "progressFactsTest"})
	if err != nil {
		t.Fatalf("redis mirror: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestRedisMirrorRoundTrip(t *testing.T) {
	m := redisMirror(t)
	ctx := context.Background()
	owner := uuid.NewString()
	t.Cleanup(func() { m.rdb.Del(context.Background(), m.key(owner)) })

	patch := docstore.Document{
		"intent":    map[string]any{"urgency": 7, "tags": []any{"a", "b"}},
		"stats":     map[string]any{"drillsCount": docstore.Increment(2)},
		"log":       docstore.ArrayUnionCapped(2, "x", "y"),
		"updatedAt": docstore.ServerTimestamp(),
	}
	if err := m.MergeFlat(ctx, owner, patch); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if err := m.MergeFlat(ctx, owner, docstore.Document{"log": docstore.ArrayUnionCapped(2, "z")}); err != nil {
		t.Fatalf("merge union: %v", err)
	}
	got, err := m.Load(ctx, owner)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	intent, _ := docstore.AsMap(got["intent"])
	if intent["urgency"] != 7.0 {
		t.Fatalf("urgency mismatch: %#v", got)
	}
	stats, _ := docstore.AsMap(got["stats"])
	if stats["drillsCount"] != 2.0 {
		t.Fatalf("increment mismatch: %#v", got)
	}
	if !reflect.DeepEqual(got["log"], []any{"y", "z"}) {
		t.Fatalf("capped union mismatch: %#v", got["log"])
	}
	if _, ok := progress.ParseTime(got["updatedAt"]); !ok {
		t.Fatalf("updatedAt not a timestamp: %#v", got["updatedAt"])
	}
}

func TestMapErrorRedisNil(t *testing.T) {
	if !errors.Is(mapError("op", goredis.Nil), docstore.ErrNotFound) {
		t.Fatalf("redis.Nil should map to not found")
	}
	if !progress.IsCode(mapError("op", goredis.TxFailedErr), progress.CodeConflict) {
		t.Fatalf("tx failure should map to conflict")
	}
}
