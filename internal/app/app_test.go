package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"

	"github.com/yungbote/progressfacts/internal/data/docstore"
	"github.com/yungbote/progressfacts/internal/domain/progress"
	"github.com/yungbote/progressfacts/internal/observability"
	"github.com/yungbote/progressfacts/internal/platform/logger"
	"github.com/yungbote/progressfacts/internal/services"
)

func newTestApp(t *testing.T) (*gin.Engine, *Storage, Services) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.Nop()
	cfg := testConfig()
	cfg.MirrorDriver = "store"
	cfg.Throttle.MinSpacingMS = 0
	cfg.Throttle.DedupeWindowMS = 0

	metrics := observability.NewMetrics(observability.MetricsConfig{Enabled: true})
	st, err := resolveStorage(log, cfg, storeOptions(metrics)...)
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	m, _, err := resolveMirror(log, cfg, st.Store)
	if err != nil {
		t.Fatalf("mirror: %v", err)
	}
	svc := wireServices(log, cfg, st, m, metrics)
	t.Cleanup(func() {
		svc.Close()
		st.Close()
	})
	router := wireRouter(log, cfg, metrics, wireHandlers(log, svc, st), wireMiddleware(log, cfg))
	return router, st, svc
}

func call(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestWiredRecorderWritesAggregateAndMirror(t *testing.T) {
	r, st, _ := newTestApp(t)
	rec := call(t, r, http.MethodPost, "/api/progress/intent?owner=u1", `{"tags":["calm","focus"],"urgency":7,"lang":"en"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	doc, err := st.Store.Get(context.Background(), progress.CollectionFacts, "u1")
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	intent, ok := docstore.AsMap(doc[progress.BlockIntent])
	if !ok || intent["urgency"] != float64(7) {
		t.Fatalf("intent not written: %#v", doc[progress.BlockIntent])
	}
	profile, err := st.Store.Get(context.Background(), progress.CollectionProfiles, "u1")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if _, ok := docstore.AsMap(profile["progressFacts"]); !ok {
		t.Fatalf("store mirror not written: %#v", profile)
	}
}

func TestWiredBackfillFromHistory(t *testing.T) {
	r, _, _ := newTestApp(t)
	rec := call(t, r, http.MethodPost, "/api/history/intent-snapshots?owner=u2",
		`{"tags":["calm"],"urgency":6,"lang":"en","stage":"t2","timestamp":"2026-03-01T10:00:00Z"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("snapshot: %d %s", rec.Code, rec.Body.String())
	}
	rec = call(t, r, http.MethodGet, "/api/progress?owner=u2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard: %d %s", rec.Code, rec.Body.String())
	}
	var view services.ProgressView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.Backfill == "" || view.Fact.Intent == nil || view.Fact.Intent.Urgency != 6 {
		t.Fatalf("expected backfilled intent, got %+v", view)
	}
	if !view.Unlocks.Scope || !view.Unlocks.Knowledge {
		t.Fatalf("unlocks = %+v", view.Unlocks)
	}
}

func TestWiredHealthReportsSuppression(t *testing.T) {
	r, _, svc := newTestApp(t)
	rec := call(t, r, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || !bytes.Contains(rec.Body.Bytes(), []byte(`"writesSuppressed":false`)) {
		t.Fatalf("healthz: %d %s", rec.Code, rec.Body.String())
	}
	if svc.Throttle.Suppressed() {
		t.Fatalf("fresh throttle must not be suppressed")
	}
}
