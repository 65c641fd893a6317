package history

import (
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	types "github.com/yungbote/progressfacts/internal/domain/history"
	"github.com/yungbote/progressfacts/internal/platform/dbctx"
)

// MemoryRepo keeps history rows in process. It backs the memory driver and tests.
type MemoryRepo struct {
	mu        sync.RWMutex
	snapshots []types.IntentSnapshot
	journeys  []types.JourneyRecord
	knowledge []types.KnowledgeAssessment
	ability   []types.AbilityAssessment
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

var _ Repo = (*MemoryRepo)(nil)

func (m *MemoryRepo) LatestIntentSnapshot(_ dbctx.Context, ownerID string) (*types.IntentSnapshot, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	matchers := []func(types.IntentSnapshot) bool{
		func(s types.IntentSnapshot) bool { return s.ProfileID != nil && *s.ProfileID == ownerID },
		func(s types.IntentSnapshot) bool { return s.OwnerUID == ownerID },
	}
	for _, match := range matchers {
		var best *types.IntentSnapshot
		for i := range m.snapshots {
			s := m.snapshots[i]
			if !match(s) {
				continue
			}
			if best == nil || s.Timestamp.After(best.Timestamp) {
				cp := s
				best = &cp
			}
		}
		if best != nil {
			return best, nil
		}
	}
	return nil, nil
}

func (m *MemoryRepo) LatestJourney(_ dbctx.Context, ownerID string) (*types.JourneyRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best *types.JourneyRecord
	for i := range m.journeys {
		j := m.journeys[i]
		if j.ProfileID != ownerID {
			continue
		}
		if best == nil || j.Timestamp.After(best.Timestamp) {
			cp := j
			best = &cp
		}
	}
	return best, nil
}

func (m *MemoryRepo) KnowledgeAssessments(_ dbctx.Context, ownerID string, limit int) ([]types.KnowledgeAssessment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []types.KnowledgeAssessment
	for _, a := range m.knowledge {
		if a.ProfileID == ownerID {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return head(out, limit), nil
}

func (m *MemoryRepo) AbilityAssessments(_ dbctx.Context, ownerID string, limit int) ([]types.AbilityAssessment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []types.AbilityAssessment
	for _, a := range m.ability {
		if a.ProfileID == ownerID {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return head(out, limit), nil
}

func head[T any](in []T, limit int) []T {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if len(in) > limit {
		return in[:limit]
	}
	return in
}

func (m *MemoryRepo) AppendIntentSnapshot(_ dbctx.Context, row *types.IntentSnapshot) error {
	if row == nil {
		return nil
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	stamp(&row.Timestamp)
	m.mu.Lock()
	m.snapshots = append(m.snapshots, *row)
	m.mu.Unlock()
	return nil
}

func (m *MemoryRepo) AppendJourney(_ dbctx.Context, row *types.JourneyRecord) error {
	if row == nil {
		return nil
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	stamp(&row.Timestamp)
	m.mu.Lock()
	m.journeys = append(m.journeys, *row)
	m.mu.Unlock()
	return nil
}

func (m *MemoryRepo) AppendKnowledgeAssessment(_ dbctx.Context, row *types.KnowledgeAssessment) error {
	if row == nil {
		return nil
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	stamp(&row.Timestamp)
	m.mu.Lock()
	m.knowledge = append(m.knowledge, *row)
	m.mu.Unlock()
	return nil
}

func (m *MemoryRepo) AppendAbilityAssessment(_ dbctx.Context, row *types.AbilityAssessment) error {
	if row == nil {
		return nil
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	stamp(&row.Timestamp)
	m.mu.Lock()
	m.ability = append(m.ability, *row)
	m.mu.Unlock()
	return nil
}

func (m *MemoryRepo) Owners(_ dbctx.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := map[string]struct{}{}
	for _, s := range m.snapshots {
		if s.ProfileID != nil && *s.ProfileID != "" {
			seen[*s.ProfileID] = struct{}{}
		}
		if s.OwnerUID != "" {
			seen[s.OwnerUID] = struct{}{}
		}
	}
	for _, j := range m.journeys {
		if j.ProfileID != "" {
			seen[j.ProfileID] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}
