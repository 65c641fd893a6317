package history

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/progressfacts/internal/data/docstore"
	types "github.com/yungbote/progressfacts/internal/domain/history"
	"github.com/yungbote/progressfacts/internal/platform/dbctx"
	"github.com/yungbote/progressfacts/internal/platform/logger"
)

// DefaultLimit bounds assessment history reads.
const DefaultLimit = 50

// Reader reads the per-event history of one owner. Lookups that find nothing
// return nil without error.
type Reader interface {
	// LatestIntentSnapshot matches by profile id, then by the legacy owner
	// uid column; newest timestamp wins.
	LatestIntentSnapshot(dbc dbctx.Context, ownerID string) (*types.IntentSnapshot, error)
	LatestJourney(dbc dbctx.Context, ownerID string) (*types.JourneyRecord, error)
	// KnowledgeAssessments returns up to limit runs in ascending time order.
	KnowledgeAssessments(dbc dbctx.Context, ownerID string, limit int) ([]types.KnowledgeAssessment, error)
	AbilityAssessments(dbc dbctx.Context, ownerID string, limit int) ([]types.AbilityAssessment, error)
}

type Writer interface {
	AppendIntentSnapshot(dbc dbctx.Context, row *types.IntentSnapshot) error
	AppendJourney(dbc dbctx.Context, row *types.JourneyRecord) error
	AppendKnowledgeAssessment(dbc dbctx.Context, row *types.KnowledgeAssessment) error
	AppendAbilityAssessment(dbc dbctx.Context, row *types.AbilityAssessment) error
}

type Repo interface {
	Reader
	Writer
	// Owners lists every owner with at least one history row.
	Owners(dbc dbctx.Context) ([]string, error)
}

type historyRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRepo(db *gorm.DB, baseLog *logger.Logger) Repo {
	return &historyRepo{
		db:  db,
		log: baseLog.With("repo", "HistoryRepo"),
	}
}

// AutoMigrate creates the history tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(types.Models()...)
}

func (r *historyRepo) LatestIntentSnapshot(dbc dbctx.Context, ownerID string) (*types.IntentSnapshot, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, nil
	}
	t := dbc.DB(r.db)
	lookups := []func(*gorm.DB) *gorm.DB{
		func(q *gorm.DB) *gorm.DB { return q.Where("profile_id = ?", ownerID) },
		func(q *gorm.DB) *gorm.DB { return q.Where("owner_uid = ?", ownerID) },
	}
	for _, scope := range lookups {
		var rows []types.IntentSnapshot
		if err := t.Scopes(scope).Order("timestamp DESC").Limit(1).Find(&rows).Error; err != nil {
			return nil, docstore.MapError("history.latest_snapshot", err)
		}
		if len(rows) > 0 {
			return &rows[0], nil
		}
	}
	return nil, nil
}

func (r *historyRepo) LatestJourney(dbc dbctx.Context, ownerID string) (*types.JourneyRecord, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, nil
	}
	var rows []types.JourneyRecord
	if err := dbc.DB(r.db).
		Where("profile_id = ?", ownerID).
		Order("timestamp DESC").
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, docstore.MapError("history.latest_journey", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *historyRepo) KnowledgeAssessments(dbc dbctx.Context, ownerID string, limit int) ([]types.KnowledgeAssessment, error) {
	var rows []types.KnowledgeAssessment
	if err := r.ascending(dbc, ownerID, limit, &rows); err != nil {
		return nil, docstore.MapError("history.knowledge_assessments", err)
	}
	return rows, nil
}

func (r *historyRepo) AbilityAssessments(dbc dbctx.Context, ownerID string, limit int) ([]types.AbilityAssessment, error) {
	var rows []types.AbilityAssessment
	if err := r.ascending(dbc, ownerID, limit, &rows); err != nil {
		return nil, docstore.MapError("history.ability_assessments", err)
	}
	return rows, nil
}

func (r *historyRepo) ascending(dbc dbctx.Context, ownerID string, limit int, out any) error {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return dbc.DB(r.db).
		Where("profile_id = ?", ownerID).
		Order("timestamp ASC").
		Limit(limit).
		Find(out).Error
}

func (r *historyRepo) AppendIntentSnapshot(dbc dbctx.Context, row *types.IntentSnapshot) error {
	if row == nil {
		return nil
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	stamp(&row.Timestamp)
	return docstore.MapError("history.append_snapshot", dbc.DB(r.db).Create(row).Error)
}

func (r *historyRepo) AppendJourney(dbc dbctx.Context, row *types.JourneyRecord) error {
	if row == nil {
		return nil
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	stamp(&row.Timestamp)
	return docstore.MapError("history.append_journey", dbc.DB(r.db).Create(row).Error)
}

func (r *historyRepo) AppendKnowledgeAssessment(dbc dbctx.Context, row *types.KnowledgeAssessment) error {
	if row == nil {
		return nil
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	stamp(&row.Timestamp)
	return docstore.MapError("history.append_knowledge", dbc.DB(r.db).Create(row).Error)
}

func (r *historyRepo) AppendAbilityAssessment(dbc dbctx.Context, row *types.AbilityAssessment) error {
	if row == nil {
		return nil
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	stamp(&row.Timestamp)
	return docstore.MapError("history.append_ability", dbc.DB(r.db).Create(row).Error)
}

func (r *historyRepo) Owners(dbc dbctx.Context) ([]string, error) {
	t := dbc.DB(r.db)
	seen := map[string]struct{}{}
	collect := func(model any, column string) error {
		var ids []string
		if err := t.Model(model).Distinct(column).Where(column+" IS NOT NULL AND "+column+" <> ''").Pluck(column, &ids).Error; err != nil {
			return err
		}
		for _, id := range ids {
			seen[id] = struct{}{}
		}
		return nil
	}
	if err := collect(&types.IntentSnapshot{}, "profile_id"); err != nil {
		return nil, docstore.MapError("history.owners", err)
	}
	if err := collect(&types.IntentSnapshot{}, "owner_uid"); err != nil {
		return nil, docstore.MapError("history.owners", err)
	}
	if err := collect(&types.JourneyRecord{}, "profile_id"); err != nil {
		return nil, docstore.MapError("history.owners", err)
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func stamp(ts *time.Time) {
	if ts.IsZero() {
		*ts = time.Now().UTC()
	}
}
