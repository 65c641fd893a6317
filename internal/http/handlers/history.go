package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	historyrepo "github.com/yungbote/progressfacts/internal/data/repos/history"
	types "github.com/yungbote/progressfacts/internal/domain/history"
	"github.com/yungbote/progressfacts/internal/http/response"
	"github.com/yungbote/progressfacts/internal/platform/ctxutil"
	"github.com/yungbote/progressfacts/internal/platform/dbctx"
)

// HistoryHandler accepts the per-event rows backfill rebuilds from.
type HistoryHandler struct {
	repo historyrepo.Writer
}

func NewHistoryHandler(repo historyrepo.Writer) *HistoryHandler {
	return &HistoryHandler{repo: repo}
}

type createdBody struct {
	ID uuid.UUID `json:"id"`
}

// owner resolves the row owner or answers 400.
func (h *HistoryHandler) owner(c *gin.Context, dst any) (string, bool) {
	explicit, err := bind(c, dst)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return "", false
	}
	return ctxutil.ResolveOwner(c.Request.Context(), explicit), true
}

func (h *HistoryHandler) created(c *gin.Context, id uuid.UUID, err error) {
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, createdBody{ID: id})
}

func missingOwner(c *gin.Context) {
	response.RespondError(c, http.StatusBadRequest, "validation", errMissingOwner)
}

// POST /api/history/intent-snapshots
func (h *HistoryHandler) IntentSnapshot(c *gin.Context) {
	var row types.IntentSnapshot
	owner, ok := h.owner(c, &row)
	if !ok {
		return
	}
	if row.ProfileID == nil && owner != "" {
		row.ProfileID = &owner
	}
	if row.ProfileID == nil && strings.TrimSpace(row.OwnerUID) == "" {
		missingOwner(c)
		return
	}
	err := h.repo.AppendIntentSnapshot(dbctx.Context{Ctx: c.Request.Context()}, &row)
	h.created(c, row.ID, err)
}

// POST /api/history/journeys
func (h *HistoryHandler) Journey(c *gin.Context) {
	var row types.JourneyRecord
	owner, ok := h.owner(c, &row)
	if !ok {
		return
	}
	if row.ProfileID = firstNonEmpty(row.ProfileID, owner); row.ProfileID == "" {
		missingOwner(c)
		return
	}
	err := h.repo.AppendJourney(dbctx.Context{Ctx: c.Request.Context()}, &row)
	h.created(c, row.ID, err)
}

// POST /api/history/knowledge-assessments
func (h *HistoryHandler) KnowledgeAssessment(c *gin.Context) {
	var row types.KnowledgeAssessment
	owner, ok := h.owner(c, &row)
	if !ok {
		return
	}
	if row.ProfileID = firstNonEmpty(row.ProfileID, owner); row.ProfileID == "" {
		missingOwner(c)
		return
	}
	err := h.repo.AppendKnowledgeAssessment(dbctx.Context{Ctx: c.Request.Context()}, &row)
	h.created(c, row.ID, err)
}

// POST /api/history/ability-assessments
func (h *HistoryHandler) AbilityAssessment(c *gin.Context) {
	var row types.AbilityAssessment
	owner, ok := h.owner(c, &row)
	if !ok {
		return
	}
	if row.ProfileID = firstNonEmpty(row.ProfileID, owner); row.ProfileID == "" {
		missingOwner(c)
		return
	}
	err := h.repo.AppendAbilityAssessment(dbctx.Context{Ctx: c.Request.Context()}, &row)
	h.created(c, row.ID, err)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
