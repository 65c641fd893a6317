package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/progressfacts/internal/domain/progress"
	"github.com/yungbote/progressfacts/internal/http/response"
	"github.com/yungbote/progressfacts/internal/progress/facts"
	"github.com/yungbote/progressfacts/internal/services"
)

type ProgressHandler struct {
	facts *facts.Service
	view  services.ProgressViewService
}

func NewProgressHandler(f *facts.Service, view services.ProgressViewService) *ProgressHandler {
	return &ProgressHandler{facts: f, view: view}
}

type practiceEventRequest struct {
	Type  progress.PracticeType `json:"type"`
	Count int                   `json:"count"`
}

type practiceSessionRequest struct {
	Type        progress.PracticeType `json:"type"`
	StartedAt   time.Time             `json:"startedAt"`
	DurationSec float64               `json:"durationSec"`
}

type omniRequest struct {
	Patch map[string]any `json:"patch"`
}

type abilityPracticeRequest struct {
	Exercise string `json:"exercise"`
}

func (h *ProgressHandler) Intent() gin.HandlerFunc     { return recordJSON(h.facts.RecordIntent) }
func (h *ProgressHandler) Motivation() gin.HandlerFunc { return recordJSON(h.facts.RecordMotivation) }
func (h *ProgressHandler) Evaluation() gin.HandlerFunc { return recordJSON(h.facts.RecordEvaluation) }
func (h *ProgressHandler) Recommendation() gin.HandlerFunc {
	return recordJSON(h.facts.RecordRecommendation)
}
func (h *ProgressHandler) Quests() gin.HandlerFunc { return recordJSON(h.facts.RecordQuests) }
func (h *ProgressHandler) QuestComplete() gin.HandlerFunc {
	return recordEmpty(h.facts.RecordQuestCompletion)
}
func (h *ProgressHandler) KnowledgeQuiz() gin.HandlerFunc {
	return recordJSON(h.facts.RecordKnowledgeQuiz)
}
func (h *ProgressHandler) Lessons() gin.HandlerFunc {
	return recordJSON(h.facts.RecordKunoLessonProgress)
}
func (h *ProgressHandler) QuickAssessment() gin.HandlerFunc {
	return recordJSON(h.facts.RecordQuickAssessment)
}
func (h *ProgressHandler) AbilityAssessment() gin.HandlerFunc {
	return recordJSON(h.facts.RecordAbilityAssessment)
}
func (h *ProgressHandler) Consistency() gin.HandlerFunc {
	return recordEmpty(h.facts.RecordConsistencyPing)
}
func (h *ProgressHandler) Checkin() gin.HandlerFunc    { return recordJSON(h.facts.RecordDailyCheckin) }
func (h *ProgressHandler) TextSignal() gin.HandlerFunc { return recordJSON(h.facts.RecordTextSignal) }
func (h *ProgressHandler) Onboarding() gin.HandlerFunc {
	return recordJSON(h.facts.RecordOnboardingEvent)
}

func (h *ProgressHandler) PracticeEvent() gin.HandlerFunc {
	return recordJSON(func(ctx context.Context, owner string, in practiceEventRequest) progress.Result {
		return h.facts.RecordPracticeEvent(ctx, owner, in.Type, in.Count)
	})
}

func (h *ProgressHandler) PracticeSession() gin.HandlerFunc {
	return recordJSON(func(ctx context.Context, owner string, in practiceSessionRequest) progress.Result {
		return h.facts.RecordPracticeSession(ctx, owner, in.Type, in.StartedAt, in.DurationSec)
	})
}

func (h *ProgressHandler) Omni() gin.HandlerFunc {
	return recordJSON(func(ctx context.Context, owner string, in omniRequest) progress.Result {
		return h.facts.RecordOmniPatch(ctx, owner, in.Patch)
	})
}

func (h *ProgressHandler) AbilityPractice() gin.HandlerFunc {
	return recordJSON(func(ctx context.Context, owner string, in abilityPracticeRequest) progress.Result {
		return h.facts.RecordAbilityPractice(ctx, owner, in.Exercise)
	})
}

// GET /api/progress
func (h *ProgressHandler) Dashboard(c *gin.Context) {
	view, err := h.view.Get(c.Request.Context(), strings.TrimSpace(c.Query("owner")))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, view)
}

// POST /api/progress/backfill
func (h *ProgressHandler) Backfill(c *gin.Context) {
	owner, err := bind(c, nil)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	rep, err := h.view.Backfill(c.Request.Context(), owner)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, rep)
}
