package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/progressfacts/internal/domain/progress"
	"github.com/yungbote/progressfacts/internal/progress/journal"
)

type JournalHandler struct {
	journal *journal.Service
}

func NewJournalHandler(j *journal.Service) *JournalHandler {
	return &JournalHandler{journal: j}
}

type deleteEntryRequest struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

type habitTickRequest struct {
	Habit string `json:"habit"`
}

func (h *JournalHandler) AppendEntry() gin.HandlerFunc {
	return recordJSON(h.journal.AppendRecentEntry)
}

func (h *JournalHandler) DeleteEntry() gin.HandlerFunc {
	return recordJSON(func(ctx context.Context, owner string, in deleteEntryRequest) progress.Result {
		return h.journal.DeleteRecentEntry(ctx, owner, in.Text, in.Timestamp)
	})
}

func (h *JournalHandler) Activity() gin.HandlerFunc {
	return recordJSON(h.journal.AppendActivityEvent)
}

func (h *JournalHandler) HabitTick() gin.HandlerFunc {
	return recordJSON(func(ctx context.Context, owner string, in habitTickRequest) progress.Result {
		return h.journal.RecordHabitTick(ctx, owner, in.Habit)
	})
}
