package app

import (
	httpH "github.com/yungbote/progressfacts/internal/http/handlers"
	"github.com/yungbote/progressfacts/internal/platform/logger"
)

type Handlers struct {
	Health   *httpH.HealthHandler
	Progress *httpH.ProgressHandler
	Journal  *httpH.JournalHandler
	History  *httpH.HistoryHandler
}

func wireHandlers(log *logger.Logger, svc Services, st *Storage) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:   httpH.NewHealthHandler(svc.Throttle.Suppressed),
		Progress: httpH.NewProgressHandler(svc.Facts, svc.View),
		Journal:  httpH.NewJournalHandler(svc.Journal),
		History:  httpH.NewHistoryHandler(st.History),
	}
}
