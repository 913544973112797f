package handlers

import (
	"net/http"

	"github.com/strideteam/competition-engine/services"
)

type SchedulerHandler struct {
	scheduler *services.SchedulerService
}

func NewSchedulerHandler(scheduler *services.SchedulerService) *SchedulerHandler {
	return &SchedulerHandler{scheduler: scheduler}
}

// TriggerRun запускает один проход планировщика синхронно и возвращает его
// итог. Эндпоинт дёргает внешний cron; повторный вызов безопасен.
func (h *SchedulerHandler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	summary, err := h.scheduler.Run(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{
		"success":     true,
		"run_id":      summary.RunID,
		"activated":   summary.Activated,
		"completed":   summary.Completed,
		"forceLocked": summary.ForceLocked,
		"counts": jsonResponse{
			"upcoming":  summary.Counts.Upcoming,
			"active":    summary.Counts.Active,
			"completed": summary.Counts.Completed,
		},
	}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
