package handlers

import (
	"net/http"
	"strconv"

	"github.com/strideteam/competition-engine/models"
	"github.com/strideteam/competition-engine/repositories"
	"github.com/strideteam/competition-engine/services"
)

type CompetitionHandler struct {
	competitions *services.CompetitionService
}

func NewCompetitionHandler(competitions *services.CompetitionService) *CompetitionHandler {
	return &CompetitionHandler{competitions: competitions}
}

func (h *CompetitionHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := repositories.ListCompetitionsFilter{Limit: 50}

	if rawStatus := r.URL.Query().Get("status"); rawStatus != "" {
		status := models.CompetitionStatus(rawStatus)
		switch status {
		case models.StatusUpcoming, models.StatusActive, models.StatusCompleted:
			filter.Status = &status
		default:
			errorResponse(w, r, http.StatusBadRequest, "invalid status filter")
			return
		}
	}
	if rawLimit := r.URL.Query().Get("limit"); rawLimit != "" {
		limit, err := strconv.Atoi(rawLimit)
		if err != nil || limit < 1 || limit > 200 {
			errorResponse(w, r, http.StatusBadRequest, "limit must be between 1 and 200")
			return
		}
		filter.Limit = limit
	}
	if rawOffset := r.URL.Query().Get("offset"); rawOffset != "" {
		offset, err := strconv.Atoi(rawOffset)
		if err != nil || offset < 0 {
			errorResponse(w, r, http.StatusBadRequest, "offset must not be negative")
			return
		}
		filter.Offset = offset
	}

	competitions, err := h.competitions.List(r.Context(), filter)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"competitions": competitions}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *CompetitionHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := readIDParam(r, "competitionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	comp, err := h.competitions.GetByID(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"competition": comp}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *CompetitionHandler) ListPayouts(w http.ResponseWriter, r *http.Request) {
	id, err := readIDParam(r, "competitionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	payouts, err := h.competitions.ListPayouts(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"payouts": payouts}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
