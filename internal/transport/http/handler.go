package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"install-pulse-service/internal/entity"
	"install-pulse-service/internal/report"
	"install-pulse-service/internal/repository/postgresql"
	"install-pulse-service/internal/service"
)

const dateLayout = "2006-01-02"

type Handler struct {
	execSvc             *service.ExecutionService
	reportSvc           *service.ReportService
	stallThresholdHours float64
}

func NewHandler(execSvc *service.ExecutionService, reportSvc *service.ReportService, stallThresholdHours float64) *Handler {
	return &Handler{
		execSvc:             execSvc,
		reportSvc:           reportSvc,
		stallThresholdHours: stallThresholdHours,
	}
}

type evidenceDTO struct {
	PhotoBase64  string   `json:"photo_base64"`
	GPSLat       *float64 `json:"gps_lat"`
	GPSLong      *float64 `json:"gps_long"`
	GPSAccuracyM *float64 `json:"gps_accuracy"`
}

func (d *evidenceDTO) toEntity() *entity.Evidence {
	if d == nil {
		return nil
	}
	return &entity.Evidence{
		PhotoBase64:  d.PhotoBase64,
		GPSLat:       d.GPSLat,
		GPSLong:      d.GPSLong,
		GPSAccuracyM: d.GPSAccuracyM,
	}
}

type checkinDTO struct {
	JobID       string       `json:"job_id"`
	ItemIndex   int          `json:"item_index"`
	InstallerID string       `json:"installer_id"`
	Evidence    *evidenceDTO `json:"evidence"`
}

type pauseDTO struct {
	Reason string `json:"reason"`
}

type checkoutDTO struct {
	Evidence    *evidenceDTO `json:"evidence"`
	InstalledM2 float64      `json:"installed_m2"`
	Notes       string       `json:"notes,omitempty"`
}

// CheckIn godoc
// @Summary Check in on a job item
// @Description Opens an execution for the item. Requires photo and GPS evidence; rejected if the item already has an open execution.
// @Tags executions
// @Accept json
// @Produce json
// @Param request body checkinDTO true "check-in payload"
// @Success 201 {object} entity.ItemExecution
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Failure 409 {object} apiError
// @Router /executions/checkin [post]
func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	var dto checkinDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	jobID, err := uuid.Parse(dto.JobID)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid job_id")
		return
	}
	installerID, err := uuid.Parse(dto.InstallerID)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid installer_id")
		return
	}

	exec, err := h.execSvc.CheckIn(r.Context(), service.CheckInRequest{
		JobID:       jobID,
		ItemIndex:   dto.ItemIndex,
		InstallerID: installerID,
		Evidence:    dto.Evidence.toEntity(),
	})
	if err != nil {
		writeDomainErr(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, exec)
}

// Pause godoc
// @Summary Pause an in-progress execution
// @Tags executions
// @Accept json
// @Produce json
// @Param id path string true "execution id (uuid)"
// @Param request body pauseDTO true "pause reason code"
// @Success 200 {object} entity.ItemExecution
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Failure 409 {object} apiError
// @Router /executions/{id}/pause [post]
func (h *Handler) Pause(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var dto pauseDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	exec, err := h.execSvc.Pause(r.Context(), id, entity.PauseReason(dto.Reason))
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exec)
}

// Resume godoc
// @Summary Resume a paused execution
// @Tags executions
// @Produce json
// @Param id path string true "execution id (uuid)"
// @Success 200 {object} entity.ItemExecution
// @Failure 404 {object} apiError
// @Failure 409 {object} apiError
// @Router /executions/{id}/resume [post]
func (h *Handler) Resume(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	exec, err := h.execSvc.Resume(r.Context(), id)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exec)
}

// CheckOut godoc
// @Summary Check out of an execution
// @Description Completes the execution with closing evidence and the installed area. A still-open pause is force-closed at the checkout timestamp.
// @Tags executions
// @Accept json
// @Produce json
// @Param id path string true "execution id (uuid)"
// @Param request body checkoutDTO true "check-out payload"
// @Success 200 {object} entity.ItemExecution
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Failure 409 {object} apiError
// @Router /executions/{id}/checkout [post]
func (h *Handler) CheckOut(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var dto checkoutDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	exec, err := h.execSvc.CheckOut(r.Context(), id, service.CheckOutRequest{
		Evidence:    dto.Evidence.toEntity(),
		InstalledM2: dto.InstalledM2,
		Notes:       dto.Notes,
	})
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exec)
}

// GetExecution godoc
// @Summary Get one execution with its pause ledger and live durations
// @Tags executions
// @Produce json
// @Param id path string true "execution id (uuid)"
// @Success 200 {object} service.ExecutionView
// @Failure 404 {object} apiError
// @Router /executions/{id} [get]
func (h *Handler) GetExecution(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	view, err := h.execSvc.Get(r.Context(), id)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ListExecutions godoc
// @Summary List executions
// @Description Optional filters: job_id, installer_id, status. Durations are computed as of the request time.
// @Tags executions
// @Produce json
// @Param job_id query string false "job id (uuid)"
// @Param installer_id query string false "installer id (uuid)"
// @Param status query string false "execution status"
// @Success 200 {array} service.ExecutionView
// @Failure 400 {object} apiError
// @Router /executions [get]
func (h *Handler) ListExecutions(w http.ResponseWriter, r *http.Request) {
	var f service.ExecutionFilter

	if raw := r.URL.Query().Get("job_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeErr(w, http.StatusBadRequest, "invalid job_id")
			return
		}
		f.JobID = &id
	}
	if raw := r.URL.Query().Get("installer_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeErr(w, http.StatusBadRequest, "invalid installer_id")
			return
		}
		f.InstallerID = &id
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, ok := entity.ParseStatus(raw)
		if !ok {
			writeErr(w, http.StatusBadRequest, "invalid status")
			return
		}
		f.Status = &status
	}

	views, err := h.execSvc.List(r.Context(), f)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// ListStalled godoc
// @Summary List stalled executions
// @Description Active executions with no transition for threshold_hours (default from config).
// @Tags executions
// @Produce json
// @Param threshold_hours query number false "inactivity threshold in hours"
// @Success 200 {array} service.StalledExecution
// @Failure 400 {object} apiError
// @Router /executions/stalled [get]
func (h *Handler) ListStalled(w http.ResponseWriter, r *http.Request) {
	threshold := h.stallThresholdHours
	if raw := r.URL.Query().Get("threshold_hours"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 {
			writeErr(w, http.StatusBadRequest, "invalid threshold_hours")
			return
		}
		threshold = v
	}

	stalled, err := h.execSvc.Stalled(r.Context(), threshold)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stalled)
}

// ProductivityReport godoc
// @Summary Productivity report
// @Description Summaries by installer, job, product family and item. Date bounds are inclusive whole days in local time.
// @Tags reports
// @Produce json
// @Param date_from query string false "start date (YYYY-MM-DD)"
// @Param date_to query string false "end date (YYYY-MM-DD)"
// @Param installer_id query string false "installer id (uuid)"
// @Param job_id query string false "job id (uuid)"
// @Param family query string false "product family name, or 'unclassified'"
// @Success 200 {object} report.Report
// @Failure 400 {object} apiError
// @Router /reports/productivity [get]
func (h *Handler) ProductivityReport(w http.ResponseWriter, r *http.Request) {
	var f report.Filter

	if raw := r.URL.Query().Get("date_from"); raw != "" {
		t, err := time.ParseInLocation(dateLayout, raw, time.Local)
		if err != nil {
			writeErr(w, http.StatusBadRequest, "invalid date_from, expected YYYY-MM-DD")
			return
		}
		f.DateFrom = &t
	}
	if raw := r.URL.Query().Get("date_to"); raw != "" {
		t, err := time.ParseInLocation(dateLayout, raw, time.Local)
		if err != nil {
			writeErr(w, http.StatusBadRequest, "invalid date_to, expected YYYY-MM-DD")
			return
		}
		f.DateTo = &t
	}
	if raw := r.URL.Query().Get("installer_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeErr(w, http.StatusBadRequest, "invalid installer_id")
			return
		}
		f.InstallerID = &id
	}
	if raw := r.URL.Query().Get("job_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeErr(w, http.StatusBadRequest, "invalid job_id")
			return
		}
		f.JobID = &id
	}
	f.Family = r.URL.Query().Get("family")

	rep, err := h.reportSvc.Productivity(r.Context(), f)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

// writeDomainErr maps each well-known failure to a specific, actionable
// message. Nothing in the domain taxonomy surfaces as a generic 500.
func writeDomainErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrEvidenceMissing):
		writeErr(w, http.StatusBadRequest, "capture a photo and GPS location before continuing")
	case errors.Is(err, service.ErrInvalidArea):
		writeErr(w, http.StatusBadRequest, "installed area must be zero or a positive number")
	case errors.Is(err, service.ErrUnknownPauseReason):
		writeErr(w, http.StatusBadRequest, "select a valid pause reason")
	case errors.Is(err, service.ErrConcurrentModification):
		writeErr(w, http.StatusConflict, "this item was changed by someone else - reload and try again")
	case errors.Is(err, service.ErrInvalidTransition):
		writeErr(w, http.StatusConflict, err.Error())
	case errors.Is(err, postgresql.ErrNotFound):
		writeErr(w, http.StatusNotFound, "not found")
	default:
		writeErr(w, http.StatusInternalServerError, "internal error")
	}
}
