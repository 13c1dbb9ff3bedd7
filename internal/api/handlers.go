package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"clearsky/internal/alerts"
	"clearsky/internal/types"
)

// CreateAlertRequest is the request body for POST /v1/alerts.
type CreateAlertRequest struct {
	Title          string               `json:"title" validate:"required,max=200"`
	Description    string               `json:"description,omitempty" validate:"max=1000"`
	Condition      types.AlertCondition `json:"condition"`
	Location       types.AlertLocation  `json:"location"`
	TargetDateTime time.Time            `json:"targetDateTime" validate:"required"`
	ExpiryDateTime *time.Time           `json:"expiryDateTime,omitempty"`
	IsRepeating    bool                 `json:"isRepeating"`
	RepeatInterval types.RepeatInterval `json:"repeatInterval,omitempty"`
	Sound          *bool                `json:"notificationSound,omitempty"`
	Vibration      *bool                `json:"notificationVibration,omitempty"`
	CustomMessage  string               `json:"customMessage,omitempty" validate:"max=500"`
}

// BatchCreateRequest is the request body for POST /v1/alerts/batch.
type BatchCreateRequest struct {
	Alerts []CreateAlertRequest `json:"alerts" validate:"required,min=1"`
}

// BatchCreateResponse reports per-item outcomes for a batch create.
type BatchCreateResponse struct {
	Created []string               `json:"created"`
	Failed  map[string]ErrorDetail `json:"failed,omitempty"`
}

// UpdateAlertRequest is the request body for PATCH /v1/alerts/{id}.
// Absent fields keep their current values.
type UpdateAlertRequest struct {
	Title          *string               `json:"title,omitempty" validate:"omitempty,max=200"`
	Description    *string               `json:"description,omitempty" validate:"omitempty,max=1000"`
	Condition      *types.AlertCondition `json:"condition,omitempty"`
	Location       *types.AlertLocation  `json:"location,omitempty"`
	TargetDateTime *time.Time            `json:"targetDateTime,omitempty"`
	ExpiryDateTime *time.Time            `json:"expiryDateTime,omitempty"`
	IsRepeating    *bool                 `json:"isRepeating,omitempty"`
	RepeatInterval *types.RepeatInterval `json:"repeatInterval,omitempty"`
	Enabled        *bool                 `json:"isNotificationEnabled,omitempty"`
	Sound          *bool                 `json:"notificationSound,omitempty"`
	Vibration      *bool                 `json:"notificationVibration,omitempty"`
	CustomMessage  *string               `json:"customMessage,omitempty" validate:"omitempty,max=500"`
}

// UpdateStatusRequest is the request body for POST /v1/alerts/{id}/status.
type UpdateStatusRequest struct {
	Status types.AlertStatus `json:"status" validate:"required"`
}

// validateStruct runs the request DTO through the validator and converts
// failures into a 400 AppError with per-field details.
func (s *Server) validateStruct(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		details := make(map[string]any, len(fieldErrs))
		for _, fe := range fieldErrs {
			details[fe.Field()] = fe.Tag()
		}
		return types.NewAppErrorWithDetails(
			types.ErrCodeValidationInvalidPayload,
			"request validation failed",
			err,
			details,
		)
	}
	return types.NewAppError(types.ErrCodeValidationInvalidPayload, "request validation failed", err)
}

func toNewAlertParams(req CreateAlertRequest) alerts.NewAlertParams {
	return alerts.NewAlertParams{
		Title:          req.Title,
		Description:    req.Description,
		Condition:      req.Condition,
		Location:       req.Location,
		TargetDateTime: req.TargetDateTime,
		ExpiryDateTime: req.ExpiryDateTime,
		IsRepeating:    req.IsRepeating,
		RepeatInterval: req.RepeatInterval,
		Sound:          req.Sound,
		Vibration:      req.Vibration,
		CustomMessage:  req.CustomMessage,
	}
}

// handleCreateAlert handles POST /v1/alerts.
func (s *Server) handleCreateAlert(w http.ResponseWriter, r *http.Request) {
	var req CreateAlertRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		Error(w, r, err)
		return
	}
	if err := s.validateStruct(req); err != nil {
		Error(w, r, err)
		return
	}

	alert := alerts.NewAlert(toNewAlertParams(req))
	if err := s.alerts.Create(r.Context(), alert); err != nil {
		Error(w, r, err)
		return
	}

	JSON(w, r, http.StatusCreated, APIResponse{Data: alert})
}

// handleCreateAlertBatch handles POST /v1/alerts/batch. Item failures are
// reported per index; the batch succeeds as long as the request itself is
// well formed.
func (s *Server) handleCreateAlertBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchCreateRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		Error(w, r, err)
		return
	}
	if err := s.validateStruct(req); err != nil {
		Error(w, r, err)
		return
	}

	batch := make([]*types.WeatherAlert, len(req.Alerts))
	for i, item := range req.Alerts {
		batch[i] = alerts.NewAlert(toNewAlertParams(item))
	}

	created, failures, err := s.alerts.CreateBatch(r.Context(), batch)
	if err != nil {
		Error(w, r, err)
		return
	}

	resp := BatchCreateResponse{Created: make([]string, 0, len(created))}
	for _, idx := range created {
		resp.Created = append(resp.Created, batch[idx].ID)
	}
	if len(failures) > 0 {
		resp.Failed = make(map[string]ErrorDetail, len(failures))
		for idx, itemErr := range failures {
			detail := ErrorDetail{
				Code:    string(types.ErrCodeInternalUnexpected),
				Message: "failed to create alert",
			}
			var appErr *types.AppError
			if errors.As(itemErr, &appErr) {
				detail.Code = string(appErr.Code)
				detail.Message = appErr.Message
				detail.Details = appErr.Details
			}
			resp.Failed[strconv.Itoa(idx)] = detail
		}
	}

	JSON(w, r, http.StatusCreated, APIResponse{Data: resp})
}

// handleListAlerts handles GET /v1/alerts with optional status or type
// filters.
func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	var (
		list []*types.WeatherAlert
		err  error
	)
	switch {
	case r.URL.Query().Get("status") != "":
		list, err = s.alerts.ListByStatus(r.Context(), types.AlertStatus(r.URL.Query().Get("status")))
	case r.URL.Query().Get("type") != "":
		list, err = s.alerts.ListByType(r.Context(), types.AlertType(r.URL.Query().Get("type")))
	default:
		list, err = s.alerts.List(r.Context())
	}
	if err != nil {
		Error(w, r, err)
		return
	}
	if list == nil {
		list = []*types.WeatherAlert{}
	}
	JSON(w, r, http.StatusOK, APIResponse{Data: list})
}

// handleGetAlert handles GET /v1/alerts/{id}.
func (s *Server) handleGetAlert(w http.ResponseWriter, r *http.Request) {
	alert, err := s.alerts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, APIResponse{Data: alert})
}

// handleUpdateAlert handles PATCH /v1/alerts/{id}. The alert type is
// re-derived when the condition changes so the pair stays in agreement.
func (s *Server) handleUpdateAlert(w http.ResponseWriter, r *http.Request) {
	var req UpdateAlertRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		Error(w, r, err)
		return
	}
	if err := s.validateStruct(req); err != nil {
		Error(w, r, err)
		return
	}

	alert, err := s.alerts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		Error(w, r, err)
		return
	}

	applyUpdate(alert, req)

	if err := s.alerts.Update(r.Context(), alert); err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, APIResponse{Data: alert})
}

func applyUpdate(alert *types.WeatherAlert, req UpdateAlertRequest) {
	if req.Title != nil {
		alert.Title = *req.Title
	}
	if req.Description != nil {
		alert.Description = *req.Description
	}
	if req.Condition != nil {
		alert.Condition = *req.Condition
		alert.AlertType = req.Condition.AlertType()
	}
	if req.Location != nil {
		alert.Location = *req.Location
	}
	if req.TargetDateTime != nil {
		alert.TargetDateTime = *req.TargetDateTime
	}
	if req.ExpiryDateTime != nil {
		alert.ExpiryDateTime = req.ExpiryDateTime
	}
	if req.IsRepeating != nil {
		alert.IsRepeating = *req.IsRepeating
	}
	if req.RepeatInterval != nil {
		alert.RepeatInterval = *req.RepeatInterval
	}
	if req.Enabled != nil {
		alert.NotificationEnabled = *req.Enabled
	}
	if req.Sound != nil {
		alert.NotificationSound = *req.Sound
	}
	if req.Vibration != nil {
		alert.NotificationVibrate = *req.Vibration
	}
	if req.CustomMessage != nil {
		alert.CustomMessage = *req.CustomMessage
	}
	alert.UpdatedAt = time.Now().UTC()
}

// handleDeleteAlert handles DELETE /v1/alerts/{id}. Deleting an absent
// alert succeeds.
func (s *Server) handleDeleteAlert(w http.ResponseWriter, r *http.Request) {
	if err := s.alerts.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDeleteAlerts handles DELETE /v1/alerts, optionally scoped to a
// status via the status query parameter.
func (s *Server) handleDeleteAlerts(w http.ResponseWriter, r *http.Request) {
	var (
		deleted int64
		err     error
	)
	if status := r.URL.Query().Get("status"); status != "" {
		deleted, err = s.alerts.DeleteByStatus(r.Context(), types.AlertStatus(status))
	} else {
		deleted, err = s.alerts.DeleteAll(r.Context())
	}
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, APIResponse{Data: map[string]int64{"deleted": deleted}})
}

// handleUpdateAlertStatus handles POST /v1/alerts/{id}/status.
func (s *Server) handleUpdateAlertStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		Error(w, r, err)
		return
	}
	if err := s.validateStruct(req); err != nil {
		Error(w, r, err)
		return
	}

	id := chi.URLParam(r, "id")
	if err := s.alerts.UpdateStatus(r.Context(), id, req.Status); err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, APIResponse{Data: map[string]string{
		"id":     id,
		"status": string(req.Status),
	}})
}

// handleAlertCounts handles GET /v1/alerts/counts.
func (s *Server) handleAlertCounts(w http.ResponseWriter, r *http.Request) {
	active, triggered, err := s.alerts.Counts(r.Context())
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, APIResponse{Data: map[string]int{
		"active":    active,
		"triggered": triggered,
	}})
}

// handleExportAlerts handles GET /v1/alerts/export, streaming the archive
// as gzip-compressed JSONL.
func (s *Server) handleExportAlerts(w http.ResponseWriter, r *http.Request) {
	filename := "alerts-" + time.Now().UTC().Format("20060102T150405Z") + ".jsonl.gz"
	w.Header().Set("Content-Type", "application/gzip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	n, err := s.exporter.Export(r.Context(), w)
	if err != nil {
		// Headers are already sent; the truncated stream is the only
		// signal the client gets. Log the failure for operators.
		s.logger.ErrorContext(r.Context(), "alert export failed", "error", err)
		return
	}
	s.logger.InfoContext(r.Context(), "alert export complete", "count", n)
}

// handleRunCheck handles POST /v1/checks/run, executing one check pass
// immediately and returning its summary.
func (s *Server) handleRunCheck(w http.ResponseWriter, r *http.Request) {
	result, err := s.checker.Run(r.Context(), time.Now().UTC())
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, APIResponse{Data: result})
}
