package controllers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"claystudio/internal/delivery/http/helpers"
	"claystudio/internal/delivery/http/middleware"
	"claystudio/internal/domain"
)

type RegistrationController struct {
	Logger  *slog.Logger
	Service domain.RegistrationService
}

func NewRegistrationController(logger *slog.Logger, svc domain.RegistrationService) *RegistrationController {
	return &RegistrationController{
		Logger:  logger,
		Service: svc,
	}
}

// RegistrationSuccessResponse is the success envelope for endpoints returning a single registration.
type RegistrationSuccessResponse struct {
	Data  *domain.Registration `json:"data"`
	Error *helpers.APIError    `json:"error"`
}

// RegisterRequest is the request body for POST /events/{eventID}/registrations.
type RegisterRequest struct {
	SeatsReserved int `json:"seats_reserved"`
}

// Validate implements helpers.Validator.
func (r *RegisterRequest) Validate() []string {
	if r.SeatsReserved < 1 {
		return []string{"seats_reserved must be at least 1"}
	}
	return nil
}

// Register godoc
// @Summary Register the current user for a workshop
// @Description Creates a PENDING registration for the authenticated user. Seats are only taken once the registration is PAID or CONFIRMED. Idempotent: returns 201 when a new registration is created, 200 with the existing active registration otherwise.
// @Tags registrations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID (UUID)"
// @Param body body controllers.RegisterRequest true "Seats to reserve"
// @Success 200 {object} controllers.RegistrationSuccessResponse "Already registered"
// @Success 201 {object} controllers.RegistrationSuccessResponse "New registration created"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: insufficient_seats or conflict"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID}/registrations [post]
func (c *RegistrationController) Register(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathUUID(w, r, "eventID")
	if !ok {
		return
	}
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	var req RegisterRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}

	reg, created, err := c.Service.Register(r.Context(), eventID, userID, req.SeatsReserved)
	if err != nil {
		c.writeError(w, r, err, "event not found")
		return
	}
	if created {
		helpers.WriteJSONSuccess(w, http.StatusCreated, reg)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, reg)
}

// GetRegistration godoc
// @Summary Get a registration
// @Tags registrations
// @Produce json
// @Security BearerAuth
// @Param registrationID path string true "Registration ID (UUID)"
// @Success 200 {object} controllers.RegistrationSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /registrations/{registrationID} [get]
func (c *RegistrationController) GetRegistration(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "registrationID")
	if !ok {
		return
	}
	reg, err := c.Service.GetRegistration(r.Context(), id)
	if err != nil {
		c.writeError(w, r, err, "registration not found")
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, reg)
}

// TransitionStatusRequest is the request body for PATCH /admin/registrations/{registrationID}/status.
type TransitionStatusRequest struct {
	Status string `json:"status"`
}

// Validate implements helpers.Validator. It normalizes Status to its canonical upper-case form.
func (r *TransitionStatusRequest) Validate() []string {
	if strings.TrimSpace(r.Status) == "" {
		return []string{"status is required"}
	}
	s, err := domain.ParseRegistrationStatus(r.Status)
	if err != nil {
		return []string{"status must be one of PENDING, APPROVED, REJECTED, PAID, CONFIRMED, CANCELLED"}
	}
	r.Status = string(s)
	return nil
}

// TransitionStatus godoc
// @Summary Move a registration to another status
// @Description Applies the lifecycle transition, backfilling or clearing stage timestamps, and adjusts the event's available seats in the same transaction. Setting the current status is a no-op.
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param registrationID path string true "Registration ID (UUID)"
// @Param body body controllers.TransitionStatusRequest true "Target status"
// @Success 200 {object} controllers.RegistrationSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: insufficient_seats or conflict"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /admin/registrations/{registrationID}/status [patch]
func (c *RegistrationController) TransitionStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "registrationID")
	if !ok {
		return
	}
	var req TransitionStatusRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	reg, err := c.Service.TransitionStatus(r.Context(), id, domain.RegistrationStatus(req.Status))
	if err != nil {
		c.writeError(w, r, err, "registration not found")
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, reg)
}

// EditRegistrationRequest is the request body for PATCH /admin/registrations/{registrationID}.
// All fields are required.
type EditRegistrationRequest struct {
	Price         *float64 `json:"price"`
	Discount      *float64 `json:"discount"`
	SeatsReserved *int     `json:"seats_reserved"`
}

// Validate implements helpers.Validator.
func (r *EditRegistrationRequest) Validate() []string {
	var errs []string
	if r.Price == nil {
		errs = append(errs, "price is required")
	} else if *r.Price < 0 {
		errs = append(errs, "price must not be negative")
	}
	if r.Discount == nil {
		errs = append(errs, "discount is required")
	} else if *r.Discount < 0 {
		errs = append(errs, "discount must not be negative")
	}
	if r.SeatsReserved == nil {
		errs = append(errs, "seats_reserved is required")
	} else if *r.SeatsReserved < 1 {
		errs = append(errs, "seats_reserved must be at least 1")
	}
	return errs
}

// EditRegistrationDetails godoc
// @Summary Edit price, discount and seat count of a registration
// @Description When the registration holds seats (PAID or CONFIRMED) the seat difference is applied to the event; growing requires enough available seats.
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param registrationID path string true "Registration ID (UUID)"
// @Param body body controllers.EditRegistrationRequest true "New details"
// @Success 200 {object} controllers.RegistrationSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: insufficient_seats or conflict"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /admin/registrations/{registrationID} [patch]
func (c *RegistrationController) EditRegistrationDetails(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "registrationID")
	if !ok {
		return
	}
	var req EditRegistrationRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	reg, err := c.Service.EditRegistrationDetails(r.Context(), id, *req.Price, *req.Discount, *req.SeatsReserved)
	if err != nil {
		c.writeError(w, r, err, "registration not found")
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, reg)
}

// UpdatePriceRequest is the request body for PATCH /admin/registrations/{registrationID}/price.
type UpdatePriceRequest struct {
	Price *float64 `json:"price"`
}

// Validate implements helpers.Validator.
func (r *UpdatePriceRequest) Validate() []string {
	if r.Price == nil {
		return []string{"price is required"}
	}
	if *r.Price < 0 {
		return []string{"price must not be negative"}
	}
	return nil
}

// UpdateRegistrationPrice godoc
// @Summary Change the price of a registration
// @Description Price-only update; seats are not affected.
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param registrationID path string true "Registration ID (UUID)"
// @Param body body controllers.UpdatePriceRequest true "New price"
// @Success 200 {object} controllers.RegistrationSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /admin/registrations/{registrationID}/price [patch]
func (c *RegistrationController) UpdateRegistrationPrice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "registrationID")
	if !ok {
		return
	}
	var req UpdatePriceRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	reg, err := c.Service.UpdateRegistrationPrice(r.Context(), id, *req.Price)
	if err != nil {
		c.writeError(w, r, err, "registration not found")
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, reg)
}

// ListEventRegistrationsResponse is the data payload for GET /admin/events/{eventID}/registrations.
type ListEventRegistrationsResponse struct {
	Items      []*domain.Registration `json:"items"`
	Pagination helpers.PaginationMeta `json:"pagination"`
}

// ListEventRegistrationsSuccessResponse is the success envelope for GET /admin/events/{eventID}/registrations.
type ListEventRegistrationsSuccessResponse struct {
	Data  ListEventRegistrationsResponse `json:"data"`
	Error *helpers.APIError              `json:"error"`
}

// ListEventRegistrations godoc
// @Summary List registrations of a workshop
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID (UUID)"
// @Param page query int false "Page (default 1)"
// @Param page_size query int false "Page size (default 20, max 100)"
// @Success 200 {object} controllers.ListEventRegistrationsSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /admin/events/{eventID}/registrations [get]
func (c *RegistrationController) ListEventRegistrations(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathUUID(w, r, "eventID")
	if !ok {
		return
	}
	params := helpers.ParsePagination(r)
	list, total, err := c.Service.ListEventRegistrations(r.Context(), eventID, params)
	if err != nil {
		c.writeError(w, r, err, "event not found")
		return
	}
	if list == nil {
		list = []*domain.Registration{}
	}
	meta := helpers.NewPaginationMeta(params.Page, params.PageSize, total)
	helpers.WriteJSONSuccess(w, http.StatusOK, ListEventRegistrationsResponse{Items: list, Pagination: meta})
}

// ReconcileSeatsSuccessResponse is the success envelope for POST /admin/events/{eventID}/seats/reconcile.
type ReconcileSeatsSuccessResponse struct {
	Data  *domain.SeatReconciliation `json:"data"`
	Error *helpers.APIError          `json:"error"`
}

// ReconcileEventSeats godoc
// @Summary Recompute available seats of a workshop
// @Description Recomputes available_seats as total_seats minus the seats held by PAID and CONFIRMED registrations and repairs any drift.
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID (UUID)"
// @Success 200 {object} controllers.ReconcileSeatsSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: insufficient_seats (oversold) or conflict"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /admin/events/{eventID}/seats/reconcile [post]
func (c *RegistrationController) ReconcileEventSeats(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathUUID(w, r, "eventID")
	if !ok {
		return
	}
	result, err := c.Service.ReconcileEventSeats(r.Context(), eventID)
	if err != nil {
		c.writeError(w, r, err, "event not found")
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, result)
}

// writeError maps a service error onto the JSON envelope. Internal errors are logged and
// their detail is not sent to the client.
func (c *RegistrationController) writeError(w http.ResponseWriter, r *http.Request, err error, notFoundMsg string) {
	status, code := helpers.StatusForError(err)
	switch status {
	case http.StatusNotFound:
		helpers.WriteJSONError(w, status, code, notFoundMsg)
	case http.StatusInternalServerError:
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		helpers.WriteJSONError(w, status, code, "internal error")
	default:
		helpers.WriteJSONError(w, status, code, err.Error())
	}
}

// pathUUID reads a UUID path parameter, writing a 400 when it is missing or malformed.
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	raw := r.PathValue(name)
	if raw == "" {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "missing "+name)
		return "", false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "invalid "+name)
		return "", false
	}
	return id.String(), true
}
