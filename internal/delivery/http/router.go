package http

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"

	"claystudio/internal/delivery/http/controllers"
)

// NewRouter initializes the HTTP router with all application routes.
// requireAuth guards every route except health and docs.
func NewRouter(
	registrationController *controllers.RegistrationController,
	healthController *controllers.HealthController,
	requireAuth func(http.HandlerFunc) http.HandlerFunc,
) *http.ServeMux {
	mux := http.NewServeMux()

	// Attendee
	mux.HandleFunc("POST /events/{eventID}/registrations", requireAuth(registrationController.Register))
	mux.HandleFunc("GET /registrations/{registrationID}", requireAuth(registrationController.GetRegistration))

	// Admin
	mux.HandleFunc("PATCH /admin/registrations/{registrationID}/status", requireAuth(registrationController.TransitionStatus))
	mux.HandleFunc("PATCH /admin/registrations/{registrationID}/price", requireAuth(registrationController.UpdateRegistrationPrice))
	mux.HandleFunc("PATCH /admin/registrations/{registrationID}", requireAuth(registrationController.EditRegistrationDetails))
	mux.HandleFunc("GET /admin/events/{eventID}/registrations", requireAuth(registrationController.ListEventRegistrations))
	mux.HandleFunc("POST /admin/events/{eventID}/seats/reconcile", requireAuth(registrationController.ReconcileEventSeats))

	mux.HandleFunc("GET /health", healthController.Health)

	// Swagger
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	return mux
}
