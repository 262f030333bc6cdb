/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:   Unique ID per request for tracing
  2. RequestLogger: Structured request logging (zerolog)
  3. Recoverer:   Panic recovery (500 instead of crash)
  4. CORS:        Cross-origin requests for frontend

ROUTE GROUPS:
  /api/owners/*       Owner directory
  /api/vehicles/*     Vehicles, maintenance, attendance reads
  /api/projects/*     Projects
  /api/customers/*    Customers
  /api/assignments/*  Vehicle-to-project assignments
  /api/attendance     Attendance recording
  /api/payments/*     Period payment calculation and lifecycle
  /api/invoices/*     Billing runs and invoice lifecycle

SECURITY NOTE:
  No authentication middleware. All endpoints are public; put this behind a
  gateway before exposing it.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/owners", func(r chi.Router) {
			r.Get("/", h.ListOwners)
			r.Post("/", h.SaveOwner)
			r.Get("/{id}", h.GetOwner)
			r.Delete("/{id}", h.DeleteOwner)
		})

		r.Route("/vehicles", func(r chi.Router) {
			r.Get("/", h.ListVehicles)
			r.Post("/", h.SaveVehicle)
			r.Get("/{id}", h.GetVehicle)
			r.Delete("/{id}", h.DeleteVehicle)
			r.Get("/{id}/maintenance", h.ListMaintenance)
			r.Post("/{id}/maintenance", h.SaveMaintenance)
			r.Get("/{id}/attendance", h.GetAttendance)
		})

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", h.ListProjects)
			r.Post("/", h.SaveProject)
			r.Get("/{id}", h.GetProject)
			r.Delete("/{id}", h.DeleteProject)
		})

		r.Route("/customers", func(r chi.Router) {
			r.Get("/", h.ListCustomers)
			r.Post("/", h.SaveCustomer)
			r.Get("/{id}", h.GetCustomer)
			r.Delete("/{id}", h.DeleteCustomer)
		})

		r.Route("/assignments", func(r chi.Router) {
			r.Get("/", h.ListAssignments)
			r.Post("/", h.SaveAssignment)
			r.Get("/{id}", h.GetAssignment)
		})

		r.Post("/attendance", h.RecordAttendance)

		r.Route("/payments", func(r chi.Router) {
			r.Post("/calculate", h.CalculatePayment)
			r.Get("/", h.ListPayments)
			r.Post("/", h.CreatePayment)
			r.Get("/{id}", h.GetPayment)
			r.Post("/{id}/pay", h.MarkPaymentPaid)
		})

		r.Route("/invoices", func(r chi.Router) {
			r.Get("/", h.ListInvoices)
			r.Post("/", h.BuildInvoice)
			r.Get("/{id}", h.GetInvoice)
			r.Post("/{id}/pay", h.MarkInvoicePaid)
		})
	})

	return r
}
