package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"infinitetms/internal/auth"
	"infinitetms/internal/httpserver/handlers"
)

// Deps is everything the router wires into handlers.
type Deps struct {
	Issuer   *auth.TokenIssuer
	Sessions auth.SessionChecker

	Auth        handlers.AuthAPI
	Users       handlers.UserAPI
	Tickets     handlers.TicketAPI
	Attendance  handlers.AttendanceAPI
	Documents   handlers.DocumentAPI
	WorkUpdates handlers.WorkUpdateAPI
	Audit       handlers.AuditAPI
	Assistant   handlers.ChatAPI

	Uploads http.Handler

	CORSOrigins     []string
	RateLimitPerMin int
	MaxUploadBytes  int64
}

const loginAttemptsPerMin = 10

func NewRouter(d Deps, lg *zap.SugaredLogger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, middleware.Logger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Handle("/metrics", promhttp.Handler())
	if d.Uploads != nil {
		r.Handle("/uploads/*", d.Uploads)
	}

	r.Route("/api", func(api chi.Router) {
		if d.RateLimitPerMin > 0 {
			api.Use(httprate.LimitByIP(d.RateLimitPerMin, time.Minute))
		}
		api.With(httprate.LimitByIP(loginAttemptsPerMin, time.Minute)).Post("/login", handlers.Login(d.Auth, lg))
		api.Post("/refresh-token", handlers.RefreshToken(d.Auth, lg))

		api.Group(func(protected chi.Router) {
			protected.Use(auth.JWTAuth(d.Issuer, d.Sessions))
			protected.Post("/logout", handlers.Logout(d.Auth, lg))
			protected.Get("/me", handlers.Me(d.Auth, lg))

			protected.Get("/tickets", handlers.ListTickets(d.Tickets, lg))
			protected.Post("/tickets", handlers.CreateTicket(d.Tickets, lg))
			protected.Get("/tickets/{id}", handlers.GetTicket(d.Tickets, lg))
			protected.Put("/tickets/{id}", handlers.UpdateTicket(d.Tickets, lg))
			protected.With(auth.Require(auth.CanDeleteTickets)).Delete("/tickets/{id}", handlers.DeleteTicket(d.Tickets, lg))
			protected.Post("/tickets/{id}/claim", handlers.ClaimTicket(d.Tickets, lg))
			protected.Get("/tickets/{id}/summary", handlers.TicketSummary(d.Tickets, lg))
			protected.Get("/tickets/{id}/updates", handlers.ListTicketUpdates(d.Tickets, lg))
			protected.Get("/my-tickets", handlers.MyTickets(d.Tickets, lg))
			protected.With(auth.Require(auth.CanViewAllTickets)).Get("/admin/tickets", handlers.AdminTickets(d.Tickets, lg))

			protected.Get("/attendance/history", handlers.AttendanceHistory(d.Attendance, lg))
			protected.Post("/attendance/mark", handlers.MarkAttendance(d.Attendance, lg))
			protected.Get("/documents", handlers.ListDocuments(d.Documents, lg))
			protected.Delete("/documents/{id}", handlers.DeleteDocument(d.Documents, lg))
			protected.Get("/work-updates", handlers.ListWorkUpdates(d.WorkUpdates, lg))
			protected.Post("/work-updates", handlers.CreateWorkUpdate(d.WorkUpdates, lg))
			protected.Post("/assistant/chat", handlers.Chat(d.Assistant, lg))
			protected.Get("/logs", handlers.MyLogs(d.Audit, lg))

			protected.Group(func(uploads chi.Router) {
				if d.MaxUploadBytes > 0 {
					uploads.Use(middleware.RequestSize(d.MaxUploadBytes))
				}
				uploads.Post("/updates", handlers.PostUpdate(d.Tickets, lg))
				uploads.Post("/documents", handlers.UploadDocument(d.Documents, lg))
				uploads.Patch("/profile", handlers.UpdateProfile(d.Users, lg))
			})

			protected.Group(func(team chi.Router) {
				team.Use(auth.Require(auth.CanManageTeam))
				team.Get("/users", handlers.ListUsers(d.Users, lg))
				team.Post("/users", handlers.CreateUser(d.Users, lg))
			})
			protected.Group(func(admin chi.Router) {
				admin.Use(auth.Require(auth.CanAdministerUsers))
				admin.Get("/users/{id}", handlers.GetUser(d.Users, lg))
				admin.Patch("/users/{id}", handlers.UpdateUser(d.Users, lg))
				admin.Delete("/users/{id}", handlers.DeleteUser(d.Users, lg))
			})
		})
	})
	return r
}
