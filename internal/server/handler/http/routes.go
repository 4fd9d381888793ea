package http

import (
	"embed"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/atinyakov/GTDKeeper/internal/middleware"
)

//go:embed static/index.html
var static embed.FS

// NewRouter builds the HTTP handler serving the page at / and the JSON API
// under /api.
//
// Middleware chain (applied in order):
//  1. RequestID and Recoverer
//  2. WithRequestLogging(logger)
//  3. on /api: AllowContentType("application/json") for requests with a
//     body, then LoadSession
//
// Everything except login, logout, set-password and the session probe
// additionally requires a session.
func NewRouter(
	authHandler *AuthHandler,
	taskHandler *TaskHandler,
	sessions middleware.SessionResolver,
	logger *zap.Logger,
) http.Handler {
	logger = nopIfNil(logger)
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.WithRequestLogging(logger))

	r.Get("/", serveIndex)

	r.Route("/api", func(r chi.Router) {
		r.Use(chiMiddleware.AllowContentType("application/json"))
		r.Use(middleware.LoadSession(sessions, logger))

		// Public endpoints
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Post("/set-password", authHandler.SetPassword)
		r.Get("/session", authHandler.Session)
		r.Get("/check-session", authHandler.Session)

		// Protected group: requires a valid session cookie
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSession)

			r.Get("/data", taskHandler.Data)
			r.Get("/next-actions", taskHandler.NextActions)
			r.Get("/export", taskHandler.Export)
			r.Post("/import", taskHandler.Import)

			r.Route("/items", func(r chi.Router) {
				r.Post("/", taskHandler.CreateItem)
				r.Put("/batch", taskHandler.BatchUpdateItems)
				r.Put("/{id}", taskHandler.UpdateItem)
				r.Post("/{id}/toggle", taskHandler.ToggleItem)
				r.Delete("/{id}", taskHandler.DeleteItem)
			})
			r.Route("/projects", func(r chi.Router) {
				r.Post("/", taskHandler.CreateProject)
				r.Put("/batch", taskHandler.BatchUpdateProjects)
				r.Put("/{id}", taskHandler.UpdateProject)
				r.Delete("/{id}", taskHandler.DeleteProject)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Get("/users", authHandler.ListUsers)
				r.Post("/create-user", authHandler.CreateUser)
				r.Post("/delete-user", authHandler.DeleteUser)
				r.Post("/reset-password", authHandler.ResetPassword)
			})
		})
	})

	return r
}

func serveIndex(w http.ResponseWriter, r *http.Request) {
	page, err := static.ReadFile("static/index.html")
	if err != nil {
		http.Error(w, "page unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(page)
}
