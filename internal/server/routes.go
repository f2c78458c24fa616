package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Health probes
	mux.HandleFunc("/health", s.app.StatusHandler.HealthHandler)
	mux.HandleFunc("/ready", s.app.StatusHandler.ReadyHandler)
	mux.HandleFunc("/live", s.app.StatusHandler.LiveHandler)

	// Categories
	mux.HandleFunc("/categories/schedules/capacity", s.app.CategoryHandler.CapacityHandler)
	mux.HandleFunc("/categories", s.app.CategoryHandler.ListHandler)  // GET (list), POST (create)
	mux.HandleFunc("/categories/", s.app.CategoryHandler.ItemHandler) // GET/PUT/DELETE /{id}, PATCH /{id}/schedule

	// Jobs
	mux.HandleFunc("/jobs/stats", s.app.JobHandler.StatsHandler)
	mux.HandleFunc("/jobs", s.app.JobHandler.CollectionHandler) // GET (list), POST (create)
	mux.HandleFunc("/jobs/", s.app.JobHandler.ItemHandler)      // /{id} and subpaths

	// Articles
	mux.HandleFunc("/articles/stats", s.app.ArticleHandler.StatsHandler)
	mux.HandleFunc("/articles/export", s.app.ArticleHandler.ExportHandler)
	mux.HandleFunc("/articles", s.app.ArticleHandler.ListHandler)
	mux.HandleFunc("/articles/", s.routeArticle) // GET /{id}

	// System
	mux.HandleFunc("/version", s.app.StatusHandler.VersionHandler)
	mux.HandleFunc("/status", s.app.StatusHandler.StatusAPIHandler)

	// 404 handler for everything unmatched
	mux.HandleFunc("/", s.app.StatusHandler.NotFoundHandler)

	return mux
}

// routeArticle keeps /stats and /export from matching the item route
func (s *Server) routeArticle(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/articles/")
	switch rest {
	case "stats":
		s.app.ArticleHandler.StatsHandler(w, r)
	case "export":
		s.app.ArticleHandler.ExportHandler(w, r)
	default:
		s.app.ArticleHandler.ItemHandler(w, r)
	}
}
