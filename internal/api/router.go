package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/arena-auth/internal/api/apierr"
	"github.com/mcoot/arena-auth/internal/api/handler"
	"github.com/mcoot/arena-auth/internal/api/middleware"
	"github.com/mcoot/arena-auth/internal/api/response"
	"github.com/mcoot/arena-auth/internal/backend/memory"
	"github.com/mcoot/arena-auth/internal/dependencies/clock"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger    *slog.Logger
	Directory *memory.Directory
	AnonKey   string
	Clock     clock.Clock
}

// NewRouter creates the development backend: an auth service and a profiles
// table served with the same paths and payloads as the hosted backend, so
// the real client can be pointed at it.
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}

	// Create handlers
	authHandler := handler.NewAuthHandler(cfg.Directory, clk)
	profilesHandler := handler.NewProfilesHandler(cfg.Directory)

	// Create middleware
	apiKeyMiddleware := middleware.APIKey(cfg.AnonKey)
	bearerMiddleware := middleware.Bearer(cfg.Directory)
	loggingMiddleware := middleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger)

	r.Use(recoveryMiddleware)
	r.Use(loggingMiddleware)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apierr.WriteError(w, apierr.NewNotFoundError("no route for "+r.Method+" "+r.URL.Path))
	})

	// Health check endpoint (no key)
	r.HandleFunc("/health", healthHandler).Methods(http.MethodGet)

	// Auth routes
	auth := r.PathPrefix("/auth/v1").Subrouter()
	auth.Use(apiKeyMiddleware)
	auth.HandleFunc("/health", healthHandler).Methods(http.MethodGet)
	auth.HandleFunc("/token", authHandler.Token).Methods(http.MethodPost)
	auth.HandleFunc("/signup", authHandler.SignUp).Methods(http.MethodPost)

	authProtected := auth.NewRoute().Subrouter()
	authProtected.Use(bearerMiddleware)
	authProtected.HandleFunc("/logout", authHandler.Logout).Methods(http.MethodPost)
	authProtected.HandleFunc("/user", authHandler.User).Methods(http.MethodGet)

	// REST routes
	rest := r.PathPrefix("/rest/v1").Subrouter()
	rest.Use(apiKeyMiddleware)
	rest.HandleFunc("/profiles", profilesHandler.List).Methods(http.MethodGet)

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, response.Health{Status: "ok"})
}
