package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/elys-network/treasury-sim/internal/logger"
	"github.com/elys-network/treasury-sim/internal/state"
)

var webLogger = logger.GetForComponent("web_server")

const (
	defaultMonthsLimit = 12
	maxMonthsLimit     = 120
)

// WebServer serves the results of the current simulation run.
type WebServer struct {
	router  *mux.Router
	port    string
	store   *state.Store
	metrics http.Handler
	started time.Time
}

// NewWebServer creates a new web server instance. metrics may be nil.
func NewWebServer(port string, store *state.Store, metrics http.Handler) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router:  mux.NewRouter(),
		port:    port,
		store:   store,
		metrics: metrics,
		started: time.Now(),
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")
	if ws.metrics != nil {
		ws.router.Handle("/metrics", ws.metrics).Methods("GET")
	}

	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET", "OPTIONS")
	api.HandleFunc("/months", ws.handleGetMonths).Methods("GET", "OPTIONS")
	api.HandleFunc("/months/latest", ws.handleGetLatestMonth).Methods("GET", "OPTIONS")
	api.HandleFunc("/months/{month:[0-9]+}", ws.handleGetMonth).Methods("GET", "OPTIONS")
	api.HandleFunc("/summary", ws.handleGetSummary).Methods("GET", "OPTIONS")
	api.HandleFunc("/parameters", ws.handleGetParameters).Methods("GET", "OPTIONS")

	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Handler exposes the router, mainly for tests.
func (ws *WebServer) Handler() http.Handler {
	return ws.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (ws *WebServer) Start(ctx context.Context) error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		webLogger.Info().Msg("Shutting down web server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

// handleHealth reports process stats and how far the current run has progressed.
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	runInfo := map[string]interface{}{
		"run_id":          ws.store.RunID(),
		"months_recorded": len(ws.store.GetAllMonths()),
		"completed":       false,
	}
	if latest, err := ws.store.GetLatestMonth(); err == nil {
		runInfo["latest_month"] = latest.Month
		runInfo["latest_price"] = latest.Price
	}
	if _, err := ws.store.GetRunSummary(); err == nil {
		runInfo["completed"] = true
	}

	response := map[string]interface{}{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"sys_bytes":        memStats.Sys,
			"gc_cycles":        memStats.NumGC,
			"uptime_seconds":   int64(time.Since(ws.started).Seconds()),
		},
		"component": map[string]interface{}{
			"name":    "treasury-sim",
			"version": "1.0.0",
		},
		"run": runInfo,
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetMonths returns the most recent month snapshots, newest first.
func (ws *WebServer) handleGetMonths(w http.ResponseWriter, r *http.Request) {
	limit := defaultMonthsLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsedLimit, err := strconv.Atoi(limitStr)
		if err != nil || parsedLimit <= 0 || parsedLimit > maxMonthsLimit {
			ws.writeErrorResponse(w, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(maxMonthsLimit))
			return
		}
		limit = parsedLimit
	}

	months := ws.store.GetRecentMonths(limit)
	response := map[string]interface{}{
		"run_id": ws.store.RunID(),
		"months": months,
		"count":  len(months),
		"limit":  limit,
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetMonth returns one month by number.
func (ws *WebServer) handleGetMonth(w http.ResponseWriter, r *http.Request) {
	month, err := strconv.Atoi(mux.Vars(r)["month"])
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid month")
		return
	}

	snapshot, err := ws.store.GetMonth(month)
	if err != nil {
		webLogger.Debug().Err(err).Int("month", month).Msg("Month not found")
		ws.writeErrorResponse(w, http.StatusNotFound, "Month not found")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, snapshot)
}

// handleGetLatestMonth returns the most recent month.
func (ws *WebServer) handleGetLatestMonth(w http.ResponseWriter, r *http.Request) {
	snapshot, err := ws.store.GetLatestMonth()
	if err != nil {
		ws.writeErrorResponse(w, http.StatusNotFound, "No months recorded")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, snapshot)
}

// handleGetSummary returns the run summary once the run has finished.
func (ws *WebServer) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := ws.store.GetRunSummary()
	if err != nil {
		ws.writeErrorResponse(w, http.StatusNotFound, "Run summary not available yet")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, summary)
}

// handleGetParameters returns the parameters the current run uses.
func (ws *WebServer) handleGetParameters(w http.ResponseWriter, r *http.Request) {
	params, ok := ws.store.GetParameters()
	if !ok {
		ws.writeErrorResponse(w, http.StatusNotFound, "No parameters recorded")
		return
	}

	response := map[string]interface{}{
		"run_id":     ws.store.RunID(),
		"parameters": params,
		"timestamp":  time.Now().UTC(),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		webLogger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
