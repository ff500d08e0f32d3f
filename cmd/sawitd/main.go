// Command sawitd is a thin HTTP wiring demonstration over a sawitdb file:
// one POST endpoint accepts a JSON-encoded sawitdb.Command and returns its
// Query() result. The network server lives outside the core -- present
// here only to exercise the transport stack; its correctness is not
// covered by the core's invariants.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/wowoengine/sawitdb"
)

type config struct {
	addr         string
	dbPath       string
	enableWAL    bool
	logLevel     string
	authDisabled bool
	jwtSecret    string
}

func loadConfig() config {
	cfg := config{
		addr:      getenv("SAWITD_ADDR", ":8080"),
		dbPath:    getenv("SAWITD_DB", "sawit.db"),
		enableWAL: getenv("SAWITD_WAL", "true") == "true",
		logLevel:  getenv("SAWITD_LOG_LEVEL", "info"),
		jwtSecret: os.Getenv("SAWITD_JWT_SECRET"),
	}
	cfg.authDisabled = cfg.jwtSecret == ""
	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := loadConfig()
	logger := setupLogger(cfg.logLevel)
	logger.Info().Str("addr", cfg.addr).Str("db", cfg.dbPath).Bool("wal", cfg.enableWAL).Msg("starting sawitd")

	if cfg.authDisabled {
		logger.Warn().Msg("SAWITD_JWT_SECRET not set: bearer-token auth disabled")
	}

	opts := sawitdb.DefaultOptions()
	opts.EnableWAL = cfg.enableWAL
	opts.Logger = &logger

	db, err := sawitdb.Open(cfg.dbPath, opts)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close database")
		}
	}()

	h := &queryHandler{db: db, logger: logger}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(recoveryMiddleware(logger))
	r.Use(loggingMiddleware(logger))
	if !cfg.authDisabled {
		r.Use(bearerAuthMiddleware(cfg.jwtSecret))
	}

	r.Get("/health", h.health)
	r.Post("/query", h.query)

	srv := &http.Server{
		Addr:         cfg.addr,
		Handler:      h2c.NewHandler(r, &http2.Server{}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() { serverErrors <- srv.ListenAndServe() }()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			srv.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		logger.Info().Msg("server stopped gracefully")
	}
	return nil
}

func setupLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	return zerolog.New(output).Level(lvl).With().Timestamp().Logger()
}

// queryHandler serves the single /query endpoint; its correctness is
// entirely delegated to sawitdb.DB.Query, which already serializes access
// behind its own mutex.
type queryHandler struct {
	db     *sawitdb.DB
	logger zerolog.Logger
}

type queryResponse struct {
	Result interface{} `json:"result"`
}

func (h *queryHandler) query(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "reading request body", http.StatusBadRequest)
		return
	}
	var cmd sawitdb.Command
	if err := json.Unmarshal(body, &cmd); err != nil {
		http.Error(w, fmt.Sprintf("decoding command: %v", err), http.StatusBadRequest)
		return
	}

	result := h.db.Query(string(body), cmd)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(queryResponse{Result: result}); err != nil {
		h.logger.Error().Err(err).Msg("encoding query response failed")
	}
}

func (h *queryHandler) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// loggingMiddleware logs each request's method, path, status and latency.
func loggingMiddleware(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("elapsed", time.Since(start)).
				Msg("request")
		})
	}
}

// recoveryMiddleware turns a panicking handler into a 500 instead of
// crashing the server.
func recoveryMiddleware(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error().Interface("panic", rec).Msg("handler panicked")
					http.Error(w, "internal error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// bearerAuthMiddleware requires a valid HMAC-signed bearer token in the
// Authorization header -- an authentication scheme the core itself has
// no opinion on.
func bearerAuthMiddleware(secret string) func(http.Handler) http.Handler {
	key := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}
			auth := r.Header.Get("Authorization")
			tokenStr := strings.TrimPrefix(auth, "Bearer ")
			if tokenStr == "" || tokenStr == auth {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
				}
				return key, nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "invalid bearer token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
