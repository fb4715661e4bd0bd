package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/pit-store/internal/model"
	"github.com/sells-group/pit-store/internal/pit"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve read-only manifest and panel endpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		store, _, cleanup, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		builder := pit.NewPanelBuilder(store)

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet},
		}))
		r.Use(rateLimit(rate.NewLimiter(rate.Limit(20), 40)))

		r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Get("/api/manifest/{symbol}", func(w http.ResponseWriter, req *http.Request) {
			symbol := chi.URLParam(req, "symbol")
			manifest, err := store.GetManifest(req.Context(), symbol)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, manifest)
		})

		r.Get("/api/panel", func(w http.ResponseWriter, req *http.Request) {
			symbols := splitSymbols(req.URL.Query().Get("symbols"))
			if len(symbols) == 0 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "symbols is required"})
				return
			}
			start, err := model.ParseDate(req.URL.Query().Get("start"))
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid start date"})
				return
			}
			end, err := model.ParseDate(req.URL.Query().Get("end"))
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid end date"})
				return
			}

			panel, err := builder.BuildPanel(req.Context(), symbols, start, end)
			if err != nil {
				writeError(w, err)
				return
			}
			if err := (pit.Validator{}).Validate(panel); err != nil {
				// Serving a leaking panel is never acceptable.
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, panel)
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("serving", zap.Int("port", port))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func rateLimit(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if !limiter.Allow() {
				writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	var violation *model.LookAheadViolation
	status := http.StatusInternalServerError
	if errors.As(err, &violation) {
		// Loud and unambiguous: the panel is unusable.
		status = http.StatusConflict
	}
	zap.L().Error("request failed", zap.Error(err))
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
