package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var servePort int

// subjectGuard serializes enrichment per subject: a second request for a
// subject already being enriched is rejected instead of queued.
type subjectGuard struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

func newSubjectGuard() *subjectGuard {
	return &subjectGuard{inFlight: make(map[string]struct{})}
}

func (g *subjectGuard) tryAcquire(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.inFlight[id]; ok {
		return false
	}
	g.inFlight[id] = struct{}{}
	return true
}

func (g *subjectGuard) release(id string) {
	g.mu.Lock()
	delete(g.inFlight, id)
	g.mu.Unlock()
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook server for enrichment requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		guard := newSubjectGuard()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))

		r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Post("/api/enrich/{id}", func(w http.ResponseWriter, req *http.Request) {
			subjectID := chi.URLParam(req, "id")
			if _, loadErr := env.Store.LoadSubject(req.Context(), subjectID); loadErr != nil {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "subject not found"})
				return
			}
			if !guard.tryAcquire(subjectID) {
				writeJSON(w, http.StatusConflict, map[string]string{"error": "enrichment already running"})
				return
			}

			// Enrichment outlives the request; it runs against the server
			// context so shutdown, not client disconnect, cancels it.
			go func() {
				defer guard.release(subjectID)
				summary, runErr := env.Pipeline.Enrich(ctx, subjectID)
				if runErr != nil {
					env.Pipeline.MarkFailed(ctx, subjectID, runErr)
					zap.L().Error("webhook enrichment failed",
						zap.String("subject_id", subjectID),
						zap.Error(runErr),
					)
					return
				}
				zap.L().Info("webhook enrichment complete",
					zap.String("subject_id", subjectID),
					zap.Int("news", summary.News),
					zap.Int("executives", summary.Executives),
				)
			}()

			writeJSON(w, http.StatusAccepted, map[string]string{
				"status":     "accepted",
				"subject_id": subjectID,
			})
		})

		r.Get("/api/record/{id}", func(w http.ResponseWriter, req *http.Request) {
			subjectID := chi.URLParam(req, "id")
			record, recErr := env.Store.GetRecord(req.Context(), subjectID)
			if recErr != nil {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "record not found"})
				return
			}
			writeJSON(w, http.StatusOK, record)
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
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
