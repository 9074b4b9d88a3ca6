package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Ido77/tarot-capital/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve extraction results over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		runner, err := initRunner()
		if err != nil {
			return err
		}

		r := chi.NewRouter()
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))

		r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Get("/results", func(w http.ResponseWriter, req *http.Request) {
			filter := store.ResultFilter{Limit: 100}
			if v := req.URL.Query().Get("min_upside"); v != "" {
				f, err := strconv.ParseFloat(v, 64)
				if err != nil {
					writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid min_upside"})
					return
				}
				filter.MinUpside = f
			}
			results, err := st.ListResults(req.Context(), filter)
			if err != nil {
				zap.L().Error("serve: list results", zap.Error(err))
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "query failed"})
				return
			}
			writeJSON(w, http.StatusOK, results)
		})

		r.Get("/results/{ticker}", func(w http.ResponseWriter, req *http.Request) {
			ticker := chi.URLParam(req, "ticker")
			result, err := st.GetResult(req.Context(), ticker)
			if err != nil {
				zap.L().Error("serve: get result", zap.String("ticker", ticker), zap.Error(err))
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "query failed"})
				return
			}
			if result == nil {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "no result for ticker"})
				return
			}
			writeJSON(w, http.StatusOK, result)
		})

		r.Post("/extract", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				Ticker string `json:"ticker"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.Ticker == "" {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "ticker is required"})
				return
			}

			// Extraction runs in the background; poll /results/{ticker}.
			go func() {
				result, err := runner.Run(ctx, body.Ticker)
				if err != nil {
					zap.L().Error("serve: extraction failed", zap.String("ticker", body.Ticker), zap.Error(err))
					return
				}
				run, err := st.CreateRun(ctx, []string{result.Ticker})
				if err == nil {
					err = st.SaveResult(ctx, run.ID, result)
				}
				if err != nil {
					zap.L().Error("serve: save result", zap.String("ticker", result.Ticker), zap.Error(err))
				}
			}()

			writeJSON(w, http.StatusAccepted, map[string]string{
				"status": "accepted",
				"ticker": body.Ticker,
			})
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
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
	json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
