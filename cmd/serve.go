package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fiberscope/coverage-cli/internal/address"
	"github.com/fiberscope/coverage-cli/internal/model"
	"github.com/fiberscope/coverage-cli/internal/spatial"
	"github.com/fiberscope/coverage-cli/internal/store"
	"github.com/fiberscope/coverage-cli/internal/tabular"
	"github.com/fiberscope/coverage-cli/pkg/geocode"
)

var (
	servePort     int
	serveCoverage string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve geocoding and coverage matching over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort > 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		var matcher *spatial.Matcher
		if serveCoverage != "" {
			mode, err := spatial.ParseMode(cfg.Match.Mode)
			if err != nil {
				return err
			}
			points, dropped, err := tabular.LoadCoveragePoints(serveCoverage, env.Aliases)
			if err != nil {
				return eris.Wrap(err, "load coverage")
			}
			matcher = spatial.NewMatcher(points, cfg.Match.ThresholdMeters, mode)
			zap.L().Info("coverage loaded",
				zap.Int("points", len(points)),
				zap.Int("dropped", dropped),
			)
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
			Handler: newRouter(env.Store, env.Resolver, matcher),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

// newRouter assembles the HTTP API. The matcher may be nil when the server
// was started without a coverage set.
func newRouter(st store.Store, resolver *geocode.Resolver, matcher *spatial.Matcher) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/api/runs", func(w http.ResponseWriter, req *http.Request) {
		runs, err := st.ListRuns(req.Context(), store.RunFilter{
			Status: model.RunStatus(req.URL.Query().Get("status")),
			Kind:   req.URL.Query().Get("kind"),
		})
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "list runs failed"})
			return
		}
		if runs == nil {
			runs = []model.Run{}
		}
		writeJSON(w, http.StatusOK, runs)
	})

	r.Get("/api/runs/{id}", func(w http.ResponseWriter, req *http.Request) {
		run, err := st.GetRun(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
			return
		}
		writeJSON(w, http.StatusOK, run)
	})

	r.Post("/api/geocode", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Address string `json:"address"`
			City    string `json:"city"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}

		canonical := address.Canonical(body.Address, body.City)
		if !address.Resolvable(canonical) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "address too short"})
			return
		}

		coord, ok := resolver.Resolve(req.Context(), canonical)
		resp := map[string]any{"address": canonical, "resolved": ok}
		if ok {
			resp["latitude"] = coord.Lat
			resp["longitude"] = coord.Lon
			// The store never overwrites, so re-saving a seeded hit is a
			// no-op while a live resolution survives a server restart.
			if err := st.SaveCacheEntry(req.Context(), address.Key(canonical), coord); err != nil {
				zap.L().Warn("persist resolution failed",
					zap.String("address", canonical),
					zap.Error(err),
				)
			}
		}
		writeJSON(w, http.StatusOK, resp)
	})

	r.Post("/api/match", func(w http.ResponseWriter, req *http.Request) {
		if matcher == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no coverage set loaded"})
			return
		}

		var body struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}

		coord := model.Coordinate{Lat: body.Latitude, Lon: body.Longitude}
		if !coord.Valid() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "coordinate out of range"})
			return
		}

		m := matcher.Match(coord)
		if m == nil {
			writeJSON(w, http.StatusOK, map[string]any{"matched": false})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"matched":           true,
			"matched_latitude":  m.Point.Lat,
			"matched_longitude": m.Point.Lon,
			"distance_m":        m.DistanceMeters,
			"exact":             m.Exact,
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("write response failed", zap.Error(err))
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().StringVar(&serveCoverage, "coverage", "", "coverage points to serve matches against")
	rootCmd.AddCommand(serveCmd)
}
