package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/twpayne/go-dted"
)

type altitudeResponse struct {
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Altitude float64 `json:"altitude"`
	Tile     string  `json:"tile"`
}

type errorResponse struct {
	Error string `json:"error"`
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve altitudes over HTTP",
	Long: `Serve altitudes over HTTP.

Endpoints:
  GET /altitude?lat=53.5&lon=8.5[&interpolate=true]
  GET /metrics`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(cmd)
		if err != nil {
			return err
		}
		logger := cfg.Logger()
		terrain, closeFunc, err := cfg.NewTerrain(logger)
		if err != nil {
			return err
		}
		defer closeFunc()

		mux := http.NewServeMux()
		mux.Handle("GET /altitude", altitudeHandler(terrain))
		mux.Handle("GET /metrics", promhttp.Handler())

		server := &http.Server{
			Addr:         cfg.Listen,
			Handler:      loggingMiddleware(logger)(mux),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  30 * time.Second,
		}
		logger.Info("listening", "addr", cfg.Listen, "source", cfg.Source)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("listen", "l", ":8080", "Address to listen on")
}

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			defer func() {
				logger.Info("request", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr, "duration", time.Since(start))
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func altitudeHandler(terrain *dted.Terrain) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		lat, err := strconv.ParseFloat(query.Get("lat"), 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid lat"})
			return
		}
		lon, err := strconv.ParseFloat(query.Get("lon"), 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid lon"})
			return
		}
		if err := validateLatLon(lat, lon); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}

		response := altitudeResponse{
			Lat:  lat,
			Lon:  lon,
			Tile: string(dted.TileName(lat, lon)),
		}
		if interpolate, _ := strconv.ParseBool(query.Get("interpolate")); interpolate {
			response.Altitude, err = terrain.InterpolatedAltitudeAt(r.Context(), lat, lon)
		} else {
			var altitude int16
			altitude, err = terrain.AltitudeAt(r.Context(), lat, lon)
			response.Altitude = float64(altitude)
		}

		var notFoundErr *dted.NotFoundError
		var indexErr *dted.IndexError
		switch {
		case errors.As(err, &notFoundErr), errors.As(err, &indexErr):
			writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		case err != nil:
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		default:
			writeJSON(w, http.StatusOK, response)
		}
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(value)
}
