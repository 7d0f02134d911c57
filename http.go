package livetiming

import (
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"justapengu.in/livetiming/pkg/laptiming"
	"justapengu.in/livetiming/pkg/udp"
)

type HTTPConfig struct {
	Address string `json:"address" yaml:"address"`
	Port    uint16 `json:"port" yaml:"port"`
}

const (
	maxSnapshotBodySize = 64 * 1024
	shutdownTimeout     = 5 * time.Second
)

type HTTP struct {
	config     HTTPConfig
	liveTiming *LiveTiming
	hub        *Hub
	debugger   *Debugger
	logger     Logger

	server *http.Server
}

func NewHTTP(config HTTPConfig, liveTiming *LiveTiming, hub *Hub, debugger *Debugger, logger Logger) *HTTP {
	return &HTTP{
		config:     config,
		liveTiming: liveTiming,
		hub:        hub,
		debugger:   debugger,
		logger:     logger,
	}
}

func (h *HTTP) Router() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	router.Get("/healthz", h.healthz)
	router.Get("/ws", h.hub.Handler(h.liveTiming.InitialMessages))
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/api", func(r chi.Router) {
		r.Get("/lap-timing", h.lapTiming)
		r.Get("/lap-timing/{carIndex}", h.carLapTiming)
		r.Get("/standings", h.standings)
		r.Get("/session", h.session)
		r.Get("/race-engineer", h.raceEngineer)
		r.Post("/lap-data", h.postLapData)

		if h.debugger != nil {
			r.Get("/debug", h.debugger.ServeHTTP)
		}
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.logger.Debugf("Could not find HTTP response for URL: %s", r.URL.String())

		http.NotFound(w, r)
	})

	return router
}

// Listen serves HTTP until ctx is cancelled.
func (h *HTTP) Listen(ctx context.Context) error {
	listener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", h.config.Address, h.config.Port))

	if err != nil {
		return errors.Wrap(err, "could not start HTTP listener")
	}

	return h.Serve(ctx, listener)
}

func (h *HTTP) Serve(ctx context.Context, listener net.Listener) error {
	h.server = &http.Server{
		Handler: h.Router(),
	}

	h.logger.Infof("HTTP server listening on: %s", listener.Addr())

	errCh := make(chan error, 1)

	go func() {
		err := h.server.Serve(listener)

		if err == http.ErrServerClosed {
			err = nil
		}

		errCh <- err
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "HTTP server stopped")
	case <-ctx.Done():
	}

	h.hub.Close()

	shutdownCtx, cfn := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cfn()

	h.logger.Infof("Shutting down HTTP server")

	return h.server.Shutdown(shutdownCtx)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(v)
}

type httpError struct {
	Error string `json:"error"`
}

func (h *HTTP) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]ConnectionStatus{
		"telemetry": h.liveTiming.ConnectionStatus(),
	})
}

func (h *HTTP) lapTiming(w http.ResponseWriter, r *http.Request) {
	timing, ok := h.liveTiming.PlayerLapTiming()

	if !ok {
		writeJSON(w, http.StatusNotFound, httpError{Error: "no lap data received yet"})
		return
	}

	writeJSON(w, http.StatusOK, timing)
}

func (h *HTTP) carLapTiming(w http.ResponseWriter, r *http.Request) {
	carIndex, err := strconv.ParseUint(chi.URLParam(r, "carIndex"), 10, 8)

	if err != nil {
		writeJSON(w, http.StatusBadRequest, httpError{Error: "invalid car index"})
		return
	}

	timing, ok := h.liveTiming.CarLapTiming(udp.CarIndex(carIndex))

	if !ok {
		writeJSON(w, http.StatusNotFound, httpError{Error: "no lap data for car"})
		return
	}

	writeJSON(w, http.StatusOK, timing)
}

func (h *HTTP) standings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.liveTiming.Drivers.Standings())
}

func (h *HTTP) session(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.liveTiming.SessionState())
}

func (h *HTTP) raceEngineer(w http.ResponseWriter, r *http.Request) {
	summary, ok := h.liveTiming.RaceEngineerSummary()

	if !ok {
		writeJSON(w, http.StatusNotFound, httpError{Error: "race engineer is disabled"})
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func (h *HTTP) postLapData(w http.ResponseWriter, r *http.Request) {
	b, err := ioutil.ReadAll(http.MaxBytesReader(w, r.Body, maxSnapshotBodySize))

	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, httpError{Error: "could not read request body"})
		return
	}

	snapshot, err := laptiming.DecodeSnapshot(b)

	if err != nil {
		h.logger.WithError(err).Debug("Rejected lap data snapshot")
		writeJSON(w, http.StatusBadRequest, httpError{Error: err.Error()})
		return
	}

	timing, err := h.liveTiming.IngestPlayerSnapshot(snapshot)

	if errors.Is(err, ErrLapNumberRegression) {
		h.logger.WithError(err).Warn("Ignoring lap data snapshot")
		writeJSON(w, http.StatusConflict, httpError{Error: err.Error()})
		return
	} else if err != nil {
		h.logger.WithError(err).Error("Could not broadcast lap data snapshot")
	}

	writeJSON(w, http.StatusOK, timing)
}
