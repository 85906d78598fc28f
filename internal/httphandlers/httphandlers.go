package httphandlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"ytcr.app/receiver/app"
)

const (
	appPath = "/apps/YouTube"
	runPath = appPath + "/run"

	maxLaunchData = 64 << 10
)

// Receiver is the app controlled over HTTP.
type Receiver interface {
	Start(ctx context.Context) error
	Stop(err error)
	Launch(ctx context.Context, launchData string) (string, error)
	Name() string
	PID() string
	State() app.State
}

// HTTPserver - new http.Server instance.
type HTTPserver struct {
	Logger zerolog.Logger

	http *http.Server
	mux  *http.ServeMux
	// ctx outlives single requests; a receiver started by a launch request
	// keeps running after the request is done.
	ctx    context.Context
	cancel context.CancelFunc
}

type appStatus struct {
	Name  string `json:"name"`
	State string `json:"state"`
	PID   string `json:"pid,omitempty"`
}

// ServeLaunch - Start HTTP server and serve the launch endpoints of r.
func (s *HTTPserver) ServeLaunch(serverStarted chan<- string, r Receiver) error {
	s.mux.HandleFunc(appPath, s.appHandler(r))
	s.mux.HandleFunc(runPath, s.runHandler(r))

	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("server listen error: %w", err)
	}

	serverStarted <- ln.Addr().String()
	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server serve error: %w", err)
	}
	return nil
}

func (s *HTTPserver) appHandler(r Receiver) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodGet:
			writeStatus(w, r)
		case http.MethodPost:
			s.launch(w, req, r)
		default:
			w.Header().Set("Allow", "GET, POST")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

func (s *HTTPserver) runHandler(r Receiver) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodDelete {
			w.Header().Set("Allow", "DELETE")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if r.State() != app.Running {
			http.NotFound(w, req)
			return
		}

		s.Logger.Info().Str("Method", "runHandler").Msg("stop requested")
		r.Stop(nil)
		w.WriteHeader(http.StatusOK)
	}
}

func (s *HTTPserver) launch(w http.ResponseWriter, req *http.Request, r Receiver) {
	body, err := io.ReadAll(io.LimitReader(req.Body, maxLaunchData))
	if err != nil {
		http.Error(w, "failed to read launch data", http.StatusBadRequest)
		return
	}

	if r.State() == app.Stopped {
		if err := r.Start(s.ctx); err != nil {
			s.Logger.Error().Str("Method", "launch").Err(err).Msg("failed to start receiver")
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
	}

	pid, err := r.Launch(req.Context(), string(body))
	if err != nil {
		status := http.StatusServiceUnavailable
		if errors.Is(err, app.ErrIncompleteAPIData) {
			status = http.StatusBadRequest
		}
		s.Logger.Warn().Str("Method", "launch").Err(err).Msg("launch rejected")
		http.Error(w, err.Error(), status)
		return
	}

	s.Logger.Info().Str("Method", "launch").Str("PID", pid).Msg("launched")
	w.Header().Set("Location", runPath)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusCreated)
	fmt.Fprintf(w, "%s\n", pid)
}

func writeStatus(w http.ResponseWriter, r Receiver) {
	st := appStatus{Name: r.Name(), State: "stopped"}
	if r.State() == app.Running {
		st.State = "running"
		st.PID = r.PID()
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(st)
}

// StopServeLaunch .
func (s *HTTPserver) StopServeLaunch() {
	s.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.http.Shutdown(ctx)
}

// NewServer - create a new HTTP server.
func NewServer(a string) *HTTPserver {
	mux := http.NewServeMux()
	ctx, cancel := context.WithCancel(context.Background())
	srv := HTTPserver{
		Logger: zerolog.Nop(),
		http:   &http.Server{Addr: a, Handler: mux, ReadHeaderTimeout: 10 * time.Second},
		mux:    mux,
		ctx:    ctx,
		cancel: cancel,
	}

	return &srv
}
