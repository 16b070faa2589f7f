// Package dashboard exposes the supervisor's runner set over HTTP:
// a read-only status/log surface plus a control POST endpoint.
package dashboard

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zalgonoise/bansuri/logging"
	"github.com/zalgonoise/bansuri/sampler"
	"github.com/zalgonoise/bansuri/supervisor"
)

const realm = "Bansuri Dashboard"

const defaultLogLimit = 50 * 1024

// Credentials guards every endpoint with HTTP Basic auth when both
// fields are non-empty; an empty Credentials disables auth entirely.
type Credentials struct {
	Username string
	Password string
}

func (c Credentials) configured() bool {
	return c.Username != "" && c.Password != ""
}

// Server is the dashboard's HTTP surface over one supervisor.Runtime.
type Server struct {
	sup   supervisor.Runtime
	creds Credentials

	router     http.Handler
	httpServer *http.Server
	logger     *slog.Logger

	selfPID     int
	selfSampler sampler.Sampler
}

// New builds a Server listening on addr, backed by sup.
func New(addr string, sup supervisor.Runtime, creds Credentials, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(logging.NoOp())
	}

	s := &Server{
		sup:         sup,
		creds:       creds,
		logger:      logger,
		selfPID:     os.Getpid(),
		selfSampler: sampler.New(logger),
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(30 * time.Second))
	router.Use(s.basicAuth)

	router.Get("/", s.handleRoot)
	router.Get("/api/status", s.handleStatus)
	router.Get("/api/logs", s.handleLogs)
	router.Post("/api/control", s.handleControl)

	s.router = router
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	return s
}

// Handler returns the Server's routed http.Handler, primarily for use
// in tests that drive it with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run starts the HTTP server and blocks until ctx is done, then shuts
// it down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.InfoContext(ctx, "dashboard starting", slog.String("addr", s.httpServer.Addr))

		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err

			return
		}

		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return s.httpServer.Shutdown(shutdownCtx)

	case err := <-errCh:
		return err
	}
}

// basicAuth enforces HTTP Basic authentication when Credentials are
// configured, matching the original dashboard's check_auth/
// send_auth_request behavior.
func (s *Server) basicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.creds.configured() {
			next.ServeHTTP(w, r)

			return
		}

		user, pass, ok := r.BasicAuth()
		if ok &&
			subtle.ConstantTimeCompare([]byte(user), []byte(s.creds.Username)) == 1 &&
			subtle.ConstantTimeCompare([]byte(pass), []byte(s.creds.Password)) == 1 {
			next.ServeHTTP(w, r)

			return
		}

		w.Header().Set("WWW-Authenticate", fmt.Sprintf("Basic realm=%q", realm))
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("Unauthorized"))
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = w.Write([]byte(rootPage))
}

const rootPage = `<!DOCTYPE html>
<html>
<head><title>Bansuri</title></head>
<body>
<h1>Bansuri</h1>
<p>Status at <a href="/api/status">/api/status</a></p>
</body>
</html>`

type taskStatus struct {
	Name           string    `json:"name"`
	Status         string    `json:"status"`
	LastRun        time.Time `json:"last_run,omitzero"`
	NextRun        time.Time `json:"next_run,omitzero"`
	Attempts       int       `json:"attempts"`
	FailedAttempts int       `json:"failed_attempts"`
	Command        string    `json:"command"`
	CPUPercent     float64   `json:"cpu_percent"`
	MemoryRSS      uint64    `json:"memory_rss"`
}

type statusResponse struct {
	Tasks  []taskStatus `json:"tasks"`
	Global struct {
		CPUPercent float64 `json:"cpu_percent"`
		MemoryRSS  uint64  `json:"memory_rss"`
	} `json:"global"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var resp statusResponse

	for _, snap := range s.sup.Snapshot() {
		inst := s.sup.Runner(snap.Name)

		var cpu float64
		var mem uint64

		if inst != nil {
			sampled := inst.Sample(ctx)
			cpu, mem = sampled.CPUPercent, sampled.MemoryRSS
		}

		command := ""
		if inst != nil {
			command = inst.Descriptor().Command
		}

		resp.Tasks = append(resp.Tasks, taskStatus{
			Name:           snap.Name,
			Status:         snap.Status.String(),
			LastRun:        snap.LastRun,
			NextRun:        snap.NextRun,
			Attempts:       snap.Attempts,
			FailedAttempts: snap.FailedAttempts,
			Command:        command,
			CPUPercent:     cpu,
			MemoryRSS:      mem,
		})

		resp.Global.CPUPercent += cpu
		resp.Global.MemoryRSS += mem
	}

	self := s.selfSampler.Sample(ctx, s.selfPID)
	resp.Global.CPUPercent += self.CPUPercent
	resp.Global.MemoryRSS += self.MemoryRSS

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	task := r.URL.Query().Get("task")
	if task == "" {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Missing task name"))

		return
	}

	inst := s.sup.Runner(task)
	if inst == nil {
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, "Task not found: %s", task)

		return
	}

	logType := r.URL.Query().Get("type")
	if logType == "" {
		logType = "stdout"
	}

	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", defaultLogLimit)

	content, err := tailLog(inst, logType, offset, limit)
	if err != nil {
		_, _ = fmt.Fprintf(w, "%s", err.Error())

		return
	}

	_, _ = w.Write([]byte(content))
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}

	var v int

	if _, err := fmt.Sscanf(raw, "%d", &v); err != nil {
		return def
	}

	return v
}

type controlRequest struct {
	Task   string `json:"task"`
	Action string `json:"action"`
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	var req controlRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]bool{"success": false})

		return
	}

	inst := s.sup.Runner(req.Task)
	if inst == nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]bool{"success": false})

		return
	}

	s.logger.InfoContext(r.Context(), "dashboard control requested",
		slog.String("task", req.Task), slog.String("action", req.Action))

	switch req.Action {
	case "start":
		inst.Start(r.Context())
	case "stop":
		inst.Stop(r.Context())
	case "restart":
		go func() {
			inst.Stop(context.Background())
			inst.Start(context.Background())
		}()
	default:
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]bool{"success": false})

		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]bool{"success": true})
}
