package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-http-utils/etag"
	"github.com/sardine-ai/go-device-credentials/source"
	"github.com/sirupsen/logrus"
)

const (
	MinRefreshInterval = 5 * time.Second
	shutdownTimeout    = 10 * time.Second
)

var reservedPaths = map[string]bool{
	"/health": true,
	"/ready":  true,
	"/status": true,
}

// openPaths are reachable without an auth key. /status is not among
// them because it reveals repository names and error text.
var openPaths = map[string]bool{
	"/health": true,
	"/ready":  true,
}

// RepositoryStatus describes the refresh state of one repository.
type RepositoryStatus struct {
	Name         string    `json:"name"`
	IsHealthy    bool      `json:"healthy"`
	HasData      bool      `json:"has_data"`
	RefreshCount int       `json:"refresh_count"`
	LastRefresh  time.Time `json:"last_refresh"`
	LastSuccess  time.Time `json:"last_success,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
}

// Server serves the raw credential documents of its repositories to
// devices, one path per repository name.
type Server struct {
	Repositories    []source.Repository
	RefreshInterval time.Duration
	AuthKey         string

	cancel     context.CancelFunc
	wg         sync.WaitGroup
	statusMu   sync.RWMutex
	status     map[string]*RepositoryStatus
	httpMu     sync.Mutex
	httpServer *http.Server
}

func NewServer(ctx context.Context, repository []source.Repository, refreshInterval time.Duration) *Server {
	if refreshInterval < MinRefreshInterval {
		logrus.Warnf("refresh interval too low, setting it to %s", MinRefreshInterval)
		refreshInterval = MinRefreshInterval
	}
	ctx, cancel := context.WithCancel(ctx)
	server := &Server{
		Repositories:    repository,
		RefreshInterval: refreshInterval,
		cancel:          cancel,
		status:          make(map[string]*RepositoryStatus, len(repository)),
	}
	for _, repo := range server.Repositories {
		server.status[repo.GetName()] = &RepositoryStatus{Name: repo.GetName()}
	}
	for _, repo := range server.Repositories {
		server.refreshOnce(repo)
	}
	for _, repo := range server.Repositories {
		server.wg.Add(1)
		go server.refresh(ctx, repo)
	}
	return server
}

func (s *Server) refresh(ctx context.Context, repository source.Repository) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.refreshOnce(repository)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) refreshOnce(repository source.Repository) {
	err := repository.Refresh()
	now := time.Now()

	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	st := s.status[repository.GetName()]
	st.RefreshCount++
	st.LastRefresh = now
	if err != nil {
		logrus.WithError(err).WithField("repository", repository.GetName()).Error("error refreshing repository")
		st.IsHealthy = false
		st.LastError = err.Error()
		return
	}
	st.IsHealthy = true
	st.HasData = true
	st.LastSuccess = now
	st.LastError = ""
}

// IsHealthy reports whether the last refresh of every repository succeeded.
func (s *Server) IsHealthy() bool {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	for _, st := range s.status {
		if !st.IsHealthy {
			return false
		}
	}
	return true
}

// IsReady reports whether at least one repository has data to serve.
func (s *Server) IsReady() bool {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	for _, st := range s.status {
		if st.HasData {
			return true
		}
	}
	return false
}

func (s *Server) hasData(name string) bool {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	st, ok := s.status[name]
	return ok && st.HasData
}

// GetRepositoryStatus returns a copy of every repository's status.
func (s *Server) GetRepositoryStatus() map[string]RepositoryStatus {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	out := make(map[string]RepositoryStatus, len(s.status))
	for name, st := range s.status {
		out[name] = *st
	}
	return out
}

// Stop ends background refreshing and waits for the refresh loops.
func (s *Server) Stop() {
	s.cancel()
	s.wg.Wait()
}

// Start serves on addr until Shutdown. It returns nil after a clean
// shutdown.
func (s *Server) Start(addr string) error {
	logrus.WithField("addr", addr).Info("Starting server")

	handler := etag.Handler(s.CreateHandlers(), false)
	if s.AuthKey != "" {
		handler = Auth(handler, s.AuthKey)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpMu.Lock()
	s.httpServer = srv
	s.httpMu.Unlock()

	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops refreshing and gracefully closes the HTTP listener.
func (s *Server) Shutdown() error {
	s.Stop()

	s.httpMu.Lock()
	srv := s.httpServer
	s.httpMu.Unlock()
	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	logrus.Info("Shutting down server")
	return srv.Shutdown(ctx)
}

func (s *Server) CreateHandlers() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", readOnly(s.handleHealth))
	mux.HandleFunc("/ready", readOnly(s.handleReady))
	mux.HandleFunc("/status", readOnly(s.handleStatus))

	seen := make(map[string]bool)
	for _, repo := range s.Repositories {
		path := "/" + repo.GetName()
		switch {
		case repo.GetName() == "":
			logrus.Warn("skipping repository without a name")
			continue
		case reservedPaths[path]:
			logrus.WithField("repository", repo.GetName()).Warn("skipping repository with a reserved name")
			continue
		case seen[path]:
			logrus.WithField("repository", repo.GetName()).Warn("skipping repository with a duplicate name")
			continue
		}
		seen[path] = true

		repo := repo
		mux.HandleFunc(path, readOnly(func(w http.ResponseWriter, r *http.Request) {
			if !s.hasData(repo.GetName()) {
				http.Error(w, "Credentials not loaded", http.StatusServiceUnavailable)
				return
			}
			w.Header().Set("Content-Type", "application/yaml")
			w.Header().Set("Cache-Control", "no-store")
			_, err := w.Write(repo.GetRawData())
			if err != nil {
				logrus.WithError(err).Error("error writing response")
			}
		}))
	}
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.IsHealthy() {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.IsReady() {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"healthy":      s.IsHealthy(),
		"ready":        s.IsReady(),
		"repositories": s.GetRepositoryStatus(),
	})
}

func readOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logrus.WithError(err).Error("error writing response")
	}
}

// Auth rejects requests whose X-API-KEY header does not match authKey.
// /health and /ready are always reachable.
func Auth(next http.Handler, authKey string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if openPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}
		key := r.Header.Get("X-API-KEY")
		if key == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if subtle.ConstantTimeCompare([]byte(key), []byte(authKey)) != 1 {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
