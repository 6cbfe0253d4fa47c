package target

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// ServerConfig controls the built-in activities API used for local testing.
type ServerConfig struct {
	Port int

	// Latency jitter per request. Zero values disable the sleep.
	MinDelay time.Duration
	MaxDelay time.Duration

	// MaxInflight makes the server shed load with 503s once more than this
	// many requests are in flight. Zero means unlimited. Useful for
	// exercising the throughput search against a server with a real knee.
	MaxInflight int64
}

// Activity mirrors the target service's catalog entry shape.
type Activity struct {
	Description     string   `json:"description"`
	MaxParticipants int      `json:"max_participants"`
	Participants    []string `json:"participants"`
}

// Server is an in-process stand-in for the activity-signup API.
type Server struct {
	cfg      ServerConfig
	inflight int64

	mu         sync.Mutex
	activities map[string]*Activity
}

func NewServer(cfg ServerConfig) *Server {
	return &Server{
		cfg: cfg,
		activities: map[string]*Activity{
			"Chess Club": {
				Description:     "Learn strategies and compete in chess tournaments",
				MaxParticipants: 12,
			},
			"Programming Class": {
				Description:     "Learn programming fundamentals and build software projects",
				MaxParticipants: 20,
			},
			"Gym Class": {
				Description:     "Physical education and sports activities",
				MaxParticipants: 30,
			},
			"Art Studio": {
				Description:     "Painting, drawing and mixed media",
				MaxParticipants: 15,
			},
			"Debate Team": {
				Description:     "Weekly debates and public speaking practice",
				MaxParticipants: 16,
			},
		},
	}
}

// Handler builds the route table. Exposed separately from Start so tests can
// mount it on an httptest server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /activities", s.handleCatalog)
	mux.HandleFunc("POST /activities/{name}/signup", s.handleSignup)
	return mux
}

func Start(cfg ServerConfig) error {
	s := NewServer(cfg)
	fmt.Printf("Activities API listening on :%d\n", cfg.Port)
	return http.ListenAndServe(fmt.Sprintf(":%d", cfg.Port), s.Handler())
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if s.shedding() {
		http.Error(w, "server overloaded", http.StatusServiceUnavailable)
		return
	}
	defer s.release()
	s.sleep()

	s.mu.Lock()
	out, err := json.Marshal(s.activities)
	s.mu.Unlock()
	if err != nil {
		http.Error(w, "encoding failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(out)
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if s.shedding() {
		http.Error(w, "server overloaded", http.StatusServiceUnavailable)
		return
	}
	defer s.release()
	s.sleep()

	name := r.PathValue("name")
	email := r.URL.Query().Get("email")
	if email == "" {
		writeDetail(w, http.StatusBadRequest, "Email is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	activity, ok := s.activities[name]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Activity not found")
		return
	}

	for _, p := range activity.Participants {
		if p == email {
			writeDetail(w, http.StatusBadRequest, "Student already signed up for this activity")
			return
		}
	}

	activity.Participants = append(activity.Participants, email)
	writeDetail(w, http.StatusOK, fmt.Sprintf("Signed up %s for %s", email, name))
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}

// shedding increments the in-flight gauge and reports whether this request
// should be rejected. Callers must release() unless shedding returned true.
func (s *Server) shedding() bool {
	n := atomic.AddInt64(&s.inflight, 1)
	if s.cfg.MaxInflight > 0 && n > s.cfg.MaxInflight {
		atomic.AddInt64(&s.inflight, -1)
		return true
	}
	return false
}

func (s *Server) release() {
	atomic.AddInt64(&s.inflight, -1)
}

func (s *Server) sleep() {
	if s.cfg.MaxDelay <= 0 {
		return
	}
	d := s.cfg.MinDelay
	if spread := s.cfg.MaxDelay - s.cfg.MinDelay; spread > 0 {
		d += time.Duration(rand.Int63n(int64(spread)))
	}
	time.Sleep(d)
}
