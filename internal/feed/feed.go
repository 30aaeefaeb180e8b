// Package feed serves the schedule of each batch over HTTP: an iCalendar
// feed for calendar apps and a JSON list of upcoming reminders.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"eventbot/internal/board"
	"eventbot/internal/catalog"
	"eventbot/internal/schedule"
	"eventbot/internal/storage"
	logx "eventbot/pkg/logx"
)

// Config controls the optional HTTP feed.
//
// Binding to a non-loopback address requires Token or AllowInsecure.
type Config struct {
	Enabled       bool
	Addr          string
	Token         string
	AllowInsecure bool
	Pprof         bool // mount net/http/pprof under /debug

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

const defaultAddr = "127.0.0.1:8089"

type Service struct {
	mu    sync.Mutex
	cfg   Config
	store storage.Store
	cat   *catalog.Catalog
	log   logx.Logger
	now   func() time.Time

	ln  net.Listener
	srv *http.Server
}

func New(cfg Config, store storage.Store, cat *catalog.Catalog, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, store: store, cat: cat, log: log, now: time.Now}
}

// Handler returns the router. Auth applies to everything but /healthz.
func (s *Service) Handler() http.Handler {
	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()
	return s.router(cfg)
}

func (s *Service) router(cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Group(func(pr chi.Router) {
		pr.Use(withAuth(cfg.Token))
		pr.Get("/guilds/{guild}/channels/{channel}/schedule.ics", s.handleICS)
		pr.Get("/guilds/{guild}/channels/{channel}/upcoming", s.handleUpcoming)
		if cfg.Pprof {
			pr.Mount("/debug", middleware.Profiler())
		}
	})
	return r
}

func (s *Service) batch(w http.ResponseWriter, r *http.Request) ([]schedule.Row, schedule.Batch, bool) {
	b := schedule.Batch{GuildID: chi.URLParam(r, "guild"), ChannelID: chi.URLParam(r, "channel")}
	if !numeric(b.GuildID) || !numeric(b.ChannelID) {
		http.Error(w, "bad guild or channel id", http.StatusBadRequest)
		return nil, b, false
	}
	if s.store == nil {
		http.Error(w, "storage disabled", http.StatusServiceUnavailable)
		return nil, b, false
	}
	rows, err := s.store.ListByBatch(r.Context(), b)
	if err != nil {
		s.log.Warn("feed: list batch failed", logx.String("batch", b.String()), logx.Err(err))
		http.Error(w, "storage error", http.StatusInternalServerError)
		return nil, b, false
	}
	return rows, b, true
}

func (s *Service) handleICS(w http.ResponseWriter, r *http.Request) {
	rows, b, ok := s.batch(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	if err := board.WriteCalendar(w, s.cat, b, rows, s.now()); err != nil {
		s.log.Debug("feed: write calendar", logx.Err(err))
	}
}

type upcomingItem struct {
	RowID     int64     `json:"row_id"`
	EventType string    `json:"event_type"`
	Instance  string    `json:"instance"`
	Title     string    `json:"title"`
	At        time.Time `json:"at"`
}

func (s *Service) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	rows, _, ok := s.batch(w, r)
	if !ok {
		return
	}
	n, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items := []upcomingItem{}
	for _, e := range board.Upcoming(rows, s.now(), n) {
		items = append(items, upcomingItem{
			RowID:     e.Row.ID,
			EventType: e.Row.Key.EventType,
			Instance:  e.Row.Key.Instance,
			Title:     board.EntryTitle(s.cat, e.Row),
			At:        e.At.UTC(),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(items)
}

// Start listens on the configured address. It is a no-op when disabled or
// already running.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil || !s.cfg.Enabled {
		return nil
	}
	cur := s.cfg
	addr := strings.TrimSpace(cur.Addr)
	if addr == "" {
		addr = defaultAddr
	}
	if cur.Token == "" && !cur.AllowInsecure && !isLoopbackAddr(addr) {
		return errors.New("feed: non-loopback addr requires token or allow_insecure")
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:      s.router(cur),
		ReadTimeout:  cur.ReadTimeout,
		WriteTimeout: cur.WriteTimeout,
		IdleTimeout:  cur.IdleTimeout,
	}
	s.ln, s.srv = ln, srv
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("feed server stopped with error", logx.Err(err))
		}
	}()
	s.log.Info("feed started", logx.String("addr", ln.Addr().String()), logx.Bool("token_set", cur.Token != ""))
	return nil
}

// Addr is the bound address, or "" when stopped.
func (s *Service) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv, ln := s.srv, s.ln
	s.srv, s.ln = nil, nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	_ = ln.Close()
	err := srv.Shutdown(ctx)
	_ = srv.Close()
	s.log.Info("feed stopped")
	return err
}

func withAuth(token string) func(http.Handler) http.Handler {
	tok := strings.TrimSpace(token)
	return func(next http.Handler) http.Handler {
		if tok == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Calendar apps can only pass the token in the query string.
			if got := r.URL.Query().Get("token"); got != "" {
				if got == tok {
					next.ServeHTTP(w, r)
					return
				}
				unauthorized(w)
				return
			}
			const p = "Bearer "
			if ah := r.Header.Get("Authorization"); strings.HasPrefix(ah, p) && strings.TrimSpace(ah[len(p):]) == tok {
				next.ServeHTTP(w, r)
				return
			}
			unauthorized(w)
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

func isLoopbackAddr(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func numeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
