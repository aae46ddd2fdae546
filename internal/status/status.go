package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/keshon/tunebooth/internal/music/session"
	"github.com/keshon/tunebooth/internal/music/sources"
	"github.com/keshon/tunebooth/internal/version"
)

var log = logrus.WithField("component", "status")

// Sessions is the read side of the session registry.
type Sessions interface {
	List() []*session.Session
	Get(guildID string) (*session.Session, bool)
}

// Server exposes session snapshots as JSON.
type Server struct {
	sessions Sessions
	router   *mux.Router
	server   *http.Server
}

func New(addr string, sessions Sessions) *Server {
	s := &Server{sessions: sessions}

	s.router = mux.NewRouter().StrictSlash(false)
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Debugf("%s %s", r.Method, r.URL.Path)
			next.ServeHTTP(w, r)
		})
	})

	s.router.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	s.router.HandleFunc("/sessions", s.list).Methods(http.MethodGet)
	s.router.HandleFunc("/sessions/{guild_id}", s.get).Methods(http.MethodGet)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return handlers.CompressHandler(handlers.RecoveryHandler(handlers.RecoveryLogger(log))(s.router))
}

// Run serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		log.Infof("status endpoint listening on %s", s.server.Addr)
		errc <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"app":      version.AppName,
		"go":       version.GoVersion,
		"built":    version.BuildDate,
		"sessions": len(s.sessions.List()),
	})
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	all := s.sessions.List()
	out := make([]sessionView, 0, len(all))
	for _, sess := range all {
		out = append(out, newSessionView(sess.Snapshot(), false))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	guildID := mux.Vars(r)["guild_id"]
	sess, ok := s.sessions.Get(guildID)
	if !ok {
		writeError(w, http.StatusNotFound, "no session for guild "+guildID)
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(sess.Snapshot(), true))
}

type trackView struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	URL             string `json:"url"`
	DurationSeconds int    `json:"duration_seconds"`
	Source          string `json:"source,omitempty"`
}

type sessionView struct {
	ID            string      `json:"id"`
	GuildID       string      `json:"guild_id"`
	VoiceChannel  string      `json:"voice_channel"`
	TextChannel   string      `json:"text_channel,omitempty"`
	State         string      `json:"state"`
	Playback      string      `json:"playback"`
	LoopMode      string      `json:"loop_mode"`
	NowPlaying    *trackView  `json:"now_playing,omitempty"`
	PreviousTrack *trackView  `json:"previous_track,omitempty"`
	QueueLength   int         `json:"queue_length"`
	Queue         []trackView `json:"queue,omitempty"`
}

func newTrackView(t sources.Track) trackView {
	return trackView{ID: t.ID, Title: t.Title, URL: t.URL, DurationSeconds: t.DurationSeconds(), Source: t.Source}
}

func newSessionView(snap session.Snapshot, withQueue bool) sessionView {
	v := sessionView{
		ID:           snap.ID,
		GuildID:      snap.GuildID,
		VoiceChannel: snap.VoiceChannel,
		TextChannel:  snap.TextChannel,
		State:        snap.State.String(),
		Playback:     snap.Playback.String(),
		LoopMode:     snap.LoopMode.String(),
		QueueLength:  len(snap.Queue),
	}
	if snap.NowPlaying != nil {
		tv := newTrackView(*snap.NowPlaying)
		v.NowPlaying = &tv
	}
	if snap.PreviousTrack != nil {
		tv := newTrackView(*snap.PreviousTrack)
		v.PreviousTrack = &tv
	}
	if withQueue {
		v.Queue = make([]trackView, 0, len(snap.Queue))
		for _, t := range snap.Queue {
			v.Queue = append(v.Queue, newTrackView(t))
		}
	}
	return v
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
