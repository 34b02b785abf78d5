package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/room4-2/aasha/config"
	"github.com/room4-2/aasha/dialogue"
	"github.com/room4-2/aasha/messages"
	"github.com/room4-2/aasha/session"
	"github.com/room4-2/aasha/twiml"

	"github.com/bytedance/sonic"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server serves the Twilio voice webhooks plus status, health, metrics and the
// live monitor.
type Server struct {
	httpServer     *http.Server
	handler        http.Handler
	sessionManager *session.Manager
	router         *dialogue.Router
	monitor        *Monitor
	config         *config.Config
}

func NewServer(cfg *config.Config, sessionManager *session.Manager, router *dialogue.Router) *Server {
	s := &Server{
		sessionManager: sessionManager,
		router:         router,
		monitor:        NewMonitor(cfg, sessionManager),
		config:         cfg,
	}

	mux := http.NewServeMux()
	for _, kind := range []dialogue.EventKind{
		dialogue.EventCallStarted,
		dialogue.EventLanguageChosen,
		dialogue.EventInformation,
		dialogue.EventDispatch,
		dialogue.EventSupport,
	} {
		mux.HandleFunc("POST "+twiml.Path(kind), s.verifyTwilio(s.handleWebhook(kind)))
	}
	mux.HandleFunc("GET /call_status/{phone}", s.handleCallStatus)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /monitor", s.monitor.handleMonitor)
	s.handler = mux

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: mux,
		// No WriteTimeout: a turn may wait on two model calls, and /monitor is long-lived.
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Start begins listening for connections
func (s *Server) Start() error {
	log.Printf("📞 Emergency line starting on port %d", s.config.Port)
	log.Printf("📡 Voice webhook: %s%s", s.publicBase(), twiml.Path(dialogue.EventCallStarted))
	log.Printf("📡 Monitor endpoint: ws://localhost:%d/monitor", s.config.Port)
	if s.config.TwilioAuthToken == "" {
		log.Println("⚠️ TWILIO_AUTH_TOKEN not set, webhook signatures are not checked")
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("🛑 Shutting down server...")
	s.monitor.Close()
	err := s.httpServer.Shutdown(ctx)
	s.sessionManager.Shutdown()
	return err
}

// Handler returns the request multiplexer
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) publicBase() string {
	if s.config.PublicURL != "" {
		return s.config.PublicURL
	}
	return fmt.Sprintf("http://localhost:%d", s.config.Port)
}

func (s *Server) handleWebhook(kind dialogue.EventKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from := r.PostForm.Get("From")
		if from == "" {
			http.Error(w, "missing From", http.StatusBadRequest)
			return
		}

		ev := dialogue.Event{
			Kind:       kind,
			Digits:     r.PostForm.Get("Digits"),
			Transcript: r.PostForm.Get("SpeechResult"),
		}
		reply, err := s.router.Handle(r.Context(), from, ev)
		if err != nil && !errors.Is(err, dialogue.ErrUnexpectedEvent) {
			log.Printf("❌ %s turn for %s: %v", kind, from, err)
		}

		body, err := twiml.Render(reply)
		if err != nil {
			log.Printf("❌ Failed to render reply for %s: %v", from, err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", twiml.ContentType)
		_, _ = w.Write(body)
	}
}

func (s *Server) handleCallStatus(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.sessionManager.Snapshot(r.Context(), r.PathValue("phone"))
	if !ok {
		writeJSON(w, messages.NoActiveCall)
		return
	}
	writeJSON(w, snap)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, messages.Health{Status: "ok", Calls: s.sessionManager.GetActiveSessionCount()})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	data, err := sonic.Marshal(v)
	if err != nil {
		log.Printf("❌ Failed to encode response: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
