package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	ds "github.com/starfederation/datastar-go/datastar"

	"livegraph/events"
)

const (
	TICK_INTERVAL    = time.Second
	SHUTDOWN_TIMEOUT = 5 * time.Second
)

type Server struct {
	renderer Renderer
	eventHub *events.EventHub
	handler  *http.ServeMux
	logger   *log.Logger
}

func NewServer(renderer Renderer, eventHub *events.EventHub, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		renderer: renderer,
		eventHub: eventHub,
		logger:   logger,
	}

	handler := http.NewServeMux()
	handler.HandleFunc("/", s.IndexHandler)
	handler.HandleFunc("/tick", s.TickHandler)

	for path, uiHandler := range renderer.Handlers() {
		handler.HandleFunc(path, uiHandler)
	}

	s.handler = handler

	return s
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.handler}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), SHUTDOWN_TIMEOUT)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// IndexHandler is the main entrypoint for the UI
func (s *Server) IndexHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	clientID := getClientID(w, r)
	err := s.renderer.Templates().ExecuteTemplate(w, "index", s.renderer.Data(clientID))
	if err != nil {
		s.logger.Error("couldn't execute template for index", "err", err)
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// TickHandler holds the page's SSE stream open, patching it on every hub event and once per tick.
func (s *Server) TickHandler(w http.ResponseWriter, r *http.Request) {
	clientID := getClientID(w, r)
	_, eventCh, cancel := s.eventHub.Subscribe()
	defer cancel()

	sse := ds.NewSSE(w, r)

	ctx := r.Context()
	ticker := time.NewTicker(TICK_INTERVAL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			patch := s.renderer.GeneratePatchOnEvent(event, clientID)
			if patch == nil {
				continue
			}
			if err := patch(sse); err != nil {
				s.logger.Debug("patch failed, dropping client", "client", clientID, "err", err)
				return
			}
		case <-ticker.C:
			if err := s.renderer.OnTick(sse, clientID); err != nil {
				s.logger.Debug("tick failed, dropping client", "client", clientID, "err", err)
				return
			}
		}
	}
}
