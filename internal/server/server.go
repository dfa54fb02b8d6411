// Package server exposes conversations over websockets. Every connection owns
// one model session and one conversation machine; machine events are pushed to
// the client as they happen.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"specarch/internal/conversation"
	"specarch/internal/document"
	"specarch/internal/metrics"
	"specarch/internal/phase"
	"specarch/internal/transport"
	"specarch/internal/usage"
)

const shutdownTimeout = 10 * time.Second

// Options configures a Server.
type Options struct {
	// AllowedOrigins applies to CORS and to the websocket origin check. "*"
	// allows any origin.
	AllowedOrigins []string
	// MachineOptions are applied to every per-connection machine.
	MachineOptions []conversation.Option
}

// Server serves /ws, /healthz and /metrics.
type Server struct {
	transport transport.Transport
	opts      Options
	logger    *zap.Logger
	metrics   *metrics.Collector
	upgrader  websocket.Upgrader

	mu      sync.Mutex
	clients map[string]*client
	conns   sync.WaitGroup
}

func New(tr transport.Transport, opts Options, logger *zap.Logger, collector *metrics.Collector) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if collector == nil {
		collector = metrics.New()
	}
	s := &Server{
		transport: tr,
		opts:      opts,
		logger:    logger,
		metrics:   collector,
		clients:   make(map[string]*client),
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	return s
}

// Handler returns the routed handler with CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", s.metrics.Handler())

	c := cors.New(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Requested-With"},
	})
	return c.Handler(mux)
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down and
// closes every open connection.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		s.CloseAll()
		return err
	})
	return g.Wait()
}

// CloseAll disconnects every client and waits for their handlers to return.
func (s *Server) CloseAll() {
	s.mu.Lock()
	for _, c := range s.clients {
		_ = c.conn.Close()
	}
	s.mu.Unlock()
	s.conns.Wait()
}

// Connections returns the number of open websocket sessions.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return slices.Contains(s.opts.AllowedOrigins, "*") || slices.Contains(s.opts.AllowedOrigins, origin)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":      "ok",
		"connections": s.Connections(),
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	s.conns.Add(1)
	defer s.conns.Done()

	c := newClient(uuid.NewString(), conn, s.logger)
	log := s.logger.With(zap.String("conn", c.id))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session, err := s.transport.OpenSession(ctx, phase.SystemInstruction)
	if err != nil {
		log.Error("open session failed", zap.Error(err))
		_ = conn.WriteJSON(frame{Type: frameError, Error: err.Error()})
		_ = conn.Close()
		return
	}

	tokens := usage.NewTracker("")
	opts := append([]conversation.Option{
		conversation.WithLogger(log.Named("conversation")),
		conversation.WithRecorder(s.metrics),
		conversation.WithUsage(tokens),
	}, s.opts.MachineOptions...)
	opts = append(opts, conversation.WithObserver(func(ev conversation.Event) {
		c.enqueue(frame{Type: frameEvent, Event: toEvent(ev)})
	}))
	m := conversation.New(session, opts...)

	s.register(c)
	defer s.unregister(c)
	go c.writePump()

	log.Info("client connected")
	c.enqueue(frame{Type: frameState, Conn: c.id, State: toState(m.Snapshot())})

	var inflight sync.WaitGroup
	for {
		var cmd command
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("websocket read failed", zap.Error(err))
			}
			break
		}
		s.dispatch(ctx, c, m, cmd, &inflight)
	}

	cancel()
	m.Close()
	inflight.Wait()
	c.stop()
	_ = conn.Close()
	stats := tokens.Stats()
	log.Info("client disconnected",
		zap.Int("turns", stats.Turns),
		zap.Int64("input_tokens", stats.Total.Input),
		zap.Int64("output_tokens", stats.Total.Output))
}

func (s *Server) register(c *client) {
	s.mu.Lock()
	s.clients[c.id] = c
	s.mu.Unlock()
	s.metrics.ConnectionOpened()
}

func (s *Server) unregister(c *client) {
	s.mu.Lock()
	delete(s.clients, c.id)
	s.mu.Unlock()
	s.metrics.ConnectionClosed()
}

// dispatch applies one command. Sends run in their own goroutine so that
// abort and document edits are handled while a turn streams.
func (s *Server) dispatch(ctx context.Context, c *client, m *conversation.Machine, cmd command, inflight *sync.WaitGroup) {
	if cmd.Type == cmdSend {
		inflight.Add(1)
		go func() {
			defer inflight.Done()
			err := m.Submit(ctx, cmd.Text)
			if rejected(err) {
				c.enqueue(frame{Type: frameError, Error: err.Error()})
				return
			}
			c.enqueue(frame{Type: frameState, State: toState(m.Snapshot())})
		}()
		return
	}

	if err := s.apply(m, cmd); err != nil {
		c.enqueue(frame{Type: frameError, Error: err.Error()})
		return
	}
	c.enqueue(frame{Type: frameState, State: toState(m.Snapshot())})
}

func (s *Server) apply(m *conversation.Machine, cmd command) error {
	switch cmd.Type {
	case cmdSetActiveDocument:
		name, err := document.Parse(cmd.Document)
		if err != nil {
			return err
		}
		return m.SetActiveDocument(name)
	case cmdSetThinkingMode:
		m.SetThinkingMode(cmd.Enabled)
		return nil
	case cmdToggleEditing:
		name, err := document.Parse(cmd.Document)
		if err != nil {
			return err
		}
		return m.ToggleEditing(name)
	case cmdUpdateDocument:
		name, err := document.Parse(cmd.Document)
		if err != nil {
			return err
		}
		return m.UpdateDocumentContent(name, cmd.Content)
	case cmdAbort:
		m.Abort()
		return nil
	case cmdState:
		return nil
	default:
		return fmt.Errorf("unknown command type %q", cmd.Type)
	}
}

// rejected reports whether err means the command was refused without any
// state change. Turn failures are already visible in the message log.
func rejected(err error) bool {
	for _, target := range []error{
		conversation.ErrBlankInput,
		conversation.ErrBusy,
		conversation.ErrNoSession,
		conversation.ErrFinalized,
		conversation.ErrNotComplete,
		conversation.ErrClosed,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
