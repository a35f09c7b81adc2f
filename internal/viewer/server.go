// Package viewer serves the animation to browser renderers over WebSocket.
// A renderer announces its morph targets and bones; the engine binds to
// them as it would to a local model and streams weights back every frame.
package viewer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/normanking/facerig/internal/avatar3d"
	"github.com/normanking/facerig/internal/bus"
	"github.com/normanking/facerig/internal/logging"
	"github.com/normanking/facerig/internal/metrics"
)

// Reloader is the part of the session the server drives.
type Reloader interface {
	Reload(rig avatar3d.Rig)
}

// Message types
const (
	TypeHello = "hello"
	TypeFrame = "frame"
	TypeSpeak = "speak"
)

// ClientMessage is anything a renderer sends.
type ClientMessage struct {
	Type         string     `json:"type"`
	MorphTargets []string   `json:"morphTargets,omitempty"`
	Bones        []BoneInfo `json:"bones,omitempty"`
	Text         string     `json:"text,omitempty"`
}

// FrameMessage carries weights in the receiving client's target order.
type FrameMessage struct {
	Type    string    `json:"type"`
	T       float64   `json:"t"`
	Symbol  string    `json:"symbol"`
	Weights []float32 `json:"weights"`
	Head    *HeadPose `json:"head,omitempty"`
}

type Options struct {
	Addr       string
	SendBuffer int
	Bus        *bus.EventBus
	// OnSpeak handles {"type":"speak"} messages. Nil ignores them.
	OnSpeak func(text string)
	// History backs /logs. Nil disables the endpoint.
	History func(limit int) []logging.LogEntry
}

type client struct {
	id      string
	conn    *websocket.Conn
	send    chan []byte
	targets []string
	bones   []BoneInfo
	hello   bool
}

// Server implements avatar3d.FrameSink.
type Server struct {
	opts     Options
	session  Reloader
	logger   zerolog.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
	rig     *RemoteRig
	nextID  int
	dropped int
}

func NewServer(session Reloader, logger zerolog.Logger, opts Options) *Server {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 8
	}
	return &Server{
		opts:    opts,
		session: session,
		logger:  logger.With().Str("component", "viewer").Logger(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // local renderer pages
		},
		clients: make(map[*client]struct{}),
	}
}

// Handler routes /ws, /metrics, /healthz and /logs.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.wsHandler)
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	if s.opts.History != nil {
		mux.HandleFunc("/logs", s.logsHandler)
	}
	return mux
}

// ListenAndServe blocks until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	server := &http.Server{Addr: s.opts.Addr, Handler: s.Handler()}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.opts.Addr).Msg("Viewer server listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return ctx.Err()
	}
}

func (s *Server) logsHandler(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 100
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.opts.History(limit))
}

func (s *Server) wsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	s.mu.Lock()
	s.nextID++
	c := &client{
		id:   r.RemoteAddr + "#" + strconv.Itoa(s.nextID),
		conn: conn,
		send: make(chan []byte, s.opts.SendBuffer),
	}
	s.clients[c] = struct{}{}
	count := len(s.clients)
	s.mu.Unlock()

	metrics.ViewerClients.Set(float64(count))
	s.publish(bus.EventTypeViewerConnected, c.id)
	s.logger.Info().Str("remote", c.id).Msg("Viewer connected")

	done := make(chan struct{})
	go s.writeLoop(c, done)
	s.readLoop(c)

	close(done)
	s.remove(c)
	conn.Close()
}

func (s *Server) readLoop(c *client) {
	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug().Err(err).Str("remote", c.id).Msg("Viewer read ended")
			}
			return
		}

		switch msg.Type {
		case TypeHello:
			s.mu.Lock()
			c.targets = msg.MorphTargets
			c.bones = msg.Bones
			c.hello = true
			s.mu.Unlock()
			s.logger.Info().
				Str("remote", c.id).
				Int("targets", len(msg.MorphTargets)).
				Int("bones", len(msg.Bones)).
				Msg("Viewer announced model")
			s.rebuild()
		case TypeSpeak:
			if s.opts.OnSpeak != nil && msg.Text != "" {
				go s.opts.OnSpeak(msg.Text)
			}
		default:
			s.logger.Debug().Str("type", msg.Type).Msg("Ignoring viewer message")
		}
	}
}

func (s *Server) writeLoop(c *client, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(time.Second))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.logger.Debug().Err(err).Str("remote", c.id).Msg("Viewer write failed")
				c.conn.Close()
				return
			}
		}
	}
}

func (s *Server) remove(c *client) {
	s.mu.Lock()
	delete(s.clients, c)
	count := len(s.clients)
	hadModel := c.hello
	s.mu.Unlock()

	metrics.ViewerClients.Set(float64(count))
	s.publish(bus.EventTypeViewerDisconnected, c.id)
	s.logger.Info().Str("remote", c.id).Msg("Viewer disconnected")
	if hadModel {
		s.rebuild()
	}
}

// rebuild binds the session to the union of every announced model.
func (s *Server) rebuild() {
	s.mu.Lock()
	var targets []string
	var bones []BoneInfo
	for c := range s.clients {
		if c.hello {
			targets = append(targets, c.targets...)
			bones = append(bones, c.bones...)
		}
	}
	var rig *RemoteRig
	if len(targets) > 0 || len(bones) > 0 {
		rig = NewRemoteRig(targets, bones)
		rig.Inherit(s.rig)
	}
	s.rig = rig
	s.mu.Unlock()

	if rig == nil {
		s.session.Reload(nil)
		return
	}
	s.session.Reload(rig)
}

// Rig returns the rig the session was last told to bind, or nil.
func (s *Server) Rig() *RemoteRig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rig
}

// Frame sends the rig state to every client that announced a model. A client
// whose queue is full misses the frame.
func (s *Server) Frame(f avatar3d.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rig == nil {
		return
	}
	head := s.rig.Head()

	for c := range s.clients {
		if !c.hello {
			continue
		}
		data, err := json.Marshal(FrameMessage{
			Type:    TypeFrame,
			T:       f.Time,
			Symbol:  string(f.Symbol),
			Weights: s.rig.Gather(c.targets),
			Head:    head,
		})
		if err != nil {
			continue
		}
		select {
		case c.send <- data:
		default:
			s.dropped++
		}
	}
}

// Dropped counts frames skipped for slow clients.
func (s *Server) Dropped() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dropped
}

func (s *Server) publish(t bus.EventType, remote string) {
	if s.opts.Bus == nil {
		return
	}
	s.opts.Bus.Publish(bus.Event{Type: t, Data: map[string]any{bus.KeyRemote: remote}})
}
