// Package ws serves the bridge over websockets: one Session per player,
// subscribed to the lobby, global and ship channels, with inbound frames
// dispatched as commands.
package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/bridge-simulator/internal/channel"
	"github.com/signalsfoundry/bridge-simulator/internal/command"
	"github.com/signalsfoundry/bridge-simulator/internal/logging"
	"github.com/signalsfoundry/bridge-simulator/internal/world"
)

// LoginView is the payload of the CommandResult sent right after a
// successful handshake.
type LoginView struct {
	Player world.PlayerView    `json:"player" msgpack:"player"`
	Ships  []world.ShipSummary `json:"ships" msgpack:"ships"`
}

// Option configures a Server.
type Option func(*Server)

// WithCodec sets the default codec. Clients may override it with the
// codec query parameter.
func WithCodec(c Codec) Option {
	return func(s *Server) { s.codec = c }
}

// WithMailboxSize sets the per-session outbound buffer.
func WithMailboxSize(n int) Option {
	return func(s *Server) { s.mailboxSize = n }
}

// WithWriteTimeout bounds every socket write.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Server) { s.writeTimeout = d }
}

// WithLogger sets the server logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithCheckOrigin overrides the upgrader's origin check.
func WithCheckOrigin(fn func(*http.Request) bool) Option {
	return func(s *Server) { s.upgrader.CheckOrigin = fn }
}

// Server is an http.Handler upgrading requests to player sessions.
type Server struct {
	world    *world.World
	handler  *command.Handler
	exec     command.Executor
	log      logging.Logger
	upgrader websocket.Upgrader

	codec        Codec
	mailboxSize  int
	writeTimeout time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
	wg       sync.WaitGroup
}

// NewServer builds a websocket server. exec must be the executor the
// handler runs on; nil runs reads inline.
func NewServer(w *world.World, h *command.Handler, exec command.Executor, opts ...Option) *Server {
	s := &Server{
		world:        w,
		handler:      h,
		exec:         exec,
		log:          logging.Noop(),
		codec:        JSONCodec{},
		mailboxSize:  channel.DefaultMailboxSize,
		writeTimeout: 5 * time.Second,
		sessions:     make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(logging.String("component", "ws"))
	return s
}

func (s *Server) do(ctx context.Context, fn func() error) error {
	if s.exec == nil {
		return fn()
	}
	return s.exec.Do(ctx, fn)
}

// ServeHTTP logs the player in with the name query parameter, upgrades
// the connection and runs the session until the socket closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())

	codec := s.codec
	if name := r.URL.Query().Get("codec"); name != "" {
		c, err := CodecByName(name)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		codec = c
	}

	player, err := s.handler.Login(ctx, r.URL.Query().Get("name"))
	if err != nil {
		http.Error(w, err.Error(), httpStatus(err))
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug(ctx, "upgrade failed", logging.Err(err))
		_ = s.handler.Logout(ctx, player.ID)
		return
	}

	sess := newSession(player.ID, conn, codec, s.mailboxSize, s.writeTimeout,
		s.log.With(logging.String("player_id", player.ID)))
	if !s.track(sess) {
		_ = conn.Close()
		_ = s.handler.Logout(ctx, player.ID)
		return
	}
	defer s.wg.Done()
	s.world.Channel.Subscribe(channel.Lobby, sess)
	s.world.Channel.Subscribe(channel.Global, sess)

	var ships []world.ShipSummary
	_ = s.do(ctx, func() error {
		ships = s.world.Lobby()
		return nil
	})
	welcome := command.ResultFromError(nil)
	welcome.ID = "login"
	welcome.Data = LoginView{
		Player: world.PlayerView{ID: player.ID, Name: player.Name},
		Ships:  ships,
	}
	sess.Send(channel.Message{Event: channel.EventCommandResult, Payload: welcome})

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		sess.writePump(ctx)
	}()

	sess.log.Info(ctx, "session opened", logging.String("player", player.Name), logging.String("codec", codec.Name()))
	s.readLoop(ctx, sess)

	s.world.Channel.UnsubscribeAll(player.ID)
	if err := s.handler.Logout(ctx, player.ID); err != nil {
		sess.log.Warn(ctx, "logout failed", logging.Err(err))
	}
	sess.mailbox.Close()
	<-writerDone
	s.untrack(sess)
	sess.log.Info(ctx, "session closed")
}

func (s *Server) readLoop(ctx context.Context, sess *Session) {
	conn := sess.conn
	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				sess.log.Debug(ctx, "read failed", logging.Err(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		var req command.Request
		var res command.Result
		if err := sess.codec.Unmarshal(data, &req); err != nil {
			res = command.ResultFromError(status.Errorf(codes.InvalidArgument, "malformed request: %v", err))
		} else {
			res = s.handler.Dispatch(ctx, sess.playerID, req)
		}
		sess.Send(channel.Message{Event: channel.EventCommandResult, Payload: res})
	}
}

// track registers sess. It reports false once the server is closed.
func (s *Server) track(sess *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.sessions[sess.playerID] = sess
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(sess *Session) {
	s.mu.Lock()
	if s.sessions[sess.playerID] == sess {
		delete(s.sessions, sess.playerID)
	}
	s.mu.Unlock()
}

// Sessions returns the number of open sessions.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close closes every open socket and waits for the sessions to finish.
// http.Server.Shutdown does not reach hijacked connections.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	for _, sess := range s.sessions {
		_ = sess.conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func httpStatus(err error) int {
	st, _ := status.FromError(command.ToStatusError(err))
	switch st.Code() {
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.AlreadyExists:
		return http.StatusConflict
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
