package ws

import (
	"context"
	"time"

	"github.com/gorilla/websocket"

	"github.com/signalsfoundry/bridge-simulator/internal/channel"
	"github.com/signalsfoundry/bridge-simulator/internal/logging"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	maxFrameSize = 64 << 10
)

// Session is one connected player. It subscribes to channels through its
// mailbox and drains it onto the socket from a single writer goroutine.
type Session struct {
	playerID string
	conn     *websocket.Conn
	codec    Codec
	mailbox  *channel.Mailbox
	log      logging.Logger

	writeTimeout time.Duration
}

func newSession(playerID string, conn *websocket.Conn, codec Codec, mailboxSize int, writeTimeout time.Duration, log logging.Logger) *Session {
	return &Session{
		playerID:     playerID,
		conn:         conn,
		codec:        codec,
		mailbox:      channel.NewMailbox(playerID, mailboxSize),
		log:          log,
		writeTimeout: writeTimeout,
	}
}

// ID implements channel.Subscriber. It is the player id.
func (s *Session) ID() string { return s.playerID }

// Send implements channel.Subscriber. It never blocks; a full mailbox
// drops the message.
func (s *Session) Send(msg channel.Message) bool { return s.mailbox.Send(msg) }

// writePump owns every write to conn. It returns once the mailbox is
// closed or a write fails.
func (s *Session) writePump(ctx context.Context) {
	ping := time.NewTicker(pingInterval)
	defer func() {
		ping.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.mailbox.Receive():
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			data, err := s.codec.Marshal(msg)
			if err != nil {
				s.log.Warn(ctx, "encode failed", logging.String("event", msg.Event), logging.Err(err))
				continue
			}
			if err := s.conn.WriteMessage(s.codec.FrameType(), data); err != nil {
				s.log.Debug(ctx, "write failed", logging.Err(err))
				return
			}
		case <-ping.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
