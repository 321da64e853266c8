package endpoint

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mossy-p/classroom-signaling/internal/models"
	"github.com/pion/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

var ErrSignalingClosed = errors.New("endpoint: signaling connection closed")

// Signaler carries envelopes to and from the broker.
type Signaler interface {
	Send(msg *models.Envelope) error
	// Incoming is closed when the connection ends.
	Incoming() <-chan *models.Envelope
	Close() error
}

// WSSignaler is a Signaler over a WebSocket connection to the broker.
type WSSignaler struct {
	conn      *websocket.Conn
	incoming  chan *models.Envelope
	outgoing  chan *models.Envelope
	done      chan struct{}
	closeOnce sync.Once
	log       logging.LeveledLogger
}

// Dial connects to the broker's /ws endpoint.
func Dial(ctx context.Context, url string, loggerFactory logging.LoggerFactory) (*WSSignaler, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	if loggerFactory == nil {
		loggerFactory = logging.NewDefaultLoggerFactory()
	}
	s := &WSSignaler{
		conn:     conn,
		incoming: make(chan *models.Envelope, 16),
		outgoing: make(chan *models.Envelope, 16),
		done:     make(chan struct{}),
		log:      loggerFactory.NewLogger("signaling"),
	}

	conn.SetReadLimit(maxMessageSize)
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go s.readPump()
	go s.writePump()

	return s, nil
}

func (s *WSSignaler) readPump() {
	defer func() {
		s.Close()
		s.conn.Close()
		close(s.incoming)
	}()

	s.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warnf("signaling read failed: %v", err)
			}
			return
		}

		msg, err := models.Decode(data)
		if err != nil {
			s.log.Warnf("dropping malformed message from broker: %v", err)
			continue
		}

		select {
		case s.incoming <- msg:
		case <-s.done:
			return
		}
	}
}

func (s *WSSignaler) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		s.Close()
		s.conn.Close()
	}()

	for {
		select {
		case msg := <-s.outgoing:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(msg); err != nil {
				s.log.Warnf("signaling write failed: %v", err)
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-s.done:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// Send queues msg for the write pump.
func (s *WSSignaler) Send(msg *models.Envelope) error {
	select {
	case <-s.done:
		return ErrSignalingClosed
	default:
	}
	select {
	case s.outgoing <- msg:
		return nil
	case <-s.done:
		return ErrSignalingClosed
	}
}

func (s *WSSignaler) Incoming() <-chan *models.Envelope {
	return s.incoming
}

// Close sends a close frame and shuts both pumps down. Either pump calls it
// on exit, so Send fails fast once the broker goes away.
func (s *WSSignaler) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}
