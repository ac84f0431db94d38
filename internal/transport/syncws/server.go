// Package syncws serves and consumes the barrier replication stream over
// websockets.
package syncws

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"coldestland.ai/internal/protocol"
	"coldestland.ai/internal/sim/registry"
	"coldestland.ai/internal/sim/replication"
)

const (
	handshakeTimeout    = 5 * time.Second
	defaultWriteTimeout = 5 * time.Second
	defaultIdleTimeout  = 60 * time.Second
)

type Options struct {
	// LoopbackOnly refuses connections from non-loopback peers.
	LoopbackOnly     bool
	CompressMinBytes int
	WriteTimeout     time.Duration
	// IdleTimeout drops a subscriber that answers neither data nor pings for
	// this long. Pings go out every IdleTimeout/2.
	IdleTimeout time.Duration
}

type Server struct {
	hub  *replication.Hub
	log  *log.Logger
	opts Options

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
	active   atomic.Int64
}

func NewServer(hub *replication.Hub, logger *log.Logger, opts Options) *Server {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = defaultIdleTimeout
	}
	return &Server{
		hub:  hub,
		log:  logger,
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// Active is the number of open sync connections.
func (s *Server) Active() int64 { return s.active.Load() }

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if s.opts.LoopbackOnly && !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		region, err := parseSubscribe(msg)
		if err != nil {
			s.reject(conn, err)
			return
		}

		sid := fmt.Sprintf("S%d", s.nextID.Add(1))
		s.active.Add(1)
		defer s.active.Add(-1)
		sub := s.hub.Subscribe(region)
		defer sub.Close()
		s.log.Printf("sync %s subscribed %s from %s", sid, region, r.RemoteAddr)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			writeErr <- s.pump(ctx, conn, sub)
		}()
		go s.keepalive(ctx, conn)

		// Reader loop: the stream is one-way; reads only detect close and
		// consume pongs.
		idle := s.opts.IdleTimeout
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(idle))
		})
		for {
			_ = conn.SetReadDeadline(time.Now().Add(idle))
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}

		cancel()
		sub.Close()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case err := <-writeErr:
			if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, replication.ErrClosed) {
				s.log.Printf("sync %s writer: %v", sid, err)
			}
		case <-time.After(500 * time.Millisecond):
		}
		s.log.Printf("sync %s closed", sid)
	}
}

func (s *Server) pump(ctx context.Context, conn *websocket.Conn, sub *replication.Subscription) error {
	for {
		ev, err := sub.Next(ctx)
		if err != nil {
			return err
		}
		data, compressed, err := protocol.EncodeFrame(ev.Message(), s.opts.CompressMinBytes)
		if err != nil {
			return err
		}
		kind := websocket.TextMessage
		if compressed {
			kind = websocket.BinaryMessage
		}
		_ = conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
		if err := conn.WriteMessage(kind, data); err != nil {
			return err
		}
	}
}

// keepalive pings the subscriber so that a quiet stream still sees pongs.
// WriteControl may run alongside the writer goroutine.
func (s *Server) keepalive(ctx context.Context, conn *websocket.Conn) {
	t := time.NewTicker(s.opts.IdleTimeout / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.opts.WriteTimeout)); err != nil {
				return
			}
		}
	}
}

func (s *Server) reject(conn *websocket.Conn, cause error) {
	code := protocol.ErrProtoBadRequest
	if errors.Is(cause, errVersion) {
		code = protocol.ErrProtoVersion
	}
	_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
	_ = conn.WriteJSON(protocol.NewError(code, cause.Error()))
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
}

var errVersion = errors.New("unsupported protocol_version")

func parseSubscribe(raw []byte) (registry.Region, error) {
	msg, err := protocol.Decode(raw)
	if err != nil {
		return registry.Region{}, err
	}
	sub, ok := msg.(*protocol.SubscribeMsg)
	if !ok {
		return registry.Region{}, fmt.Errorf("%w: first message must be %s", protocol.ErrBadFrame, protocol.TypeSubscribe)
	}
	if sub.ProtocolVersion != protocol.Version {
		return registry.Region{}, fmt.Errorf("%w %q", errVersion, sub.ProtocolVersion)
	}
	return registry.Region{World: strings.TrimSpace(sub.WorldID), Dimension: strings.TrimSpace(sub.Dimension)}, nil
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
