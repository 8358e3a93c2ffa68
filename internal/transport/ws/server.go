package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"garrison.ai/internal/protocol"
	"garrison.ai/internal/sim/garrison"
	"garrison.ai/internal/sim/tuning"
	"garrison.ai/internal/sim/world"
)

type Server struct {
	realm  *world.Realm
	log    *zap.Logger
	limits tuning.RateLimits
	outbox int

	upgrader websocket.Upgrader
}

func NewServer(r *world.Realm, tune tuning.Tuning, logger *zap.Logger) *Server {
	return &Server{
		realm:  r,
		log:    logger,
		limits: tune.RateLimits,
		outbox: tune.OutboxSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		playerID, out := s.handshake(conn)
		if playerID == 0 {
			return
		}
		log := s.log.With(zap.Uint64("player_id", playerID))

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine. It also drops the connection once the realm
		// stops, which unblocks the reader.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-s.realm.Done():
					cancel()
					_ = conn.Close()
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		limiter := rate.NewLimiter(rate.Limit(s.limits.RequestsPerSecond), s.limits.Burst)

		// Reader loop.
	read:
		for {
			_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil || !protocol.IsRequestType(base.Type) {
				s.reject(out, base.Type, protocol.ErrProtoBadRequest, "unknown message")
				continue
			}
			if base.ProtocolVersion != protocol.Version {
				s.reject(out, base.Type, protocol.ErrProtoBadRequest, "bad protocol_version")
				continue
			}
			if !limiter.Allow() {
				s.reject(out, base.Type, protocol.ErrRateLimit, "slow down")
				continue
			}
			var req protocol.RequestMsg
			if err := json.Unmarshal(msg, &req); err != nil {
				s.reject(out, base.Type, protocol.ErrProtoBadRequest, "malformed request")
				continue
			}
			select {
			case s.realm.Inbox() <- world.RequestEnvelope{PlayerID: playerID, Req: req}:
			case <-ctx.Done():
				break read
			case <-s.realm.Done():
				cancel()
				break read
			}
		}

		// Cleanup. ctx is already cancelled here.
		s.leave(playerID)
		log.Debug("connection closed")
	}
}

func (s *Server) handshake(conn *websocket.Conn) (playerID uint64, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return 0, nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closePolicy(conn, "expected HELLO")
		return 0, nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		closePolicy(conn, "bad HELLO")
		return 0, nil
	}
	if hello.ProtocolVersion != protocol.Version {
		closePolicy(conn, "bad protocol_version")
		return 0, nil
	}
	team, ok := garrison.ParseTeam(hello.Team)
	if !ok {
		closePolicy(conn, "bad team")
		return 0, nil
	}
	if hello.PlayerName == "" {
		hello.PlayerName = "player"
	}

	size := s.outbox
	if q := hello.Capabilities.MaxQueue; q > 0 && q < size {
		size = q
	}
	out = make(chan []byte, size)

	join := world.JoinRequest{
		Name: hello.PlayerName,
		Team: team,
		Out:  out,
		Resp: make(chan world.JoinResponse, 1),
	}
	if hello.Auth != nil {
		join.Token = hello.Auth.Token
	}
	var resp world.JoinResponse
	select {
	case s.realm.Join() <- join:
	case <-s.realm.Done():
		closeGoingAway(conn)
		return 0, nil
	}
	// The join channel is buffered, so the realm may stop before answering.
	select {
	case resp = <-join.Resp:
	case <-s.realm.Done():
		closeGoingAway(conn)
		return 0, nil
	}
	if resp.Error != nil {
		_ = writeJSON(conn, resp.Error)
		closePolicy(conn, resp.Error.Code)
		return 0, nil
	}

	if err := writeJSON(conn, resp.Welcome); err != nil {
		s.leave(resp.Welcome.PlayerID)
		return 0, nil
	}
	s.log.Info("session started",
		zap.Uint64("player_id", resp.Welcome.PlayerID),
		zap.String("session_id", resp.Welcome.SessionID))
	return resp.Welcome.PlayerID, out
}

// leave gives up once the realm has stopped; it saves on shutdown anyway.
func (s *Server) leave(playerID uint64) {
	select {
	case s.realm.Leave() <- playerID:
	case <-s.realm.Done():
	}
}

// reject queues an ERROR without blocking the reader.
func (s *Server) reject(out chan []byte, forType, code, message string) {
	b, err := json.Marshal(protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		For:             forType,
		Code:            code,
		Message:         message,
	})
	if err != nil {
		return
	}
	select {
	case out <- b:
	default:
	}
}

func closePolicy(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), time.Now().Add(time.Second))
}

func closeGoingAway(conn *websocket.Conn) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
