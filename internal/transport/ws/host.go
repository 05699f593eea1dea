package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"emberfield/internal/protocol"
	"emberfield/internal/sim/match"
)

// Server exposes the host's authoritative matches over a websocket endpoint.
// The ?match= query selects one; empty picks the default. Each peer gets a
// buffered outbound queue; a match loop never blocks on a slow connection.
type Server struct {
	matches *match.Manager
	log     *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(matches *match.Manager, logger *log.Logger) *Server {
	return &Server{
		matches: matches,
		log:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		m := s.matches.Get(r.URL.Query().Get("match"))
		if m == nil {
			http.Error(rw, "unknown match", http.StatusNotFound)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		peerID, out := s.handshake(conn, m)
		if peerID == "" {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop. Only INJECT and RESYNC flow upstream; the host never
		// accepts state from a peer.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				continue
			}
			switch base.Type {
			case protocol.TypeInject:
				var inj protocol.InjectMsg
				if err := json.Unmarshal(msg, &inj); err != nil {
					continue
				}
				if inj.ProtocolVersion != protocol.Version {
					continue
				}
				m.Inbox() <- match.Injection{
					Kind:   inj.Kind,
					X:      inj.X,
					Y:      inj.Y,
					Amount: inj.Amount,
					Radius: inj.Radius,
					Direct: inj.Direct,
					Source: inj.Source,
				}
			case protocol.TypeResync:
				m.Resync() <- peerID
			}
		}

		m.Leave() <- peerID
	}
}

func (s *Server) handshake(conn *websocket.Conn, m *match.Match) (peerID string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return "", nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return "", nil
	}

	out = make(chan []byte, 256)
	respCh := make(chan match.JoinResponse, 1)
	m.Join() <- match.JoinRequest{Name: hello.PeerName, Out: out, Resp: respCh}
	resp := <-respCh

	if err := writeJSON(conn, resp.Welcome); err != nil {
		return "", nil
	}
	return resp.Welcome.PeerID, out
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
