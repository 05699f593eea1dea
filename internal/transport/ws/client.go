package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"emberfield/internal/protocol"
	"emberfield/internal/sim/match"
)

// Client joins a host as a passive replica peer: it performs the handshake,
// rebuilds the grid from the seed in WELCOME, and applies every sync message
// it receives. When a delta digest stops matching it requests a full resync
// once instead of guessing.
type Client struct {
	conn    *websocket.Conn
	replica *match.Replica
	welcome protocol.WelcomeMsg
	log     *log.Logger
}

func Dial(url, peerName string, logger *log.Logger) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		PeerName:        peerName,
	}
	if err := conn.WriteJSON(hello); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send HELLO: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	var welcome protocol.WelcomeMsg
	if err := conn.ReadJSON(&welcome); err != nil {
		conn.Close()
		return nil, fmt.Errorf("read WELCOME: %w", err)
	}
	if welcome.Type != protocol.TypeWelcome {
		conn.Close()
		return nil, fmt.Errorf("expected WELCOME, got %q", welcome.Type)
	}

	return &Client{
		conn:    conn,
		replica: match.NewReplica(welcome.World, logger),
		welcome: welcome,
		log:     logger,
	}, nil
}

func (c *Client) Replica() *match.Replica      { return c.replica }
func (c *Client) Welcome() protocol.WelcomeMsg { return c.welcome }

func (c *Client) Close() error { return c.conn.Close() }

// SendInject forwards a local destruction request to the host. The local
// grid is not touched; the authoritative result comes back as sync messages.
func (c *Client) SendInject(inj protocol.InjectMsg) error {
	inj.Type = protocol.TypeInject
	inj.ProtocolVersion = protocol.Version
	return c.conn.WriteJSON(inj)
}

// Run applies incoming messages until the context ends or the connection
// drops. onApply, when non-nil, fires after each applied message.
func (c *Client) Run(ctx context.Context, onApply func(base protocol.BaseMessage)) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		base, err := protocol.DecodeBase(raw)
		if err != nil {
			continue
		}
		if err := c.replica.Apply(raw); err != nil {
			if c.log != nil {
				c.log.Printf("apply %s: %v", base.Type, err)
			}
			continue
		}
		if c.replica.Diverged() {
			c.requestResync("digest mismatch")
		}
		if onApply != nil {
			onApply(base)
		}
	}
}

func (c *Client) requestResync(reason string) {
	msg := protocol.ResyncMsg{
		Type:            protocol.TypeResync,
		ProtocolVersion: protocol.Version,
		Reason:          reason,
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil && c.log != nil {
		c.log.Printf("resync request failed: %v", err)
	}
}
