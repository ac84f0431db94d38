package syncws

import (
	"context"
	"fmt"
	"log"

	"github.com/gorilla/websocket"

	"coldestland.ai/internal/protocol"
	"coldestland.ai/internal/sim/registry"
	"coldestland.ai/internal/sim/replication"
)

// Client subscribes to one region and feeds every event to a Mirror. It does
// not reconnect; callers loop on Run.
type Client struct {
	URL    string
	Region registry.Region
	Mirror *replication.Mirror
	Logger *log.Logger
	Dialer *websocket.Dialer
}

func NewClient(url string, region registry.Region, mirror *replication.Mirror, logger *log.Logger) *Client {
	return &Client{URL: url, Region: region, Mirror: mirror, Logger: logger, Dialer: websocket.DefaultDialer}
}

// Run streams events until the connection fails or ctx is done. It returns
// the number of events delivered alongside the terminating error.
func (c *Client) Run(ctx context.Context) (int, error) {
	conn, _, err := c.Dialer.DialContext(ctx, c.URL, nil)
	if err != nil {
		return 0, fmt.Errorf("dial %s: %w", c.URL, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if err := conn.WriteJSON(protocol.NewSubscribe(c.Region.World, c.Region.Dimension)); err != nil {
		return 0, fmt.Errorf("send SUBSCRIBE: %w", err)
	}

	n := 0
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return n, ctx.Err()
			}
			return n, err
		}
		raw, err := protocol.DecodeFrame(data, kind == websocket.BinaryMessage)
		if err != nil {
			return n, err
		}
		msg, err := protocol.Decode(raw)
		if err != nil {
			return n, err
		}
		if e, ok := msg.(*protocol.ErrorMsg); ok {
			return n, fmt.Errorf("server error %s: %s", e.Code, e.Message)
		}
		ev, err := replication.EventFromMessage(msg)
		if err != nil {
			return n, err
		}
		if ev.Region != c.Region {
			c.Logger.Printf("ignoring %s for %s", ev.Kind, ev.Region)
			continue
		}
		c.Mirror.Deliver(ev)
		n++
	}
}
