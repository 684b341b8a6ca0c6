package client

import (
	"context"

	"go.uber.org/zap"

	"github.com/luma/cask/protocol"
)

// Client wraps an Exchange with one method per command. Each call is a
// separate exchange, and so a separate connection.
type Client struct {
	exchange *Exchange
	log      *zap.Logger
}

func New(config Config, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}

	return &Client{
		exchange: NewExchange(config, log.Named("exchange")),
		log:      log,
	}
}

func (c *Client) Exchange() *Exchange {
	return c.exchange
}

func (c *Client) Set(ctx context.Context, key string, value []byte) error {
	_, err := c.do(ctx, protocol.SET, []byte(key), value)
	return err
}

// Get returns the value stored under key. A missing key is reported by the
// server and matches protocol.ErrNotFound.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	return c.do(ctx, protocol.GET, []byte(key))
}

func (c *Client) Delete(ctx context.Context, key string) error {
	_, err := c.do(ctx, protocol.DELETE, []byte(key))
	return err
}

func (c *Client) Merge(ctx context.Context) error {
	_, err := c.do(ctx, protocol.MERGE)
	return err
}

func (c *Client) do(ctx context.Context, cmd protocol.Command, args ...[]byte) ([]byte, error) {
	resp, err := c.exchange.Do(ctx, cmd, args...)
	if err != nil {
		return nil, err
	}

	reply := protocol.ParseReply(resp)
	if err := reply.ErrorOrNil(); err != nil {
		return nil, err
	}

	return reply.Value, nil
}
