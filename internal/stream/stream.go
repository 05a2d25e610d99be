// Package stream maintains the single long-lived SSE subscription that pushes
// new messages into the store.
//
// One Client serves one session token; token rotation means Close and Open.
// A transport error is terminal for the handle: there is no auto-reconnect,
// only a fresh bootstrap or restore builds a new subscription.
package stream

import (
	"context"
	"net/url"

	sse "github.com/r3labs/sse/v2"
	"go.uber.org/zap"
	backoff "gopkg.in/cenkalti/backoff.v1"

	"chatsync/internal/errs"
)

// Sink receives decoded push messages; implemented by the store.
type Sink interface {
	ReceiveMessage(msg NewMessage)
}

// Client is one live subscription. Close is the only legal way to stop it.
type Client struct {
	cancel context.CancelFunc
	done   chan struct{}
	log    *zap.Logger
}

// Open starts a subscription to base keyed by the session token and forwards
// decoded events into sink from a background goroutine.
func Open(ctx context.Context, base, token string, sink Sink, log *zap.Logger) *Client {
	endpoint := base + "?token=" + url.QueryEscape(token)

	cli := sse.NewClient(endpoint)
	// Terminal on disconnect; the store owns reconstruction.
	cli.ReconnectStrategy = &backoff.StopBackOff{}

	ctx, cancel := context.WithCancel(ctx)
	c := &Client{cancel: cancel, done: make(chan struct{}), log: log}
	go c.run(ctx, cli, sink)
	return c
}

func (c *Client) run(ctx context.Context, cli *sse.Client, sink Sink) {
	defer close(c.done)

	err := cli.SubscribeRawWithContext(ctx, func(msg *sse.Event) {
		ev, err := Decode(string(msg.Event), msg.Data)
		if err != nil {
			c.log.Warn("bad push event", zap.ByteString("event", msg.Event), zap.Error(err))
			return
		}
		switch e := ev.(type) {
		case NewMessage:
			sink.ReceiveMessage(e)
		case Unknown:
			c.log.Debug("dropping unhandled push event",
				zap.String("event", e.Name),
				zap.Int("bytes", len(e.Data)),
			)
		}
	})
	if ctx.Err() != nil {
		return
	}
	if err == nil {
		err = errs.ErrStreamDisconnected
	}
	// Messages silently stop arriving from here on; surfaced only in logs.
	c.log.Warn("stream disconnected", zap.Error(err))
}

// Close tears the subscription down and waits for the forwarding goroutine to
// drain, so no push lands after Close returns.
func (c *Client) Close() {
	c.cancel()
	<-c.done
}
