// Package broker bridges relay emissions across instances. The relay is
// single-process by default; when more than one instance serves connections,
// channel-scoped and broadcast frames are published to a shared backbone and
// replayed everywhere else, so a user's devices may land on any instance.
package broker

import (
	"context"
	"encoding/json"
)

// Frame scopes.
const (
	ScopeAll     = "all"     // deliver to every connection
	ScopeChannel = "channel" // deliver to one channel's members
)

// Frame is a relay emission crossing the instance boundary. Data is the wire
// envelope, forwarded verbatim.
type Frame struct {
	Origin  string          `json:"origin"`
	Scope   string          `json:"scope"`
	Channel string          `json:"channel,omitempty"`
	Data    json.RawMessage `json:"data"`
}

// Broker publishes local emissions and replays remote ones. Implementations
// must skip frames originating from the subscribing instance.
type Broker interface {
	Publish(ctx context.Context, frame Frame) error
	Subscribe(ctx context.Context, handle func(Frame)) error
	Close() error
}

// Nop is the single-instance broker: publishes go nowhere and nothing is
// replayed.
type Nop struct{}

func (Nop) Publish(context.Context, Frame) error         { return nil }
func (Nop) Subscribe(context.Context, func(Frame)) error { return nil }
func (Nop) Close() error                                 { return nil }
