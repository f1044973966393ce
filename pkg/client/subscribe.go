package client

import (
	"fmt"

	"github.com/adred-codev/localcached/internal/wire"
)

// Subscriber is a connection that has been promoted to subscription mode
// (§4.7). Once created, the underlying Client must not be used for any
// other request.
type Subscriber struct {
	c *Client
}

// Subscribe sends SUBSCRIBE for topic and returns a Subscriber for
// receiving push events. The connection is permanently promoted; it can no
// longer issue command-mode requests.
func (c *Client) Subscribe(topic string) (*Subscriber, error) {
	frame, err := c.roundTrip(wire.OpSubscribe, wire.EncodeSubscribePayload(topic))
	if err != nil {
		return nil, err
	}
	if wire.Status(frame.Tag) != wire.StatusOk {
		return nil, &ServerError{Status: wire.Status(frame.Tag)}
	}
	return &Subscriber{c: c}, nil
}

// Next blocks for the next push event or lag notification. A returned
// lagged=true means the subscriber missed one or more events and should
// treat its view of the topic as resynchronized from this point on.
func (s *Subscriber) Next() (event wire.PushEvent, lagged bool, err error) {
	frame, err := wire.ReadFrame(s.c.r, s.c.maxFrameBytes)
	if err != nil {
		return wire.PushEvent{}, false, fmt.Errorf("client: reading push frame: %w", err)
	}
	if wire.Status(frame.Tag) == wire.StatusErrLagged {
		return wire.PushEvent{}, true, nil
	}
	if frame.Tag != byte(wire.StatusPushEvent) {
		return wire.PushEvent{}, false, fmt.Errorf("client: unexpected frame tag 0x%02x on subscription", frame.Tag)
	}
	ev, err := wire.DecodePushEvent(frame.Payload)
	if err != nil {
		return wire.PushEvent{}, false, err
	}
	return ev, false, nil
}

// Unsubscribe sends UNSUBSCRIBE and closes the connection (v1 always
// terminates the connection on unsubscribe, per §9).
func (s *Subscriber) Unsubscribe() error {
	defer s.c.Close()
	if err := wire.WriteRequest(s.c.conn, wire.OpUnsubscribe, nil); err != nil {
		return err
	}
	// Push events and lag notifications already in flight may arrive ahead
	// of the Ok; skip past them.
	for {
		frame, err := wire.ReadFrame(s.c.r, s.c.maxFrameBytes)
		if err != nil {
			return err
		}
		switch {
		case frame.Tag == byte(wire.StatusPushEvent), wire.Status(frame.Tag) == wire.StatusErrLagged:
			continue
		case wire.Status(frame.Tag) == wire.StatusOk:
			return nil
		default:
			return &ServerError{Status: wire.Status(frame.Tag)}
		}
	}
}
