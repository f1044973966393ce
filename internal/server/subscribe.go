package server

import (
	"bufio"
	"context"
	"net"

	"github.com/adred-codev/localcached/internal/keyvalidate"
	"github.com/adred-codev/localcached/internal/pubsub"
	"github.com/adred-codev/localcached/internal/wire"
)

// promoteToSubscribe decodes and validates a SUBSCRIBE request and writes
// its response (§4.7). It does only the bounded, quick-to-complete work
// that must happen while the caller still holds an opSem permit; the
// permit is released as soon as this returns (§4.7 step 4: "Release the
// permit when the response is fully written"). It reports the validated
// topic and whether the connection was actually promoted, so the caller
// can run the unbounded subscription loop outside the permit's scope.
func (s *Server) promoteToSubscribe(conn net.Conn, initialPayload []byte) (topic string, promoted bool) {
	topic, err := wire.DecodeSubscribePayload(initialPayload)
	if err != nil {
		writeStatus(conn, statusForDecodeErr(err), nil)
		return "", false
	}
	if err := keyvalidate.ValidateTopic(topic); err != nil {
		writeStatus(conn, wire.StatusErrBadPayload, nil)
		return "", false
	}

	writeStatus(conn, wire.StatusOk, nil)
	return topic, true
}

// runSubscription runs the subscription-mode loop for a connection already
// promoted by promoteToSubscribe (§4.7). It concurrently services inbound
// frames (UNSUBSCRIBE/PING) and outbound push events so neither starves
// the other (§9 "Subscription-mode demultiplexing"). This runs for the
// lifetime of the subscription, without holding an opSem permit.
func (s *Server) runSubscription(ctx context.Context, conn net.Conn, r *bufio.Reader, topic string) {
	sub := s.bus.Subscribe(topic)
	defer sub.Close()

	done := make(chan struct{})
	defer close(done)

	go s.pumpOutbound(conn, sub, done)

	s.pumpInbound(ctx, conn, r)
}

// pumpOutbound writes push events and lag notifications to the client
// until done is closed or a write fails.
func (s *Server) pumpOutbound(conn net.Conn, sub *pubsub.Subscription, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-sub.Lagged():
			if err := wire.WriteResponse(conn, wire.StatusErrLagged, nil); err != nil {
				return
			}
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := wire.WriteFrame(conn, byte(wire.StatusPushEvent), wire.EncodePushEvent(ev)); err != nil {
				return
			}
		}
	}
}

// pumpInbound reads command frames on a subscription connection:
// UNSUBSCRIBE replies Ok and ends the connection; PING replies Ok and
// continues; every other opcode is ignored (§4.7).
func (s *Server) pumpInbound(ctx context.Context, conn net.Conn, r *bufio.Reader) {
	for {
		frame, err := wire.ReadFrame(r, s.cfg.MaxFrameBytes)
		if err != nil {
			return
		}
		switch wire.Opcode(frame.Tag) {
		case wire.OpUnsubscribe:
			writeStatus(conn, wire.StatusOk, nil)
			return
		case wire.OpPing:
			writeStatus(conn, wire.StatusOk, nil)
		default:
			// Command operations are not accepted on subscription
			// connections in v1; silently ignored.
		}

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}
