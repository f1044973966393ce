package server

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"

	"github.com/adred-codev/localcached/internal/config"
	"github.com/adred-codev/localcached/internal/keyvalidate"
	"github.com/adred-codev/localcached/internal/wire"
)

// handleConn runs the command-mode loop for one accepted connection,
// promoting to subscription mode on SUBSCRIBE (§4.7).
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	// Shutdown closes the connection out from under any blocked frame read,
	// so connection goroutines drain promptly when the context is dropped.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	r := bufio.NewReader(conn)

	for {
		frame, err := wire.ReadFrame(r, s.cfg.MaxFrameBytes)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Debug().Err(err).Msg("server: closing connection on frame read error")
			}
			return
		}

		select {
		case s.opSem <- struct{}{}:
		case <-ctx.Done():
			return
		}

		op := wire.Opcode(frame.Tag)
		if op == wire.OpSubscribe {
			topic, promoted := s.promoteToSubscribe(conn, frame.Payload)
			<-s.opSem
			if !promoted {
				// Rejected subscribe is a recoverable payload error; the
				// connection stays in command mode (§7).
				continue
			}
			s.runSubscription(ctx, conn, r, topic)
			return
		}

		s.dispatch(ctx, conn, op, frame.Payload)
		<-s.opSem
	}
}

// dispatch handles one command-mode opcode and writes exactly one response
// frame (§4.7 step 3).
func (s *Server) dispatch(ctx context.Context, conn net.Conn, op wire.Opcode, payload []byte) {
	switch op {
	case wire.OpSet:
		s.handleSet(conn, payload)
	case wire.OpGet:
		s.handleGet(conn, payload)
	case wire.OpDel:
		s.handleDel(conn, payload)
	case wire.OpPing:
		writeStatus(conn, wire.StatusOk, nil)
	case wire.OpStats:
		s.handleStats(ctx, conn)
	case wire.OpKeys:
		s.handleKeys(conn, payload)
	case wire.OpSetConfig:
		s.handleSetConfig(ctx, conn, payload)
	default:
		writeStatus(conn, wire.StatusErrInternal, nil)
	}
}

func writeStatus(w io.Writer, status wire.Status, payload []byte) {
	_ = wire.WriteResponse(w, status, payload)
}

func statusForDecodeErr(err error) wire.Status {
	var pe *wire.ProtoError
	if errors.As(err, &pe) {
		return pe.Status
	}
	return wire.StatusErrBadPayload
}

func (s *Server) handleSet(conn net.Conn, payload []byte) {
	req, err := wire.DecodeSetPayload(payload)
	if err != nil {
		writeStatus(conn, statusForDecodeErr(err), nil)
		return
	}

	parts, err := keyvalidate.Validate3Part(req.Key)
	if err != nil {
		s.metrics.IncInvalidKey()
		writeStatus(conn, wire.StatusErrInvalidKeyFormat, nil)
		return
	}

	now := nowMs()
	var expiresAt uint64
	if req.TTLMillis > 0 {
		expiresAt = now + req.TTLMillis
	}
	s.kv.Set(req.Key, req.Format, req.Value, expiresAt, now)
	s.evictor.OnWrite(req.Key)

	if !req.SuppressPublish {
		topic := keyvalidate.TopicFromKey(parts)
		s.bus.Publish(topic, wire.PushEvent{
			EventType: wire.EventTableChanged,
			Topic:     topic,
			Key:       req.Key,
			TsMillis:  now,
		})
	}

	writeStatus(conn, wire.StatusOk, nil)
}

func (s *Server) handleGet(conn net.Conn, payload []byte) {
	key, err := wire.DecodeKeyOnly(payload)
	if err != nil {
		writeStatus(conn, statusForDecodeErr(err), nil)
		return
	}

	if _, err := keyvalidate.Validate3Part(key); err != nil {
		s.metrics.IncInvalidKey()
		writeStatus(conn, wire.StatusErrInvalidKeyFormat, nil)
		return
	}

	format, value, ttl, ok := s.kv.Get(key, nowMs())
	if !ok {
		s.metrics.IncMisses()
		writeStatus(conn, wire.StatusNotFound, nil)
		return
	}
	s.metrics.IncHits()
	writeStatus(conn, wire.StatusOk, wire.EncodeGetResponse(format, value, ttl))
}

func (s *Server) handleDel(conn net.Conn, payload []byte) {
	key, err := wire.DecodeKeyOnly(payload)
	if err != nil {
		writeStatus(conn, statusForDecodeErr(err), nil)
		return
	}

	parts, err := keyvalidate.Validate3Part(key)
	if err != nil {
		s.metrics.IncInvalidKey()
		writeStatus(conn, wire.StatusErrInvalidKeyFormat, nil)
		return
	}

	existed := s.kv.Del(key)
	if !existed {
		writeStatus(conn, wire.StatusNotFound, nil)
		return
	}

	// DEL always publishes Invalidate; the wire payload for DEL carries no
	// suppress-publish flag.
	topic := keyvalidate.TopicFromKey(parts)
	s.bus.Publish(topic, wire.PushEvent{
		EventType: wire.EventInvalidate,
		Topic:     topic,
		Key:       key,
		TsMillis:  nowMs(),
	})
	writeStatus(conn, wire.StatusOk, nil)
}

func (s *Server) handleKeys(conn net.Conn, payload []byte) {
	prefix, err := wire.DecodeKeysRequest(payload)
	if err != nil {
		writeStatus(conn, statusForDecodeErr(err), nil)
		return
	}
	keys := s.kv.Keys(prefix, nowMs())
	writeStatus(conn, wire.StatusOk, wire.EncodeKeysResponse(keys))
}

func (s *Server) handleStats(ctx context.Context, conn net.Conn) {
	reading, err := s.sensor.Read(ctx)
	snap := s.metrics.Snapshot()
	st := wire.StatsV1{
		UptimeMs:             s.metrics.UptimeMs(nowMs()),
		KeysCount:            uint64(s.kv.Len()),
		ApproxMemBytes:       s.kv.ApproxMemBytes(),
		EvictionsTotal:       snap.EvictionsTotal,
		PubsubTopics:         uint64(s.bus.TopicCount()),
		EventsPublishedTotal: snap.EventsPublishedTotal,
		EventsLaggedTotal:    snap.EventsLaggedTotal,
		InvalidKeyTotal:      snap.InvalidKeyTotal,
		HitsTotal:            snap.HitsTotal,
		MissesTotal:          snap.MissesTotal,
		PressureLimitBp:      s.runtime.PressureHotBp(),
	}
	if err == nil {
		st.MemAvailableBytes = reading.AvailableBytes
		st.MemPressureBp = reading.PressureBp()
	}
	writeStatus(conn, wire.StatusOk, wire.EncodeStatsV1(st))
}

func (s *Server) handleSetConfig(ctx context.Context, conn net.Conn, payload []byte) {
	kind, valueBp, err := wire.DecodeSetConfigRequest(payload)
	if err != nil {
		writeStatus(conn, statusForDecodeErr(err), nil)
		return
	}
	if kind != wire.SetConfigKindPressureHot {
		writeStatus(conn, wire.StatusErrBadPayload, nil)
		return
	}
	if valueBp > config.MaxPressureHotBp {
		writeStatus(conn, wire.StatusErrBadPayload, wire.EncodeSetConfigRejection(config.MaxPressureHotBp))
		return
	}

	oldBp := s.runtime.SetPressureHotBp(valueBp)

	// The response is written only after forced eviction brings the store
	// under the newly implied target (§4.6).
	s.evictor.ForceEvictToTarget(ctx, valueBp)

	writeStatus(conn, wire.StatusOk, wire.EncodeSetConfigResponse(oldBp, valueBp))
}
