// Package client is a thin typed facade over the wire protocol (§4.8),
// the Go analogue of the original Rust localcached-client crate.
package client

import (
	"bufio"
	"fmt"
	"net"

	"github.com/adred-codev/localcached/internal/wire"
)

const defaultMaxFrameBytes = 8 << 20

// Client is a connected handle to one localcached daemon.
type Client struct {
	conn          net.Conn
	r             *bufio.Reader
	maxFrameBytes int
}

// Connect dials the daemon's Unix-domain socket at socketPath.
func Connect(socketPath string) (*Client, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("client: connect %s: %w", socketPath, err)
	}
	return &Client{conn: conn, r: bufio.NewReader(conn), maxFrameBytes: defaultMaxFrameBytes}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) roundTrip(op wire.Opcode, payload []byte) (wire.Frame, error) {
	if err := wire.WriteRequest(c.conn, op, payload); err != nil {
		return wire.Frame{}, fmt.Errorf("client: write request: %w", err)
	}
	frame, err := wire.ReadFrame(c.r, c.maxFrameBytes)
	if err != nil {
		return wire.Frame{}, fmt.Errorf("client: read response: %w", err)
	}
	return frame, nil
}

// ServerError wraps a non-Ok, non-NotFound status returned by the daemon.
type ServerError struct {
	Status wire.Status
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("client: server returned %s", e.Status)
}

// Set stores key/value with the given format and TTL (0 = no expiry).
// suppressPublish, when true, prevents the implicit TableChanged event.
func (c *Client) Set(format wire.ValueFormat, suppressPublish bool, key string, value []byte, ttlMillis uint64) error {
	frame, err := c.roundTrip(wire.OpSet, wire.EncodeSetPayload(format, suppressPublish, key, value, ttlMillis))
	if err != nil {
		return err
	}
	if wire.Status(frame.Tag) != wire.StatusOk {
		return &ServerError{Status: wire.Status(frame.Tag)}
	}
	return nil
}

// Get retrieves key. A miss is reported as (GetResponse{}, false, nil),
// not an error.
func (c *Client) Get(key string) (wire.GetResponse, bool, error) {
	frame, err := c.roundTrip(wire.OpGet, wire.EncodeKeyOnly(key))
	if err != nil {
		return wire.GetResponse{}, false, err
	}
	switch wire.Status(frame.Tag) {
	case wire.StatusOk:
		resp, err := wire.DecodeGetResponse(frame.Payload)
		if err != nil {
			return wire.GetResponse{}, false, err
		}
		return resp, true, nil
	case wire.StatusNotFound:
		return wire.GetResponse{}, false, nil
	default:
		return wire.GetResponse{}, false, &ServerError{Status: wire.Status(frame.Tag)}
	}
}

// Del removes key. Both Ok and NotFound are treated as success, matching
// the original client's del() semantics.
func (c *Client) Del(key string) error {
	frame, err := c.roundTrip(wire.OpDel, wire.EncodeKeyOnly(key))
	if err != nil {
		return err
	}
	switch wire.Status(frame.Tag) {
	case wire.StatusOk, wire.StatusNotFound:
		return nil
	default:
		return &ServerError{Status: wire.Status(frame.Tag)}
	}
}

// Ping round-trips a PING request.
func (c *Client) Ping() error {
	frame, err := c.roundTrip(wire.OpPing, nil)
	if err != nil {
		return err
	}
	if wire.Status(frame.Tag) != wire.StatusOk {
		return &ServerError{Status: wire.Status(frame.Tag)}
	}
	return nil
}

// Keys lists keys beginning with prefix.
func (c *Client) Keys(prefix string) ([]string, error) {
	frame, err := c.roundTrip(wire.OpKeys, wire.EncodeKeysRequest(prefix))
	if err != nil {
		return nil, err
	}
	if wire.Status(frame.Tag) != wire.StatusOk {
		return nil, &ServerError{Status: wire.Status(frame.Tag)}
	}
	return wire.DecodeKeysResponse(frame.Payload)
}

// ClearAll deletes every key, tolerating per-key not-found races.
func (c *Client) ClearAll() error {
	keys, err := c.Keys("")
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := c.Del(k); err != nil {
			return err
		}
	}
	return nil
}

// Stats fetches and decodes the daemon's StatsV1 block.
func (c *Client) Stats() (wire.StatsV1, error) {
	frame, err := c.roundTrip(wire.OpStats, nil)
	if err != nil {
		return wire.StatsV1{}, err
	}
	if wire.Status(frame.Tag) != wire.StatusOk {
		return wire.StatsV1{}, &ServerError{Status: wire.Status(frame.Tag)}
	}
	return wire.DecodeStatsV1(frame.Payload)
}

// SetLimitResult is the outcome of SetMemoryLimit.
type SetLimitResult struct {
	// Success is true when the server accepted the new limit.
	Success bool
	// OldPercent/NewPercent are populated when Success is true.
	OldPercent, NewPercent float64
	// MaxPercent is populated when Success is false: the server's ceiling.
	MaxPercent float64
}

// SetMemoryLimit requests a new pressure ceiling, expressed as a whole
// percentage. It validates client-side before touching the wire: values
// above 85 or equal to 0 are rejected without a round trip (§4.8).
func (c *Client) SetMemoryLimit(limitPercent uint8) (SetLimitResult, error) {
	if limitPercent == 0 {
		return SetLimitResult{}, fmt.Errorf("client: memory limit must be at least 1%%")
	}
	if limitPercent > 85 {
		return SetLimitResult{MaxPercent: 85}, nil
	}

	valueBp := uint16(limitPercent) * 100
	frame, err := c.roundTrip(wire.OpSetConfig, wire.EncodeSetConfigRequest(wire.SetConfigKindPressureHot, valueBp))
	if err != nil {
		return SetLimitResult{}, err
	}

	switch wire.Status(frame.Tag) {
	case wire.StatusOk:
		oldBp, newBp, err := wire.DecodeSetConfigResponse(frame.Payload)
		if err != nil {
			return SetLimitResult{}, err
		}
		return SetLimitResult{Success: true, OldPercent: float64(oldBp) / 100, NewPercent: float64(newBp) / 100}, nil
	case wire.StatusErrBadPayload:
		maxBp, err := wire.DecodeSetConfigRejection(frame.Payload)
		if err != nil {
			return SetLimitResult{}, err
		}
		return SetLimitResult{MaxPercent: float64(maxBp) / 100}, nil
	default:
		return SetLimitResult{}, &ServerError{Status: wire.Status(frame.Tag)}
	}
}
