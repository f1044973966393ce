package wire

import "encoding/binary"

// StatsVersion1 is the only StatsV1 wire layout version.
const StatsVersion1 byte = 1

// StatsV1 is the decoded body of a STATS response.
type StatsV1 struct {
	UptimeMs             uint64
	KeysCount            uint64
	ApproxMemBytes       uint64
	MemAvailableBytes    uint64
	EvictionsTotal       uint64
	PubsubTopics         uint64
	EventsPublishedTotal uint64
	EventsLaggedTotal    uint64
	InvalidKeyTotal      uint64
	HitsTotal            uint64
	MissesTotal          uint64
	MemPressureBp        uint16
	PressureLimitBp      uint16
}

const statsV1BodyLen = 1 + 11*8 + 2*2

// EncodeStatsV1 encodes a StatsV1 body with its version byte prefix.
func EncodeStatsV1(s StatsV1) []byte {
	out := make([]byte, 0, statsV1BodyLen)
	out = append(out, StatsVersion1)
	out = appendU64(out, s.UptimeMs)
	out = appendU64(out, s.KeysCount)
	out = appendU64(out, s.ApproxMemBytes)
	out = appendU64(out, s.MemAvailableBytes)
	out = appendU64(out, s.EvictionsTotal)
	out = appendU64(out, s.PubsubTopics)
	out = appendU64(out, s.EventsPublishedTotal)
	out = appendU64(out, s.EventsLaggedTotal)
	out = appendU64(out, s.InvalidKeyTotal)
	out = appendU64(out, s.HitsTotal)
	out = appendU64(out, s.MissesTotal)
	out = appendU16(out, s.MemPressureBp)
	out = appendU16(out, s.PressureLimitBp)
	return out
}

// DecodeStatsV1 parses a STATS response body, checking the version byte.
func DecodeStatsV1(body []byte) (StatsV1, error) {
	if len(body) < statsV1BodyLen {
		return StatsV1{}, errBadPayload("stats: truncated body")
	}
	if body[0] != StatsVersion1 {
		return StatsV1{}, errUnsupportedFormat("stats: unknown version byte")
	}
	b := body[1:]
	readU64 := func() uint64 {
		v := binary.LittleEndian.Uint64(b)
		b = b[8:]
		return v
	}
	s := StatsV1{
		UptimeMs:             readU64(),
		KeysCount:            readU64(),
		ApproxMemBytes:       readU64(),
		MemAvailableBytes:    readU64(),
		EvictionsTotal:       readU64(),
		PubsubTopics:         readU64(),
		EventsPublishedTotal: readU64(),
		EventsLaggedTotal:    readU64(),
		InvalidKeyTotal:      readU64(),
		HitsTotal:            readU64(),
		MissesTotal:          readU64(),
	}
	s.MemPressureBp = binary.LittleEndian.Uint16(b)
	b = b[2:]
	s.PressureLimitBp = binary.LittleEndian.Uint16(b)
	return s, nil
}
