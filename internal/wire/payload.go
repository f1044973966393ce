package wire

import (
	"encoding/binary"
	"unicode/utf8"
)

// SetRequest is the decoded body of a SET frame.
type SetRequest struct {
	Format          ValueFormat
	SuppressPublish bool
	Key             string
	Value           []byte
	TTLMillis       uint64
}

// DecodeSetPayload parses `u8 fmt, u8 flags, u16 klen, key, u32 vlen, val, u64 ttl_ms`.
func DecodeSetPayload(p []byte) (SetRequest, error) {
	if len(p) < 1+1+2 {
		return SetRequest{}, errBadPayload("set: truncated header")
	}
	format := ValueFormat(p[0])
	if format != FormatJSON && format != FormatMsgPack {
		return SetRequest{}, errUnsupportedFormat("set: unknown format byte")
	}
	flags := p[1]
	suppress := flags&0x01 != 0
	p = p[2:]

	klen := int(binary.LittleEndian.Uint16(p))
	p = p[2:]
	if len(p) < klen+4+8 {
		return SetRequest{}, errBadPayload("set: truncated key/value/ttl")
	}
	keyBytes := p[:klen]
	if !utf8.Valid(keyBytes) {
		return SetRequest{}, errBadPayload("set: key not valid utf8")
	}
	key := string(keyBytes)
	p = p[klen:]

	vlen := int(binary.LittleEndian.Uint32(p))
	p = p[4:]
	if vlen == 0 || len(p) < vlen+8 {
		return SetRequest{}, errBadPayload("set: truncated value/ttl")
	}
	value := make([]byte, vlen)
	copy(value, p[:vlen])
	p = p[vlen:]

	ttl := binary.LittleEndian.Uint64(p)

	return SetRequest{
		Format:          format,
		SuppressPublish: suppress,
		Key:             key,
		Value:           value,
		TTLMillis:       ttl,
	}, nil
}

// EncodeSetPayload is the client-side encoder, mirroring DecodeSetPayload.
func EncodeSetPayload(format ValueFormat, suppressPublish bool, key string, value []byte, ttlMillis uint64) []byte {
	var flags byte
	if suppressPublish {
		flags = 1
	}
	out := make([]byte, 0, 1+1+2+len(key)+4+len(value)+8)
	out = append(out, byte(format), flags)
	out = appendU16(out, uint16(len(key)))
	out = append(out, key...)
	out = appendU32(out, uint32(len(value)))
	out = append(out, value...)
	out = appendU64(out, ttlMillis)
	return out
}

// DecodeKeyOnly parses `u16 klen, key` (GET/DEL request payload).
func DecodeKeyOnly(p []byte) (string, error) {
	if len(p) < 2 {
		return "", errBadPayload("key: truncated length")
	}
	klen := int(binary.LittleEndian.Uint16(p))
	p = p[2:]
	if len(p) < klen {
		return "", errBadPayload("key: truncated body")
	}
	if !utf8.Valid(p[:klen]) {
		return "", errBadPayload("key: not valid utf8")
	}
	return string(p[:klen]), nil
}

// EncodeKeyOnly encodes a GET/DEL request payload.
func EncodeKeyOnly(key string) []byte {
	out := make([]byte, 0, 2+len(key))
	out = appendU16(out, uint16(len(key)))
	out = append(out, key...)
	return out
}

// GetResponse is the decoded body of a successful GET response.
type GetResponse struct {
	Format         ValueFormat
	Value          []byte
	TTLRemainingMs uint64
}

// EncodeGetResponse encodes `u8 fmt, u32 vlen, val, u64 ttl_remaining_ms`.
func EncodeGetResponse(format ValueFormat, value []byte, ttlRemainingMs uint64) []byte {
	out := make([]byte, 0, 1+4+len(value)+8)
	out = append(out, byte(format))
	out = appendU32(out, uint32(len(value)))
	out = append(out, value...)
	out = appendU64(out, ttlRemainingMs)
	return out
}

// DecodeGetResponse parses the body returned above.
func DecodeGetResponse(body []byte) (GetResponse, error) {
	if len(body) < 1+4 {
		return GetResponse{}, errBadPayload("get response: truncated header")
	}
	format := ValueFormat(body[0])
	vlen := int(binary.LittleEndian.Uint32(body[1:]))
	body = body[5:]
	if len(body) < vlen+8 {
		return GetResponse{}, errBadPayload("get response: truncated value/ttl")
	}
	value := make([]byte, vlen)
	copy(value, body[:vlen])
	ttl := binary.LittleEndian.Uint64(body[vlen:])
	return GetResponse{Format: format, Value: value, TTLRemainingMs: ttl}, nil
}

// DecodeKeysRequest parses `u16 plen, prefix`.
func DecodeKeysRequest(p []byte) (string, error) {
	if len(p) == 0 {
		return "", nil
	}
	if len(p) < 2 {
		return "", errBadPayload("keys: truncated length")
	}
	plen := int(binary.LittleEndian.Uint16(p))
	p = p[2:]
	if len(p) < plen {
		return "", errBadPayload("keys: truncated prefix")
	}
	// Prefix decoding is lenient on non-UTF8 bytes: they are neither
	// rejected nor replaced, but kept as-is and matched byte-for-byte.
	// GET/SET/DEL keys are still validated strictly.
	return string(p[:plen]), nil
}

// EncodeKeysRequest encodes a KEYS request payload.
func EncodeKeysRequest(prefix string) []byte {
	out := make([]byte, 0, 2+len(prefix))
	out = appendU16(out, uint16(len(prefix)))
	out = append(out, prefix...)
	return out
}

// EncodeKeysResponse encodes `u32 count, [u16 klen, key]*count`.
func EncodeKeysResponse(keys []string) []byte {
	size := 4
	for _, k := range keys {
		size += 2 + len(k)
	}
	out := make([]byte, 0, size)
	out = appendU32(out, uint32(len(keys)))
	for _, k := range keys {
		out = appendU16(out, uint16(len(k)))
		out = append(out, k...)
	}
	return out
}

// DecodeKeysResponse parses the body produced above.
func DecodeKeysResponse(body []byte) ([]string, error) {
	if len(body) < 4 {
		return nil, errBadPayload("keys response: truncated count")
	}
	count := int(binary.LittleEndian.Uint32(body))
	body = body[4:]
	keys := make([]string, 0, count)
	for i := 0; i < count; i++ {
		if len(body) < 2 {
			return nil, errBadPayload("keys response: truncated entry")
		}
		klen := int(binary.LittleEndian.Uint16(body))
		body = body[2:]
		if len(body) < klen {
			return nil, errBadPayload("keys response: truncated key")
		}
		keys = append(keys, string(body[:klen]))
		body = body[klen:]
	}
	return keys, nil
}

// SetConfigKindPressureHot is the only SET_CONFIG config_type defined in v1.
const SetConfigKindPressureHot byte = 0x01

// DecodeSetConfigRequest parses `u8 type, u16 value_bp`.
func DecodeSetConfigRequest(p []byte) (kind byte, valueBp uint16, err error) {
	if len(p) < 3 {
		return 0, 0, errBadPayload("set_config: truncated")
	}
	return p[0], binary.LittleEndian.Uint16(p[1:3]), nil
}

// EncodeSetConfigRequest encodes a SET_CONFIG request payload.
func EncodeSetConfigRequest(kind byte, valueBp uint16) []byte {
	out := make([]byte, 3)
	out[0] = kind
	binary.LittleEndian.PutUint16(out[1:], valueBp)
	return out
}

// EncodeSetConfigResponse encodes `u16 old_bp, u16 new_bp`.
func EncodeSetConfigResponse(oldBp, newBp uint16) []byte {
	out := make([]byte, 4)
	binary.LittleEndian.PutUint16(out[0:2], oldBp)
	binary.LittleEndian.PutUint16(out[2:4], newBp)
	return out
}

// DecodeSetConfigResponse parses the body produced above.
func DecodeSetConfigResponse(body []byte) (oldBp, newBp uint16, err error) {
	if len(body) < 4 {
		return 0, 0, errBadPayload("set_config response: truncated")
	}
	return binary.LittleEndian.Uint16(body[0:2]), binary.LittleEndian.Uint16(body[2:4]), nil
}

// EncodeSetConfigRejection encodes the `u8 0x01, u16 max_bp` body sent with
// ErrBadPayload when a client tries to raise the pressure ceiling too high.
func EncodeSetConfigRejection(maxBp uint16) []byte {
	out := make([]byte, 3)
	out[0] = SetConfigKindPressureHot
	binary.LittleEndian.PutUint16(out[1:], maxBp)
	return out
}

// DecodeSetConfigRejection parses the body produced above.
func DecodeSetConfigRejection(body []byte) (maxBp uint16, err error) {
	if len(body) < 3 {
		return 0, errBadPayload("set_config rejection: truncated")
	}
	return binary.LittleEndian.Uint16(body[1:3]), nil
}

// DecodeSubscribePayload parses `u16 tlen, topic`.
func DecodeSubscribePayload(p []byte) (string, error) {
	if len(p) < 2 {
		return "", errBadPayload("subscribe: truncated length")
	}
	tlen := int(binary.LittleEndian.Uint16(p))
	p = p[2:]
	if len(p) < tlen {
		return "", errBadPayload("subscribe: truncated topic")
	}
	if !utf8.Valid(p[:tlen]) {
		return "", errBadPayload("subscribe: topic not valid utf8")
	}
	return string(p[:tlen]), nil
}

// EncodeSubscribePayload encodes a SUBSCRIBE request payload.
func EncodeSubscribePayload(topic string) []byte {
	out := make([]byte, 0, 2+len(topic))
	out = appendU16(out, uint16(len(topic)))
	out = append(out, topic...)
	return out
}

// PushEvent is a server -> client notification.
type PushEvent struct {
	EventType EventType
	Topic     string
	Key       string
	TsMillis  uint64
}

// EncodePushEvent encodes `u8 et, u16 tlen, topic, u16 klen, key, u64 ts_ms`.
func EncodePushEvent(ev PushEvent) []byte {
	out := make([]byte, 0, 1+2+len(ev.Topic)+2+len(ev.Key)+8)
	out = append(out, byte(ev.EventType))
	out = appendU16(out, uint16(len(ev.Topic)))
	out = append(out, ev.Topic...)
	out = appendU16(out, uint16(len(ev.Key)))
	out = append(out, ev.Key...)
	out = appendU64(out, ev.TsMillis)
	return out
}

// DecodePushEvent parses the body produced above.
func DecodePushEvent(body []byte) (PushEvent, error) {
	if len(body) < 1+2 {
		return PushEvent{}, errBadPayload("push event: truncated header")
	}
	et := EventType(body[0])
	body = body[1:]
	tlen := int(binary.LittleEndian.Uint16(body))
	body = body[2:]
	if len(body) < tlen+2 {
		return PushEvent{}, errBadPayload("push event: truncated topic/key")
	}
	topic := string(body[:tlen])
	body = body[tlen:]
	klen := int(binary.LittleEndian.Uint16(body))
	body = body[2:]
	if len(body) < klen+8 {
		return PushEvent{}, errBadPayload("push event: truncated key/ts")
	}
	key := string(body[:klen])
	body = body[klen:]
	ts := binary.LittleEndian.Uint64(body)
	return PushEvent{EventType: et, Topic: topic, Key: key, TsMillis: ts}, nil
}

func appendU16(b []byte, v uint16) []byte {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendU32(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendU64(b []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(b, tmp[:]...)
}
