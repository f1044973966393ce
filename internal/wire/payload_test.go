package wire_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/adred-codev/localcached/internal/wire"
)

func TestSetPayloadRoundTrip(t *testing.T) {
	payload := wire.EncodeSetPayload(wire.FormatJSON, false, "svcA:users:42", []byte(`{"n":1}`), 60000)
	req, err := wire.DecodeSetPayload(payload)
	require.NoError(t, err)
	require.Equal(t, wire.FormatJSON, req.Format)
	require.False(t, req.SuppressPublish)
	require.Equal(t, "svcA:users:42", req.Key)
	require.Equal(t, []byte(`{"n":1}`), req.Value)
	require.Equal(t, uint64(60000), req.TTLMillis)
}

func TestSetPayloadSuppressFlag(t *testing.T) {
	payload := wire.EncodeSetPayload(wire.FormatMsgPack, true, "a:b:c", []byte{1, 2, 3}, 0)
	req, err := wire.DecodeSetPayload(payload)
	require.NoError(t, err)
	require.True(t, req.SuppressPublish)
	require.Equal(t, wire.FormatMsgPack, req.Format)
}

func TestSetPayloadUnknownFormat(t *testing.T) {
	payload := wire.EncodeSetPayload(wire.FormatJSON, false, "a:b:c", []byte{1}, 0)
	payload[0] = 0x09 // corrupt the format byte
	_, err := wire.DecodeSetPayload(payload)
	require.Error(t, err)
	var pe *wire.ProtoError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, wire.StatusErrUnsupportedFormat, pe.Status)
}

func TestSetPayloadTruncated(t *testing.T) {
	_, err := wire.DecodeSetPayload([]byte{1, 0})
	require.Error(t, err)
	var pe *wire.ProtoError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, wire.StatusErrBadPayload, pe.Status)
}

func TestKeyOnlyRoundTrip(t *testing.T) {
	payload := wire.EncodeKeyOnly("svcA:users:42")
	key, err := wire.DecodeKeyOnly(payload)
	require.NoError(t, err)
	require.Equal(t, "svcA:users:42", key)
}

func TestKeyOnlyRejectsNonUTF8(t *testing.T) {
	bad := append([]byte{2, 0}, 0xff, 0xfe)
	_, err := wire.DecodeKeyOnly(bad)
	require.Error(t, err)
}

func TestGetResponseRoundTrip(t *testing.T) {
	body := wire.EncodeGetResponse(wire.FormatJSON, []byte("hello"), 1234)
	resp, err := wire.DecodeGetResponse(body)
	require.NoError(t, err)
	require.Equal(t, wire.FormatJSON, resp.Format)
	require.Equal(t, []byte("hello"), resp.Value)
	require.Equal(t, uint64(1234), resp.TTLRemainingMs)
}

func TestKeysRequestEmptyIsLenient(t *testing.T) {
	prefix, err := wire.DecodeKeysRequest(nil)
	require.NoError(t, err)
	require.Equal(t, "", prefix)
}

func TestKeysRequestRoundTrip(t *testing.T) {
	payload := wire.EncodeKeysRequest("svcA:users:")
	prefix, err := wire.DecodeKeysRequest(payload)
	require.NoError(t, err)
	require.Equal(t, "svcA:users:", prefix)
}

func TestKeysResponseRoundTrip(t *testing.T) {
	keys := []string{"svcA:users:1", "svcA:users:2"}
	body := wire.EncodeKeysResponse(keys)
	got, err := wire.DecodeKeysResponse(body)
	require.NoError(t, err)
	require.ElementsMatch(t, keys, got)
}

func TestSetConfigRoundTrip(t *testing.T) {
	req := wire.EncodeSetConfigRequest(wire.SetConfigKindPressureHot, 8000)
	kind, valueBp, err := wire.DecodeSetConfigRequest(req)
	require.NoError(t, err)
	require.Equal(t, wire.SetConfigKindPressureHot, kind)
	require.Equal(t, uint16(8000), valueBp)

	resp := wire.EncodeSetConfigResponse(8500, 8000)
	oldBp, newBp, err := wire.DecodeSetConfigResponse(resp)
	require.NoError(t, err)
	require.Equal(t, uint16(8500), oldBp)
	require.Equal(t, uint16(8000), newBp)
}

func TestSetConfigRejectionRoundTrip(t *testing.T) {
	body := wire.EncodeSetConfigRejection(8500)
	maxBp, err := wire.DecodeSetConfigRejection(body)
	require.NoError(t, err)
	require.Equal(t, uint16(8500), maxBp)
}

func TestSubscribePayloadRoundTrip(t *testing.T) {
	payload := wire.EncodeSubscribePayload("t:svcA:users")
	topic, err := wire.DecodeSubscribePayload(payload)
	require.NoError(t, err)
	require.Equal(t, "t:svcA:users", topic)
}

func TestPushEventRoundTrip(t *testing.T) {
	ev := wire.PushEvent{
		EventType: wire.EventTableChanged,
		Topic:     "t:svcA:users",
		Key:       "svcA:users:7",
		TsMillis:  1700000000000,
	}
	body := wire.EncodePushEvent(ev)
	got, err := wire.DecodePushEvent(body)
	require.NoError(t, err)
	require.Equal(t, ev, got)
}
