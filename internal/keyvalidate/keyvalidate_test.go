package keyvalidate_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/adred-codev/localcached/internal/keyvalidate"
)

func TestValidate3Part(t *testing.T) {
	cases := []struct {
		key     string
		wantErr bool
		parts   keyvalidate.Parts
	}{
		{"svcA:users:42", false, keyvalidate.Parts{Service: "svcA", Table: "users", PK: "42"}},
		{"svcA:users:a:b:c", false, keyvalidate.Parts{Service: "svcA", Table: "users", PK: "a:b:c"}},
		{"svcA:users:", true, keyvalidate.Parts{}},
		{":users:42", true, keyvalidate.Parts{}},
		{"svcA::42", true, keyvalidate.Parts{}},
		{"svcA:users", true, keyvalidate.Parts{}},
		{"", true, keyvalidate.Parts{}},
		{"noColonsAtAll", true, keyvalidate.Parts{}},
	}
	for _, tc := range cases {
		got, err := keyvalidate.Validate3Part(tc.key)
		if tc.wantErr {
			require.Errorf(t, err, "key %q", tc.key)
			continue
		}
		require.NoErrorf(t, err, "key %q", tc.key)
		require.Equal(t, tc.parts, got)
	}
}

func TestTopicFromKey(t *testing.T) {
	parts, err := keyvalidate.Validate3Part("svcA:users:42")
	require.NoError(t, err)
	require.Equal(t, "t:svcA:users", keyvalidate.TopicFromKey(parts))
}

func TestValidateTopic(t *testing.T) {
	require.NoError(t, keyvalidate.ValidateTopic("t:svcA:users"))
	require.Error(t, keyvalidate.ValidateTopic("svcA:users"))
	require.Error(t, keyvalidate.ValidateTopic("t:"))
	require.Error(t, keyvalidate.ValidateTopic("t:svcA"))
}
