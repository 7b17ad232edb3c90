package payload

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	obs, err := Decode([]byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF, 0x9C})
	require.NoError(t, err)
	require.Len(t, obs, 1)
	require.Equal(t, "aa:bb:cc:dd:ee:ff", obs[0].ID)
	require.Equal(t, -100, obs[0].RSSI)

	obs, err = Decode([]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x32})
	require.NoError(t, err)
	require.Len(t, obs, 1)
	require.Equal(t, "01:02:03:04:05:06", obs[0].ID)
	require.Equal(t, 50, obs[0].RSSI)
}

func TestDecodeOrder(t *testing.T) {
	p := []byte{
		0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 0x80,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x02, 0x7F,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x03, 0xFF,
	}
	obs, err := Decode(p)
	require.NoError(t, err)
	require.Equal(t, []Observation{
		{ID: "00:00:00:00:00:01", RSSI: -128},
		{ID: "00:00:00:00:00:02", RSSI: 127},
		{ID: "00:00:00:00:00:03", RSSI: -1},
	}, obs)
}

func TestDecodeEmpty(t *testing.T) {
	obs, err := Decode(nil)
	require.NoError(t, err)
	require.Empty(t, obs)

	obs, err = Decode([]byte{})
	require.NoError(t, err)
	require.Empty(t, obs)
}

func TestDecodeMalformed(t *testing.T) {
	for _, n := range []int{1, 6, 8, 13, 15, 20} {
		_, err := Decode(make([]byte, n))
		require.Error(t, err)
		require.True(t, errors.Is(err, ErrMalformedPayload), "length %d", n)
	}
}

func TestEncode(t *testing.T) {
	obs := []Observation{
		{ID: "AA:BB:CC:DD:EE:FF", RSSI: -100},
		{ID: "01:02:03:04:05:06", RSSI: 50},
	}
	p, err := Encode(obs)
	require.NoError(t, err)
	require.Equal(t, []byte{
		0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF, 0x9C,
		0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x32,
	}, p)

	dobs, err := Decode(p)
	require.NoError(t, err)
	require.Equal(t, "aa:bb:cc:dd:ee:ff", dobs[0].ID)

	_, err = Encode([]Observation{{ID: "aa:bb", RSSI: -40}})
	require.Error(t, err)

	_, err = Encode([]Observation{{ID: "aa:bb:cc:dd:ee:ff:00:11", RSSI: -40}})
	require.Error(t, err)

	_, err = Encode([]Observation{{ID: "aa:bb:cc:dd:ee:ff", RSSI: -200}})
	require.Error(t, err)
}
