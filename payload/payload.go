package payload

import (
	"errors"
	"fmt"
	"net"
)

// ChunkSize is the size of one sighting in the uplink payload
//
//	0-5 | access point hardware address
//	6   | RSSI, signed 8 bits
const ChunkSize = 7

const macLen = 6

// ErrMalformedPayload is returned when the payload length is not a multiple of ChunkSize
var ErrMalformedPayload = errors.New("malformed payload")

// Observation is one access point seen by the device
type Observation struct {
	// ID lowercase colon separated hardware address aa:bb:cc:dd:ee:ff
	ID   string
	RSSI int
}

// Decode returns the observations contained in p, in payload order.
// An empty payload is valid and returns no observation.
func Decode(p []byte) ([]Observation, error) {
	if len(p)%ChunkSize != 0 {
		return nil, fmt.Errorf("%w: length %d is not a multiple of %d", ErrMalformedPayload, len(p), ChunkSize)
	}

	obs := make([]Observation, 0, len(p)/ChunkSize)
	for offset := 0; offset < len(p); offset += ChunkSize {
		chunk := p[offset : offset+ChunkSize]
		obs = append(obs, Observation{
			ID:   net.HardwareAddr(chunk[:macLen]).String(),
			RSSI: int(int8(chunk[macLen])),
		})
	}
	return obs, nil
}

// Encode is the inverse of Decode
func Encode(obs []Observation) ([]byte, error) {
	p := make([]byte, 0, len(obs)*ChunkSize)
	for _, o := range obs {
		mac, err := net.ParseMAC(o.ID)
		if err != nil {
			return nil, err
		}
		if len(mac) != macLen {
			return nil, fmt.Errorf("invalid access point id %q: expecting %d bytes", o.ID, macLen)
		}
		if o.RSSI < -128 || o.RSSI > 127 {
			return nil, fmt.Errorf("invalid rssi %d for %s", o.RSSI, o.ID)
		}
		p = append(p, mac...)
		p = append(p, byte(int8(o.RSSI)))
	}
	return p, nil
}
