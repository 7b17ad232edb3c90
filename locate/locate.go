// Package locate estimates a position from access points coordinates and their signal strength
package locate

import (
	"github.com/akhenakh/wifittn/storage"
)

// DefaultZeroMagnitude is the magnitude used for a 0 RSSI reading, treated as a weak signal
const DefaultZeroMagnitude = 100.0

// Resolved is an observation joined with its known access point
type Resolved struct {
	Lat, Lng float64
	RSSI     int
}

// Estimator computes inverse square weighted centroids
type Estimator struct {
	ZeroMagnitude float64
}

// Estimate returns the weighted centroid of rs, weight being 1/|rssi|²,
// false if rs is empty
func (e Estimator) Estimate(rs []Resolved) (*storage.Estimate, bool) {
	if len(rs) == 0 {
		return nil, false
	}

	zero := e.ZeroMagnitude
	if zero <= 0 {
		zero = DefaultZeroMagnitude
	}

	var latSum, lngSum, wSum float64
	for _, r := range rs {
		m := float64(r.RSSI)
		if m < 0 {
			m = -m
		}
		if m == 0 {
			m = zero
		}
		w := 1 / (m * m)

		latSum += r.Lat * w
		lngSum += r.Lng * w
		wSum += w
	}

	if wSum == 0 {
		return nil, false
	}

	return &storage.Estimate{
		Lat:   latSum / wSum,
		Lng:   lngSum / wSum,
		Count: len(rs),
	}, true
}

// Estimate uses the default Estimator
func Estimate(rs []Resolved) (*storage.Estimate, bool) {
	return Estimator{}.Estimate(rs)
}
