package locate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEstimateSingle(t *testing.T) {
	e, ok := Estimate([]Resolved{{Lat: 48.8566, Lng: 2.3522, RSSI: -67}})
	require.True(t, ok)
	require.InDelta(t, 48.8566, e.Lat, 1e-12)
	require.InDelta(t, 2.3522, e.Lng, 1e-12)
	require.Equal(t, 1, e.Count)
}

func TestEstimateMidpoint(t *testing.T) {
	e, ok := Estimate([]Resolved{
		{Lat: 48.0, Lng: 2.0, RSSI: -50},
		{Lat: 49.0, Lng: 3.0, RSSI: 50},
	})
	require.True(t, ok)
	require.InDelta(t, 48.5, e.Lat, 1e-9)
	require.InDelta(t, 2.5, e.Lng, 1e-9)
	require.Equal(t, 2, e.Count)
}

func TestEstimateWeighting(t *testing.T) {
	// weights 1/40² and 1/80²: the closest one counts 4 times more
	e, ok := Estimate([]Resolved{
		{Lat: 0, Lng: 0, RSSI: -40},
		{Lat: 5, Lng: 10, RSSI: -80},
	})
	require.True(t, ok)
	require.InDelta(t, 1.0, e.Lat, 1e-9)
	require.InDelta(t, 2.0, e.Lng, 1e-9)
}

func TestEstimateZeroRSSI(t *testing.T) {
	// a 0 reading weights as -100
	e, ok := Estimate([]Resolved{
		{Lat: 10, Lng: 10, RSSI: 0},
		{Lat: 20, Lng: 20, RSSI: -100},
	})
	require.True(t, ok)
	require.InDelta(t, 15.0, e.Lat, 1e-9)
	require.InDelta(t, 15.0, e.Lng, 1e-9)

	e, ok = Estimate([]Resolved{{Lat: 10, Lng: 20, RSSI: 0}})
	require.True(t, ok)
	require.InDelta(t, 10.0, e.Lat, 1e-12)
	require.InDelta(t, 20.0, e.Lng, 1e-12)
}

func TestEstimatorZeroMagnitude(t *testing.T) {
	// with a 50 fallback, 0 and -50 weight the same
	e, ok := Estimator{ZeroMagnitude: 50}.Estimate([]Resolved{
		{Lat: 10, Lng: 10, RSSI: 0},
		{Lat: 20, Lng: 20, RSSI: -50},
	})
	require.True(t, ok)
	require.InDelta(t, 15.0, e.Lat, 1e-9)

	// non positive falls back to the default
	e, ok = Estimator{ZeroMagnitude: -1}.Estimate([]Resolved{
		{Lat: 10, Lng: 10, RSSI: 0},
		{Lat: 20, Lng: 20, RSSI: -100},
	})
	require.True(t, ok)
	require.InDelta(t, 15.0, e.Lat, 1e-9)
}

func TestEstimateEmpty(t *testing.T) {
	e, ok := Estimate(nil)
	require.False(t, ok)
	require.Nil(t, e)

	_, ok = Estimate([]Resolved{})
	require.False(t, ok)
}
