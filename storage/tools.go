package storage

import (
	"encoding/binary"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// MaxCoveringCells is the number of cells used when covering a search region
const MaxCoveringCells = 8

func Uint64tob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// SearchRect returns the smallest rect containing both corners, in any order,
// its longitude interval is inverted when it crosses the antimeridian
func SearchRect(urlat, urlng, bllat, bllng float64) s2.Rect {
	rect := s2.RectFromLatLng(s2.LatLngFromDegrees(bllat, bllng))
	return rect.AddPoint(s2.LatLngFromDegrees(urlat, urlng))
}

// RectBounds returns the rect limits in degrees,
// when crosses is true the longitude range is lng >= lolng or lng <= hilng
func RectBounds(urlat, urlng, bllat, bllng float64) (minlat, maxlat, lolng, hilng float64, crosses bool) {
	rect := SearchRect(urlat, urlng, bllat, bllng)
	return s1.Angle(rect.Lat.Lo).Degrees(), s1.Angle(rect.Lat.Hi).Degrees(),
		s1.Angle(rect.Lng.Lo).Degrees(), s1.Angle(rect.Lng.Hi).Degrees(),
		rect.Lng.IsInverted()
}

// RectCovering returns the SearchRect of the corners, and its covering cells
func RectCovering(urlat, urlng, bllat, bllng float64) (s2.Rect, s2.CellUnion) {
	rect := SearchRect(urlat, urlng, bllat, bllng)
	coverer := &s2.RegionCoverer{MaxCells: MaxCoveringCells}
	return rect, coverer.Covering(rect)
}
