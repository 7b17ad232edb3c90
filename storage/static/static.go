package static

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/akhenakh/wifittn/storage"
)

// Table is a read only storage.AccessPointResolver loaded from a YAML file
//
//	access_points:
//	  - mac: "aa:bb:cc:dd:ee:ff"
//	    lat: 48.0
//	    lng: 2.0
type Table struct {
	aps map[string]storage.AccessPoint
}

type tableFile struct {
	AccessPoints []struct {
		MAC string  `yaml:"mac"`
		Lat float64 `yaml:"lat"`
		Lng float64 `yaml:"lng"`
	} `yaml:"access_points"`
}

// Load reads the table at path
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// Read reads a table from r
func Read(r io.Reader) (*Table, error) {
	var tf tableFile
	if err := yaml.NewDecoder(r).Decode(&tf); err != nil && err != io.EOF {
		return nil, fmt.Errorf("can't decode access point table: %w", err)
	}

	t := &Table{aps: make(map[string]storage.AccessPoint, len(tf.AccessPoints))}
	for i, ap := range tf.AccessPoints {
		mac, err := net.ParseMAC(strings.TrimSpace(ap.MAC))
		if err != nil {
			return nil, fmt.Errorf("access point %d: %w", i, err)
		}
		id := mac.String()
		if _, ok := t.aps[id]; ok {
			return nil, fmt.Errorf("access point %d: duplicate %s", i, id)
		}
		t.aps[id] = storage.AccessPoint{ID: id, Lat: ap.Lat, Lng: ap.Lng}
	}
	return t, nil
}

// Len returns the number of known access points
func (t *Table) Len() int {
	return len(t.aps)
}

func (t *Table) Resolve(ctx context.Context, id string) (*storage.AccessPoint, error) {
	ap, ok := t.aps[strings.ToLower(id)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &ap, nil
}
