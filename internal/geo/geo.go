package geo

import (
	"net"

	"github.com/oschwald/maxminddb-golang"
)

type Location struct {
	Country string // ISO 3166-1 alpha-2
	Region  string
}

type Reader struct {
	db *maxminddb.Reader
}

// Open opens a MaxMind .mmdb file. An empty path gives a Reader whose
// lookups always come back empty.
func Open(path string) (*Reader, error) {
	if path == "" {
		return &Reader{}, nil
	}
	db, err := maxminddb.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{db: db}, nil
}

func (r *Reader) Enabled() bool {
	return r != nil && r.db != nil
}

func (r *Reader) Close() {
	if r.Enabled() {
		r.db.Close()
	}
}

func (r *Reader) Lookup(ipStr string) Location {
	if !r.Enabled() {
		return Location{}
	}
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return Location{}
	}

	var record struct {
		Country struct {
			ISOCode string `maxminddb:"iso_code"`
		} `maxminddb:"country"`
		Subdivisions []struct {
			ISOCode string            `maxminddb:"iso_code"`
			Names   map[string]string `maxminddb:"names"`
		} `maxminddb:"subdivisions"`
	}
	if err := r.db.Lookup(ip, &record); err != nil {
		return Location{}
	}

	loc := Location{Country: record.Country.ISOCode}
	if len(record.Subdivisions) > 0 {
		sub := record.Subdivisions[0]
		loc.Region = sub.Names["en"]
		if loc.Region == "" {
			loc.Region = sub.ISOCode
		}
	}
	return loc
}
