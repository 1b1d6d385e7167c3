package analytics

import (
	"github.com/mssola/useragent"

	"github.com/skpttrack/tracker/internal/geo"
)

// Client is what the ingest endpoint knows about the caller.
type Client struct {
	IP        string
	UserAgent string
	Referer   string
}

type Meta struct {
	Browser    string
	OS         string
	DeviceType string
	Country    string
	Suspicious bool
}

// IPFlagger reports addresses that should not be trusted.
type IPFlagger interface {
	IsSuspicious(ip string) bool
}

// Enricher derives device, location and trust hints from a client. Both
// dependencies are optional.
type Enricher struct {
	geo *geo.Reader
	ips IPFlagger
}

func NewEnricher(geoReader *geo.Reader, ips IPFlagger) *Enricher {
	return &Enricher{geo: geoReader, ips: ips}
}

func (e *Enricher) Enrich(c Client) Meta {
	ua := useragent.New(c.UserAgent)
	browser, _ := ua.Browser()

	m := Meta{
		Browser:    browser,
		OS:         ua.OS(),
		DeviceType: "desktop",
		Suspicious: IsBot(c.UserAgent),
	}
	switch {
	case m.Suspicious:
		m.DeviceType = "bot"
	case ua.Mobile():
		m.DeviceType = "mobile"
	}

	if e == nil {
		return m
	}
	m.Country = e.geo.Lookup(c.IP).Country
	if e.ips != nil && e.ips.IsSuspicious(c.IP) {
		m.Suspicious = true
	}
	return m
}
