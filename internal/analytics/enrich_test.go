package analytics

import (
	"testing"

	"github.com/skpttrack/tracker/internal/geo"
)

type flagAll map[string]bool

func (f flagAll) IsSuspicious(ip string) bool { return f[ip] }

const (
	iphoneUA  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
	desktopUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

func TestEnrich_Mobile(t *testing.T) {
	geoReader, _ := geo.Open("")
	e := NewEnricher(geoReader, nil)

	m := e.Enrich(Client{IP: "203.0.113.1", UserAgent: iphoneUA})
	if m.DeviceType != "mobile" {
		t.Errorf("device = %q, want mobile", m.DeviceType)
	}
	if m.Suspicious {
		t.Error("real iPhone UA flagged as suspicious")
	}
	if m.Browser != "Safari" {
		t.Errorf("browser = %q, want Safari", m.Browser)
	}
}

func TestEnrich_Desktop(t *testing.T) {
	m := NewEnricher(nil, nil).Enrich(Client{UserAgent: desktopUA})
	if m.DeviceType != "desktop" {
		t.Errorf("device = %q, want desktop", m.DeviceType)
	}
	if m.Browser != "Chrome" {
		t.Errorf("browser = %q, want Chrome", m.Browser)
	}
}

func TestEnrich_BotUA(t *testing.T) {
	m := NewEnricher(nil, nil).Enrich(Client{UserAgent: "curl/8.4.0"})
	if !m.Suspicious || m.DeviceType != "bot" {
		t.Errorf("meta = %+v, want suspicious bot", m)
	}
}

func TestEnrich_FlaggedIP(t *testing.T) {
	e := NewEnricher(nil, flagAll{"10.0.0.1": true})

	if m := e.Enrich(Client{IP: "10.0.0.1", UserAgent: desktopUA}); !m.Suspicious {
		t.Error("expected datacenter IP to be suspicious")
	}
	if m := e.Enrich(Client{IP: "203.0.113.9", UserAgent: desktopUA}); m.Suspicious {
		t.Error("clean IP flagged")
	}
}

func TestIsBot(t *testing.T) {
	bots := []string{
		"",
		"facebookexternalhit/1.1 (+http://www.facebook.com/externalhit_uatext.php)",
		"Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)",
		"WhatsApp/2.23.20.0",
		"python-requests/2.31.0",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) HeadlessChrome/120.0.0.0 Safari/537.36",
	}
	for _, ua := range bots {
		if !IsBot(ua) {
			t.Errorf("IsBot(%q) = false, want true", ua)
		}
	}
	for _, ua := range []string{iphoneUA, desktopUA} {
		if IsBot(ua) {
			t.Errorf("IsBot(%q) = true, want false", ua)
		}
	}
}
