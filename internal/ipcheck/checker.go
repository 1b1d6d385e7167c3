package ipcheck

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type Kind int

const (
	// CIDRList is one CIDR per line.
	CIDRList Kind = iota
	// IPList is one address per line, optionally followed by fields such as
	// a score.
	IPList
)

type Source struct {
	Name string
	URL  string
	Kind Kind
}

// DefaultSources covers hosting providers, Tor exits and aggregated threat
// feeds, the usual origins of fake conversions.
var DefaultSources = []Source{
	{"datacenters", "https://raw.githubusercontent.com/jhassine/server-ip-addresses/master/data/datacenters.txt", CIDRList},
	{"tor", "https://check.torproject.org/torbulkexitlist", IPList},
	{"ipsum", "https://raw.githubusercontent.com/stamparm/ipsum/master/ipsum.txt", IPList},
	{"greensnow", "https://blocklist.greensnow.co/greensnow.txt", IPList},
}

const (
	refreshInterval = 24 * time.Hour
	fetchTimeout    = 30 * time.Second
)

// Checker flags addresses belonging to datacenter ranges or threat lists.
// Lookups are safe for concurrent use; lists refresh in the background.
type Checker struct {
	sources []Source
	client  *http.Client
	log     *logrus.Entry

	mu      sync.RWMutex
	ranges  []*net.IPNet
	blocked map[string]bool

	stop chan struct{}
	done chan struct{}
}

// NewChecker fetches all sources immediately and then every 24 hours.
func NewChecker(sources []Source, client *http.Client) *Checker {
	if client == nil {
		client = &http.Client{Timeout: fetchTimeout}
	}
	c := &Checker{
		sources: sources,
		client:  client,
		log:     logrus.WithField("component", "ipcheck"),
		blocked: make(map[string]bool),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go c.run()
	return c
}

// IsSuspicious reports whether ip is in a loaded range or list.
func (c *Checker) IsSuspicious(ip string) bool {
	if c == nil {
		return false
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.blocked[parsed.String()] {
		return true
	}
	for _, n := range c.ranges {
		if n.Contains(parsed) {
			return true
		}
	}
	return false
}

func (c *Checker) Shutdown() {
	close(c.stop)
	<-c.done
}

func (c *Checker) run() {
	defer close(c.done)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-c.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	c.Refresh(ctx)

	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.Refresh(ctx)
		case <-c.stop:
			return
		}
	}
}

// Refresh reloads every source concurrently. A source that fails keeps the
// checker's previous data for that kind when nothing else loaded.
func (c *Checker) Refresh(ctx context.Context) {
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		errs       []string
		newRanges  []*net.IPNet
		newBlocked = make(map[string]bool)
	)

	for _, src := range c.sources {
		wg.Add(1)
		go func(src Source) {
			defer wg.Done()
			ranges, ips, err := c.fetch(ctx, src)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", src.Name, err))
				return
			}
			newRanges = append(newRanges, ranges...)
			for _, ip := range ips {
				newBlocked[ip] = true
			}
		}(src)
	}
	wg.Wait()

	if len(errs) > 0 {
		c.log.WithField("errors", strings.Join(errs, "; ")).Warn("partial refresh")
	}

	c.mu.Lock()
	if len(newRanges) > 0 {
		c.ranges = newRanges
	}
	if len(newBlocked) > 0 {
		c.blocked = newBlocked
	}
	c.mu.Unlock()

	c.log.WithFields(logrus.Fields{"ranges": len(newRanges), "ips": len(newBlocked)}).Info("lists loaded")
}

func (c *Checker) fetch(ctx context.Context, src Source) ([]*net.IPNet, []string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	switch src.Kind {
	case CIDRList:
		ranges, err := ParseCIDRs(resp.Body)
		return ranges, nil, err
	default:
		ips, err := ParseIPs(resp.Body)
		return nil, ips, err
	}
}

// ParseCIDRs reads one CIDR per line, skipping blanks, comments and
// malformed entries.
func ParseCIDRs(r io.Reader) ([]*net.IPNet, error) {
	var nets []*net.IPNet
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, n, err := net.ParseCIDR(line); err == nil {
			nets = append(nets, n)
		}
	}
	return nets, scanner.Err()
}

// ParseIPs reads the first field of each line as an address.
func ParseIPs(r io.Reader) ([]string, error) {
	var ips []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		if ip := net.ParseIP(fields[0]); ip != nil {
			ips = append(ips, ip.String())
		}
	}
	return ips, scanner.Err()
}
