package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/skpttrack/tracker/internal/analytics"
	"github.com/skpttrack/tracker/internal/apperr"
	"github.com/skpttrack/tracker/internal/cache"
	"github.com/skpttrack/tracker/internal/dedupe"
	"github.com/skpttrack/tracker/internal/metrics"
	"github.com/skpttrack/tracker/internal/models"
	"github.com/skpttrack/tracker/internal/token"
)

const (
	maxCampaignLen = 255
	maxEventIDLen  = 128
)

type Request struct {
	Token      string
	EventType  string
	CampaignID string // defaults to the link's campaign
	Value      string // decimal; required for sales
	EventID    string // optional client id for duplicate suppression
	Client     analytics.Client
}

type Result struct {
	Event     *models.TrackingEvent
	Duplicate bool
}

// Queue receives ids of freshly stored events.
type Queue interface {
	Push(eventID int64)
}

type Pipeline struct {
	db       *sql.DB
	cache    *cache.LinkCache
	enricher *analytics.Enricher
	dedupe   dedupe.Filter
	queue    Queue
	metrics  *metrics.Metrics
	log      *logrus.Entry
}

// New wires a pipeline. cache, enricher, filter and metrics may be nil.
func New(db *sql.DB, linkCache *cache.LinkCache, enricher *analytics.Enricher, filter dedupe.Filter, queue Queue, m *metrics.Metrics) *Pipeline {
	if filter == nil {
		filter = dedupe.Noop{}
	}
	return &Pipeline{
		db:       db,
		cache:    linkCache,
		enricher: enricher,
		dedupe:   filter,
		queue:    queue,
		metrics:  m,
		log:      logrus.WithField("component", "ingest"),
	}
}

// Ingest validates and stores one event, then hands it to the delivery
// queue. It returns once the row is committed; delivery happens later and
// its outcome never affects the result.
func (p *Pipeline) Ingest(ctx context.Context, req Request) (*Result, error) {
	link, err := p.resolve(ctx, req.Token)
	if err != nil {
		p.reject(err)
		return nil, err
	}

	ev, err := validate(req, link)
	if err != nil {
		p.reject(err)
		return nil, err
	}

	var dedupeKey string
	if req.EventID != "" {
		dedupeKey = fmt.Sprintf("%d:%s", link.ID, req.EventID)
		seen, err := p.dedupe.Seen(ctx, dedupeKey)
		switch {
		case err != nil:
			p.log.WithError(err).Warn("duplicate check unavailable, accepting event")
			dedupeKey = ""
		case seen:
			p.metrics.IngestRejected("duplicate")
			return &Result{Duplicate: true}, nil
		}
	}

	meta := p.enricher.Enrich(req.Client)
	ev.IP = req.Client.IP
	ev.UserAgent = req.Client.UserAgent
	ev.Referer = req.Client.Referer
	ev.Browser = meta.Browser
	ev.OS = meta.OS
	ev.DeviceType = meta.DeviceType
	ev.Country = meta.Country
	ev.Suspicious = meta.Suspicious

	if err := models.InsertEvent(ctx, p.db, ev); err != nil {
		if dedupeKey != "" {
			if ferr := p.dedupe.Forget(context.WithoutCancel(ctx), dedupeKey); ferr != nil {
				p.log.WithError(ferr).Warn("release duplicate key")
			}
		}
		err = apperr.Store("record event", err)
		p.reject(err)
		return nil, err
	}

	p.metrics.EventIngested(string(ev.EventType))
	if p.queue != nil {
		p.queue.Push(ev.ID)
	}
	return &Result{Event: ev}, nil
}

func (p *Pipeline) resolve(ctx context.Context, tok string) (models.TrackingLink, error) {
	if !token.LooksValid(tok) {
		return models.TrackingLink{}, apperr.Unauthorized("invalid or inactive token")
	}
	if p.cache != nil {
		if link, ok := p.cache.Get(tok); ok {
			return activeOnly(link)
		}
	}
	if p.db == nil {
		return models.TrackingLink{}, apperr.Store("resolve token", apperr.ErrStoreUnavailable)
	}

	var gen uint64
	if p.cache != nil {
		gen = p.cache.Generation()
	}
	link, err := models.GetLinkByToken(ctx, p.db, tok)
	if errors.Is(err, sql.ErrNoRows) {
		return models.TrackingLink{}, apperr.Unauthorized("invalid or inactive token")
	}
	if err != nil {
		return models.TrackingLink{}, apperr.Store("resolve token", err)
	}
	if p.cache != nil {
		p.cache.SetIfCurrent(*link, gen)
	}
	return activeOnly(*link)
}

func activeOnly(link models.TrackingLink) (models.TrackingLink, error) {
	if !link.IsActive {
		return models.TrackingLink{}, apperr.Unauthorized("invalid or inactive token")
	}
	return link, nil
}

func validate(req Request, link models.TrackingLink) (*models.TrackingEvent, error) {
	eventType, ok := models.ParseEventType(req.EventType)
	if !ok {
		if strings.TrimSpace(req.EventType) == "" {
			return nil, apperr.Invalid("event", "is required")
		}
		return nil, apperr.Invalid("event", "unknown event type %q", req.EventType)
	}

	campaign := strings.TrimSpace(req.CampaignID)
	if campaign == "" {
		campaign = link.CampaignID
	}
	if len(campaign) > maxCampaignLen {
		return nil, apperr.Invalid("campaign", "must be at most %d characters", maxCampaignLen)
	}
	if len(req.EventID) > maxEventIDLen {
		return nil, apperr.Invalid("eid", "must be at most %d characters", maxEventIDLen)
	}

	var value *int64
	switch {
	case strings.TrimSpace(req.Value) != "":
		cents, err := models.ParseAmount(req.Value)
		if err != nil {
			return nil, apperr.Invalid("value", "%v", err)
		}
		value = &cents
	case eventType == models.EventSale:
		return nil, apperr.Invalid("value", "is required for sale events")
	}

	return &models.TrackingEvent{
		UID:            uuid.NewString(),
		TrackingLinkID: link.ID,
		UserID:         link.UserID,
		EventType:      eventType,
		CampaignID:     campaign,
		SaleValueCents: value,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

func (p *Pipeline) reject(err error) {
	reason := "error"
	switch {
	case errors.Is(err, apperr.ErrUnauthorized):
		reason = "unauthorized"
	case errors.Is(err, apperr.ErrInvalidInput):
		reason = "invalid"
	case apperr.IsUnavailable(err):
		reason = "store_unavailable"
	}
	p.metrics.IngestRejected(reason)
}
