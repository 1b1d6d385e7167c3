package registry

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/skpttrack/tracker/internal/apperr"
	"github.com/skpttrack/tracker/internal/cache"
	"github.com/skpttrack/tracker/internal/models"
	"github.com/skpttrack/tracker/internal/token"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100

	maxFieldLen     = 255
	tokenRetryLimit = 10
)

type CreateInput struct {
	CampaignID   string `json:"campaign_id"`
	CampaignName string `json:"campaign_name"`
	BotID        string `json:"bot_id"`
}

// Registry owns tracking links: issuing tokens, listing and deactivating.
type Registry struct {
	db          *sql.DB
	cache       *cache.LinkCache
	trackingURL func(token string) string
	log         *logrus.Entry
}

// New builds a Registry. trackingURL renders the public URL for a token.
func New(db *sql.DB, linkCache *cache.LinkCache, trackingURL func(string) string) *Registry {
	return &Registry{
		db:          db,
		cache:       linkCache,
		trackingURL: trackingURL,
		log:         logrus.WithField("component", "registry"),
	}
}

func (r *Registry) Create(ctx context.Context, userID int64, in CreateInput) (*models.TrackingLink, error) {
	in.CampaignID = strings.TrimSpace(in.CampaignID)
	in.CampaignName = strings.TrimSpace(in.CampaignName)
	in.BotID = strings.TrimSpace(in.BotID)
	if in.CampaignID == "" {
		return nil, apperr.Invalid("campaign_id", "is required")
	}
	if in.BotID == "" {
		return nil, apperr.Invalid("bot_id", "is required")
	}
	for field, v := range map[string]string{"campaign_id": in.CampaignID, "campaign_name": in.CampaignName, "bot_id": in.BotID} {
		if len(v) > maxFieldLen {
			return nil, apperr.Invalid(field, "must be at most %d characters", maxFieldLen)
		}
	}

	tok, err := r.uniqueToken(ctx)
	if err != nil {
		return nil, err
	}

	link := &models.TrackingLink{
		UserID:       userID,
		CampaignID:   in.CampaignID,
		CampaignName: in.CampaignName,
		TrackingURL:  r.trackingURL(tok),
		BotID:        in.BotID,
		Token:        tok,
	}
	if err := models.CreateLink(ctx, r.db, link); err != nil {
		return nil, apperr.Store("create link", err)
	}
	r.log.WithFields(logrus.Fields{"link_id": link.ID, "user_id": userID, "campaign_id": link.CampaignID}).Info("link created")
	return link, nil
}

func (r *Registry) uniqueToken(ctx context.Context) (string, error) {
	for i := 0; i < tokenRetryLimit; i++ {
		tok, err := token.Generate()
		if err != nil {
			return "", err
		}
		exists, err := models.TokenExists(ctx, r.db, tok)
		if err != nil {
			return "", apperr.Store("check token", err)
		}
		if !exists {
			return tok, nil
		}
	}
	return "", errors.New("failed to generate unique token")
}

// List returns a page of the user's links, most recent first, and the total.
func (r *Registry) List(ctx context.Context, userID int64, limit, offset int) ([]models.TrackingLink, int, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	links, total, err := models.ListLinks(ctx, r.db, userID, limit, offset)
	if err != nil {
		return nil, 0, apperr.Store("list links", err)
	}
	return links, total, nil
}

func (r *Registry) Get(ctx context.Context, id, userID int64) (*models.TrackingLink, error) {
	link, err := models.GetLinkForUser(ctx, r.db, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("link")
	}
	if err != nil {
		return nil, apperr.Store("get link", err)
	}
	return link, nil
}

// Deactivate turns the link off for good. Repeating it succeeds; a link the
// user does not own is NotFound.
func (r *Registry) Deactivate(ctx context.Context, id, userID int64) error {
	link, err := r.Get(ctx, id, userID)
	if err != nil {
		return err
	}
	if err := models.DeactivateLink(ctx, r.db, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("link")
		}
		return apperr.Store("deactivate link", err)
	}
	if r.cache != nil {
		r.cache.Invalidate(link.Token)
	}
	if link.IsActive {
		r.log.WithFields(logrus.Fields{"link_id": id, "user_id": userID}).Info("link deactivated")
	}
	return nil
}
