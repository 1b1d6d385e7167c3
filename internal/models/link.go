package models

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type TrackingLink struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	CampaignID   string    `json:"campaign_id"`
	CampaignName string    `json:"campaign_name"`
	TrackingURL  string    `json:"tracking_url"`
	BotID        string    `json:"bot_id"`
	Token        string    `json:"token"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

const linkColumns = `id, user_id, campaign_id, campaign_name, tracking_url, bot_id, token, is_active, created_at, updated_at`

func CreateLink(ctx context.Context, db *sql.DB, l *TrackingLink) error {
	now := time.Now().UTC()
	res, err := db.ExecContext(ctx,
		`INSERT INTO tracking_links (user_id, campaign_id, campaign_name, tracking_url, bot_id, token, is_active, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		l.UserID, l.CampaignID, l.CampaignName, l.TrackingURL, l.BotID, l.Token, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert link: %w", err)
	}
	l.ID, _ = res.LastInsertId()
	l.IsActive = true
	l.CreatedAt, l.UpdatedAt = now, now
	return nil
}

// GetLinkForUser returns the link only when userID owns it.
func GetLinkForUser(ctx context.Context, db *sql.DB, id, userID int64) (*TrackingLink, error) {
	row := db.QueryRowContext(ctx, `SELECT `+linkColumns+` FROM tracking_links WHERE id = ? AND user_id = ?`, id, userID)
	return scanLink(row)
}

func GetLinkByID(ctx context.Context, db *sql.DB, id int64) (*TrackingLink, error) {
	row := db.QueryRowContext(ctx, `SELECT `+linkColumns+` FROM tracking_links WHERE id = ?`, id)
	return scanLink(row)
}

// GetLinkByToken resolves a token regardless of its active flag.
func GetLinkByToken(ctx context.Context, db *sql.DB, token string) (*TrackingLink, error) {
	row := db.QueryRowContext(ctx, `SELECT `+linkColumns+` FROM tracking_links WHERE token = ?`, token)
	return scanLink(row)
}

// ListLinks returns the user's links, most recent first, and their total count.
func ListLinks(ctx context.Context, db *sql.DB, userID int64, limit, offset int) ([]TrackingLink, int, error) {
	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tracking_links WHERE user_id = ?`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count links: %w", err)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT `+linkColumns+` FROM tracking_links WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list links: %w", err)
	}
	defer rows.Close()

	links := []TrackingLink{}
	for rows.Next() {
		var l TrackingLink
		var active int
		if err := rows.Scan(&l.ID, &l.UserID, &l.CampaignID, &l.CampaignName, &l.TrackingURL, &l.BotID, &l.Token, &active, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan link: %w", err)
		}
		l.IsActive = active == 1
		links = append(links, l)
	}
	return links, total, rows.Err()
}

// DeactivateLink clears is_active. Repeating it is a no-op; a link the user
// does not own yields sql.ErrNoRows.
func DeactivateLink(ctx context.Context, db *sql.DB, id, userID int64) error {
	res, err := db.ExecContext(ctx,
		`UPDATE tracking_links SET is_active = 0, updated_at = ? WHERE id = ? AND user_id = ?`,
		time.Now().UTC(), id, userID,
	)
	if err != nil {
		return fmt.Errorf("deactivate link: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func TokenExists(ctx context.Context, db *sql.DB, token string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tracking_links WHERE token = ?`, token).Scan(&count)
	return count > 0, err
}

func scanLink(row *sql.Row) (*TrackingLink, error) {
	l := &TrackingLink{}
	var active int
	if err := row.Scan(&l.ID, &l.UserID, &l.CampaignID, &l.CampaignName, &l.TrackingURL, &l.BotID, &l.Token, &active, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	l.IsActive = active == 1
	return l, nil
}
