package models

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DeliveryJob is everything needed to forward one event downstream.
type DeliveryJob struct {
	Event        TrackingEvent
	CampaignName string
	BotID        string
	BotToken     string
}

// DueEventIDs lists events waiting for delivery whose retry time has passed.
func DueEventIDs(ctx context.Context, db *sql.DB, now time.Time, maxAttempts, limit int) ([]int64, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id FROM tracking_events
		WHERE utmify_status != 'success' AND delivery_attempts < ? AND next_attempt_at <= ?
		ORDER BY next_attempt_at, id LIMIT ?`,
		maxAttempts, now.UTC(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("due events: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan due event: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ClaimEvent takes a lease on a due event by bumping its attempt counter and
// pushing next_attempt_at past the lease. It reports false when the event is
// not due or another worker got it first.
func ClaimEvent(ctx context.Context, db *sql.DB, id int64, now time.Time, lease time.Duration, maxAttempts int) (bool, error) {
	now = now.UTC()
	res, err := db.ExecContext(ctx,
		`UPDATE tracking_events
		SET delivery_attempts = delivery_attempts + 1, next_attempt_at = ?
		WHERE id = ? AND utmify_status != 'success' AND delivery_attempts < ? AND next_attempt_at <= ?`,
		now.Add(lease), id, maxAttempts, now,
	)
	if err != nil {
		return false, fmt.Errorf("claim event: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

func LoadDeliveryJob(ctx context.Context, db *sql.DB, eventID int64) (*DeliveryJob, error) {
	e, err := GetEvent(ctx, db, eventID)
	if err != nil {
		return nil, err
	}
	job := &DeliveryJob{Event: *e}
	err = db.QueryRowContext(ctx,
		`SELECT l.campaign_name, l.bot_id, u.bot_token
		FROM tracking_links l JOIN users u ON u.id = l.user_id
		WHERE l.id = ?`, e.TrackingLinkID,
	).Scan(&job.CampaignName, &job.BotID, &job.BotToken)
	if err != nil {
		return nil, fmt.Errorf("load delivery credentials: %w", err)
	}
	return job, nil
}

func MarkDelivered(ctx context.Context, db *sql.DB, id int64, response string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE tracking_events SET utmify_status = 'success', utmify_response = ? WHERE id = ?`,
		response, id,
	)
	if err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}
	return nil
}

// MarkFailed records a failed attempt and schedules the next one at retryAt.
func MarkFailed(ctx context.Context, db *sql.DB, id int64, response string, retryAt time.Time) error {
	_, err := db.ExecContext(ctx,
		`UPDATE tracking_events SET utmify_status = 'failed', utmify_response = ?, next_attempt_at = ? WHERE id = ?`,
		response, retryAt.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

// AbandonEvent marks an event failed with no further attempts.
func AbandonEvent(ctx context.Context, db *sql.DB, id int64, response string, maxAttempts int) error {
	_, err := db.ExecContext(ctx,
		`UPDATE tracking_events SET utmify_status = 'failed', utmify_response = ?, delivery_attempts = ? WHERE id = ?`,
		response, maxAttempts, id,
	)
	if err != nil {
		return fmt.Errorf("abandon event: %w", err)
	}
	return nil
}
