package models

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type DimensionCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Dimensions that can be grouped on. Keys are the public names, values the
// column they map to.
var breakdownColumns = map[string]string{
	"event_type":  "event_type",
	"device_type": "device_type",
	"country":     "country",
	"browser":     "browser",
	"os":          "os",
}

func BreakdownDimensions() []string {
	return []string{"event_type", "device_type", "country", "browser", "os"}
}

// TopValues counts a user's campaign events in [from, to) grouped by
// dimension, largest first.
func TopValues(ctx context.Context, db *sql.DB, userID int64, campaignID, dimension string, from, to time.Time, limit int) ([]DimensionCount, error) {
	col, ok := breakdownColumns[dimension]
	if !ok {
		return nil, fmt.Errorf("unknown dimension %q", dimension)
	}
	rows, err := db.QueryContext(ctx,
		`SELECT `+col+`, COUNT(*) AS cnt FROM tracking_events
		WHERE user_id = ? AND campaign_id = ? AND created_at >= ? AND created_at < ? AND `+col+` != ''
		GROUP BY `+col+` ORDER BY cnt DESC, `+col+` LIMIT ?`,
		userID, campaignID, from.UTC(), to.UTC(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("top %s: %w", dimension, err)
	}
	defer rows.Close()

	results := []DimensionCount{}
	for rows.Next() {
		var c DimensionCount
		if err := rows.Scan(&c.Value, &c.Count); err != nil {
			return nil, fmt.Errorf("scan %s: %w", dimension, err)
		}
		results = append(results, c)
	}
	return results, rows.Err()
}
