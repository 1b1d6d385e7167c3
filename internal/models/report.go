package models

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the on-disk and wire format of report periods.
const DateLayout = "2006-01-02"

type Report struct {
	ID               int64
	UserID           int64
	CampaignID       string
	PeriodStart      string
	PeriodEnd        string
	TotalEvents      int64
	TotalSales       int64
	TotalValueCents  int64
	ConversionRateBP int64 // percent * 100
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (r Report) TotalValue() decimal.Decimal {
	return CentsToDecimal(r.TotalValueCents)
}

func (r Report) ConversionRate() decimal.Decimal {
	return decimal.New(r.ConversionRateBP, -2)
}

func (r Report) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID             int64     `json:"id"`
		CampaignID     string    `json:"campaign_id"`
		PeriodStart    string    `json:"period_start"`
		PeriodEnd      string    `json:"period_end"`
		TotalEvents    int64     `json:"total_events"`
		TotalSales     int64     `json:"total_sales"`
		TotalValue     string    `json:"total_value"`
		ConversionRate string    `json:"conversion_rate"`
		CreatedAt      time.Time `json:"created_at"`
		UpdatedAt      time.Time `json:"updated_at"`
	}{
		r.ID, r.CampaignID, r.PeriodStart, r.PeriodEnd, r.TotalEvents, r.TotalSales,
		r.TotalValue().StringFixed(2), r.ConversionRate().StringFixed(2), r.CreatedAt, r.UpdatedAt,
	})
}

type EventTotals struct {
	Events     int64
	Sales      int64
	ValueCents int64
}

// CampaignTotals counts a user's campaign events created in [from, to).
func CampaignTotals(ctx context.Context, db *sql.DB, userID int64, campaignID string, from, to time.Time) (EventTotals, error) {
	var t EventTotals
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN event_type = 'sale' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN event_type = 'sale' THEN COALESCE(sale_value_cents, 0) ELSE 0 END), 0)
		FROM tracking_events
		WHERE user_id = ? AND campaign_id = ? AND created_at >= ? AND created_at < ?`,
		userID, campaignID, from.UTC(), to.UTC(),
	).Scan(&t.Events, &t.Sales, &t.ValueCents)
	if err != nil {
		return EventTotals{}, fmt.Errorf("campaign totals: %w", err)
	}
	return t, nil
}

// UpsertReport writes r keyed by (user, campaign, period) and reloads it.
func UpsertReport(ctx context.Context, db *sql.DB, r *Report) error {
	now := time.Now().UTC()
	_, err := db.ExecContext(ctx,
		`INSERT INTO reports (user_id, campaign_id, period_start, period_end, total_events, total_sales,
			total_value_cents, conversion_rate_bp, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, campaign_id, period_start, period_end) DO UPDATE SET
			total_events = excluded.total_events,
			total_sales = excluded.total_sales,
			total_value_cents = excluded.total_value_cents,
			conversion_rate_bp = excluded.conversion_rate_bp,
			updated_at = excluded.updated_at`,
		r.UserID, r.CampaignID, r.PeriodStart, r.PeriodEnd, r.TotalEvents, r.TotalSales,
		r.TotalValueCents, r.ConversionRateBP, now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert report: %w", err)
	}
	row := db.QueryRowContext(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE user_id = ? AND campaign_id = ? AND period_start = ? AND period_end = ?`,
		r.UserID, r.CampaignID, r.PeriodStart, r.PeriodEnd,
	)
	return scanReport(row, r)
}

// ReportFilter narrows ListReports. Empty fields match everything; From and
// To are YYYY-MM-DD dates and keep reports whose period lies inside them.
type ReportFilter struct {
	UserID     int64
	CampaignID string
	From       string
	To         string
	Limit      int
}

// ListReports returns stored reports, most recently computed first.
func ListReports(ctx context.Context, db *sql.DB, f ReportFilter) ([]Report, error) {
	where := "user_id = ?"
	args := []any{f.UserID}
	if f.CampaignID != "" {
		where += " AND campaign_id = ?"
		args = append(args, f.CampaignID)
	}
	if f.From != "" {
		where += " AND period_start >= ?"
		args = append(args, f.From)
	}
	if f.To != "" {
		where += " AND period_end <= ?"
		args = append(args, f.To)
	}
	args = append(args, f.Limit)

	rows, err := db.QueryContext(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE `+where+` ORDER BY updated_at DESC, id DESC LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	reports := []Report{}
	for rows.Next() {
		var r Report
		if err := rows.Scan(&r.ID, &r.UserID, &r.CampaignID, &r.PeriodStart, &r.PeriodEnd, &r.TotalEvents,
			&r.TotalSales, &r.TotalValueCents, &r.ConversionRateBP, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

const reportColumns = `id, user_id, campaign_id, period_start, period_end, total_events, total_sales,
	total_value_cents, conversion_rate_bp, created_at, updated_at`

func scanReport(row *sql.Row, r *Report) error {
	return row.Scan(&r.ID, &r.UserID, &r.CampaignID, &r.PeriodStart, &r.PeriodEnd, &r.TotalEvents,
		&r.TotalSales, &r.TotalValueCents, &r.ConversionRateBP, &r.CreatedAt, &r.UpdatedAt)
}
