package models

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type EventType string

const (
	EventClick    EventType = "click"
	EventPageview EventType = "pageview"
	EventLead     EventType = "lead"
	EventCheckout EventType = "checkout"
	EventSale     EventType = "sale"
)

var eventTypes = map[EventType]bool{
	EventClick:    true,
	EventPageview: true,
	EventLead:     true,
	EventCheckout: true,
	EventSale:     true,
}

// ParseEventType normalises s and reports whether it is a known type.
func ParseEventType(s string) (EventType, bool) {
	t := EventType(strings.ToLower(strings.TrimSpace(s)))
	return t, eventTypes[t]
}

type DeliveryStatus string

const (
	StatusPending DeliveryStatus = "pending"
	StatusSuccess DeliveryStatus = "success"
	StatusFailed  DeliveryStatus = "failed"
)

type TrackingEvent struct {
	ID               int64
	UID              string
	TrackingLinkID   int64
	UserID           int64
	EventType        EventType
	CampaignID       string
	SaleValueCents   *int64
	Status           DeliveryStatus
	Response         string
	DeliveryAttempts int
	NextAttemptAt    time.Time
	IP               string
	UserAgent        string
	Referer          string
	Browser          string
	OS               string
	DeviceType       string
	Country          string
	Suspicious       bool
	CreatedAt        time.Time
}

func (e TrackingEvent) MarshalJSON() ([]byte, error) {
	var value *string
	if e.SaleValueCents != nil {
		v := FormatCents(*e.SaleValueCents)
		value = &v
	}
	return json.Marshal(struct {
		ID               int64          `json:"id"`
		UID              string         `json:"event_uid"`
		TrackingLinkID   int64          `json:"tracking_link_id"`
		EventType        EventType      `json:"event_type"`
		CampaignID       string         `json:"campaign_id"`
		SaleValue        *string        `json:"sale_value"`
		Status           DeliveryStatus `json:"utmify_status"`
		Response         string         `json:"utmify_response"`
		DeliveryAttempts int            `json:"delivery_attempts"`
		IP               string         `json:"ip_address"`
		UserAgent        string         `json:"user_agent"`
		Browser          string         `json:"browser"`
		OS               string         `json:"os"`
		DeviceType       string         `json:"device_type"`
		Country          string         `json:"country"`
		Suspicious       bool           `json:"is_suspicious"`
		CreatedAt        time.Time      `json:"created_at"`
	}{
		e.ID, e.UID, e.TrackingLinkID, e.EventType, e.CampaignID, value, e.Status, e.Response,
		e.DeliveryAttempts, e.IP, e.UserAgent, e.Browser, e.OS, e.DeviceType, e.Country, e.Suspicious, e.CreatedAt,
	})
}

const eventColumns = `id, event_uid, tracking_link_id, user_id, event_type, campaign_id, sale_value_cents,
	utmify_status, utmify_response, delivery_attempts, next_attempt_at, ip_address, user_agent, referer,
	browser, os, device_type, country, is_suspicious, created_at`

// InsertEvent persists a new pending event. The row is immediately due for
// delivery.
func InsertEvent(ctx context.Context, db *sql.DB, e *TrackingEvent) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	e.Status = StatusPending
	e.NextAttemptAt = e.CreatedAt
	res, err := db.ExecContext(ctx,
		`INSERT INTO tracking_events (event_uid, tracking_link_id, user_id, event_type, campaign_id, sale_value_cents,
			utmify_status, next_attempt_at, ip_address, user_agent, referer, browser, os, device_type, country,
			is_suspicious, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.UID, e.TrackingLinkID, e.UserID, string(e.EventType), e.CampaignID, e.SaleValueCents,
		string(e.Status), e.NextAttemptAt, e.IP, e.UserAgent, e.Referer, e.Browser, e.OS, e.DeviceType, e.Country,
		boolToInt(e.Suspicious), e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	e.ID, _ = res.LastInsertId()
	return nil
}

func GetEvent(ctx context.Context, db *sql.DB, id int64) (*TrackingEvent, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+eventColumns+` FROM tracking_events WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, sql.ErrNoRows
	}
	return scanEvent(rows)
}

type EventFilter struct {
	UserID     int64
	CampaignID string
	Status     DeliveryStatus
	Limit      int
	Offset     int
}

// ListEvents returns the user's events, most recent first.
func ListEvents(ctx context.Context, db *sql.DB, f EventFilter) ([]TrackingEvent, error) {
	where := "user_id = ?"
	args := []any{f.UserID}
	if f.CampaignID != "" {
		where += " AND campaign_id = ?"
		args = append(args, f.CampaignID)
	}
	if f.Status != "" {
		where += " AND utmify_status = ?"
		args = append(args, string(f.Status))
	}
	args = append(args, f.Limit, f.Offset)

	rows, err := db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM tracking_events WHERE `+where+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events := []TrackingEvent{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

func scanEvent(rows *sql.Rows) (*TrackingEvent, error) {
	e := &TrackingEvent{}
	var (
		eventType, status string
		value             sql.NullInt64
		suspicious        int
	)
	if err := rows.Scan(&e.ID, &e.UID, &e.TrackingLinkID, &e.UserID, &eventType, &e.CampaignID, &value,
		&status, &e.Response, &e.DeliveryAttempts, &e.NextAttemptAt, &e.IP, &e.UserAgent, &e.Referer,
		&e.Browser, &e.OS, &e.DeviceType, &e.Country, &suspicious, &e.CreatedAt); err != nil {
		return nil, fmt.Errorf("scan event: %w", err)
	}
	e.EventType = EventType(eventType)
	e.Status = DeliveryStatus(status)
	if value.Valid {
		v := value.Int64
		e.SaleValueCents = &v
	}
	e.Suspicious = suspicious == 1
	return e, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
