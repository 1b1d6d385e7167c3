package models

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestCampaignTotals(t *testing.T) {
	ctx := context.Background()
	d := testDB(t)
	u := testUser(t, d, "a@example.com")
	l := testLink(t, d, u.ID, "abc123")
	day := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	insertTestEvent(t, d, l, "u1", EventSale, cents(4990), day)
	insertTestEvent(t, d, l, "u2", EventClick, nil, day.Add(time.Hour))
	insertTestEvent(t, d, l, "u3", EventSale, cents(1000), day.AddDate(0, 0, 5)) // outside

	from := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	totals, err := CampaignTotals(ctx, d, u.ID, "camp-1", from, from.AddDate(0, 0, 1))
	if err != nil {
		t.Fatal(err)
	}
	if totals.Events != 2 || totals.Sales != 1 || totals.ValueCents != 4990 {
		t.Errorf("totals = %+v, want 2 events, 1 sale, 4990", totals)
	}
}

func TestCampaignTotals_Empty(t *testing.T) {
	d := testDB(t)
	u := testUser(t, d, "a@example.com")
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	totals, err := CampaignTotals(context.Background(), d, u.ID, "camp-1", from, from.AddDate(0, 1, 0))
	if err != nil {
		t.Fatal(err)
	}
	if totals != (EventTotals{}) {
		t.Errorf("totals = %+v, want zero", totals)
	}
}

func TestUpsertReport_KeepsOneRowPerPeriod(t *testing.T) {
	ctx := context.Background()
	d := testDB(t)
	u := testUser(t, d, "a@example.com")

	r := &Report{UserID: u.ID, CampaignID: "camp-1", PeriodStart: "2024-03-01", PeriodEnd: "2024-03-31", TotalEvents: 2, TotalSales: 1, TotalValueCents: 4990, ConversionRateBP: 5000}
	if err := UpsertReport(ctx, d, r); err != nil {
		t.Fatal(err)
	}
	firstID := r.ID

	r2 := &Report{UserID: u.ID, CampaignID: "camp-1", PeriodStart: "2024-03-01", PeriodEnd: "2024-03-31", TotalEvents: 4, TotalSales: 1, TotalValueCents: 4990, ConversionRateBP: 2500}
	if err := UpsertReport(ctx, d, r2); err != nil {
		t.Fatal(err)
	}
	if r2.ID != firstID {
		t.Errorf("id = %d, want %d", r2.ID, firstID)
	}
	if r2.TotalEvents != 4 || r2.ConversionRateBP != 2500 {
		t.Errorf("report = %+v", r2)
	}

	reports, err := ListReports(ctx, d, ReportFilter{UserID: u.ID, CampaignID: "camp-1", Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) != 1 {
		t.Errorf("reports = %d, want 1", len(reports))
	}
}

func TestReport_JSON(t *testing.T) {
	b, err := json.Marshal(Report{CampaignID: "c", TotalSales: 1, TotalValueCents: 4990, ConversionRateBP: 5000})
	if err != nil {
		t.Fatal(err)
	}
	s := string(b)
	if !strings.Contains(s, `"total_value":"49.90"`) || !strings.Contains(s, `"conversion_rate":"50.00"`) {
		t.Errorf("json = %s", s)
	}
}

func TestTopValues(t *testing.T) {
	ctx := context.Background()
	d := testDB(t)
	u := testUser(t, d, "a@example.com")
	l := testLink(t, d, u.ID, "abc")
	now := time.Now().UTC()
	insertTestEvent(t, d, l, "u1", EventClick, nil, now)
	insertTestEvent(t, d, l, "u2", EventClick, nil, now)
	insertTestEvent(t, d, l, "u3", EventSale, cents(1), now)

	got, err := TopValues(ctx, d, u.ID, "camp-1", "event_type", now.Add(-time.Hour), now.Add(time.Hour), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Value != "click" || got[0].Count != 2 {
		t.Errorf("breakdown = %+v", got)
	}
	if _, err := TopValues(ctx, d, u.ID, "camp-1", "ip_address; DROP TABLE users", now, now, 1); err == nil {
		t.Error("expected error for unknown dimension")
	}
}
