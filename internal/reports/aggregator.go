package reports

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/skpttrack/tracker/internal/apperr"
	"github.com/skpttrack/tracker/internal/metrics"
	"github.com/skpttrack/tracker/internal/models"
)

const breakdownLimit = 10

// Period is a run of whole UTC days, both ends inclusive.
type Period struct {
	Start time.Time
	End   time.Time
}

// ParsePeriod reads YYYY-MM-DD bounds.
func ParsePeriod(start, end string) (Period, error) {
	s, err := time.Parse(models.DateLayout, strings.TrimSpace(start))
	if err != nil {
		return Period{}, apperr.Invalid("period_start", "must be a date in YYYY-MM-DD form")
	}
	e, err := time.Parse(models.DateLayout, strings.TrimSpace(end))
	if err != nil {
		return Period{}, apperr.Invalid("period_end", "must be a date in YYYY-MM-DD form")
	}
	if e.Before(s) {
		return Period{}, apperr.Invalid("period_end", "must not be before period_start")
	}
	return Period{Start: s, End: e}, nil
}

// Bounds returns the half-open instant range [from, to) the period covers.
func (p Period) Bounds() (from, to time.Time) {
	return p.Start, p.End.AddDate(0, 0, 1)
}

// ConversionRate is sales as a percentage of events, rounded half away from
// zero to two places. No events means a rate of zero.
func ConversionRate(sales, events int64) decimal.Decimal {
	if events == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(sales).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(events)).
		Round(2)
}

type Aggregator struct {
	db      *sql.DB
	metrics *metrics.Metrics
}

func NewAggregator(db *sql.DB, m *metrics.Metrics) *Aggregator {
	return &Aggregator{db: db, metrics: m}
}

// Compute aggregates the user's campaign events over the period and stores
// the result, replacing any earlier report for the same key. Running it again
// over unchanged events yields the same figures.
func (a *Aggregator) Compute(ctx context.Context, userID int64, campaignID string, p Period) (*models.Report, error) {
	campaignID = strings.TrimSpace(campaignID)
	if campaignID == "" {
		return nil, apperr.Invalid("campaign_id", "is required")
	}

	from, to := p.Bounds()
	totals, err := models.CampaignTotals(ctx, a.db, userID, campaignID, from, to)
	if err != nil {
		return nil, apperr.Store("compute report", err)
	}

	rate := ConversionRate(totals.Sales, totals.Events)
	r := &models.Report{
		UserID:           userID,
		CampaignID:       campaignID,
		PeriodStart:      p.Start.Format(models.DateLayout),
		PeriodEnd:        p.End.Format(models.DateLayout),
		TotalEvents:      totals.Events,
		TotalSales:       totals.Sales,
		TotalValueCents:  totals.ValueCents,
		ConversionRateBP: rate.Shift(2).IntPart(),
	}
	if err := models.UpsertReport(ctx, a.db, r); err != nil {
		return nil, apperr.Store("store report", err)
	}
	a.metrics.ReportComputed()
	return r, nil
}

// ListOptions filters stored reports. Start and End are optional
// YYYY-MM-DD dates bounding the reported periods.
type ListOptions struct {
	CampaignID string
	Start      string
	End        string
	Limit      int
}

func (a *Aggregator) List(ctx context.Context, userID int64, opts ListOptions) ([]models.Report, error) {
	f := models.ReportFilter{
		UserID:     userID,
		CampaignID: strings.TrimSpace(opts.CampaignID),
		Limit:      opts.Limit,
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 100
	}
	var err error
	if f.From, err = optionalDate("start", opts.Start); err != nil {
		return nil, err
	}
	if f.To, err = optionalDate("end", opts.End); err != nil {
		return nil, err
	}
	if f.From != "" && f.To != "" && f.To < f.From {
		return nil, apperr.Invalid("end", "must not be before start")
	}

	reports, err := models.ListReports(ctx, a.db, f)
	if err != nil {
		return nil, apperr.Store("list reports", err)
	}
	return reports, nil
}

func optionalDate(field, s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	d, err := time.Parse(models.DateLayout, s)
	if err != nil {
		return "", apperr.Invalid(field, "must be a date in YYYY-MM-DD form")
	}
	return d.Format(models.DateLayout), nil
}

// Breakdown counts the campaign's events over the period by each dimension.
func (a *Aggregator) Breakdown(ctx context.Context, userID int64, campaignID string, p Period) (map[string][]models.DimensionCount, error) {
	campaignID = strings.TrimSpace(campaignID)
	if campaignID == "" {
		return nil, apperr.Invalid("campaign_id", "is required")
	}
	from, to := p.Bounds()
	out := make(map[string][]models.DimensionCount)
	for _, dim := range models.BreakdownDimensions() {
		counts, err := models.TopValues(ctx, a.db, userID, campaignID, dim, from, to, breakdownLimit)
		if err != nil {
			return nil, apperr.Store("breakdown", err)
		}
		out[dim] = counts
	}
	return out, nil
}
