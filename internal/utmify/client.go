package utmify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/skpttrack/tracker/internal/models"
)

const Platform = "SkptTrack"

// maxResponse bounds how much of a reply is kept for the audit column.
const maxResponse = 8 << 10

// Order is the payload posted to the orders endpoint.
type Order struct {
	OrderID            string             `json:"orderId"`
	Platform           string             `json:"platform"`
	PaymentMethod      string             `json:"paymentMethod"`
	Status             string             `json:"status"`
	CreatedAt          string             `json:"createdAt"`
	ApprovedDate       *string            `json:"approvedDate"`
	Customer           Customer           `json:"customer"`
	Products           []Product          `json:"products"`
	TrackingParameters TrackingParameters `json:"trackingParameters"`
	Commission         Commission         `json:"commission"`
	IsTest             bool               `json:"isTest"`
}

type Customer struct {
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Phone    *string `json:"phone"`
	Document *string `json:"document"`
	IP       string  `json:"ip"`
}

type Product struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Quantity     int    `json:"quantity"`
	PriceInCents int64  `json:"priceInCents"`
}

type TrackingParameters struct {
	Src         *string `json:"src"`
	UTMSource   *string `json:"utm_source"`
	UTMCampaign *string `json:"utm_campaign"`
	UTMContent  *string `json:"utm_content"`
}

type Commission struct {
	TotalPriceInCents     int64  `json:"totalPriceInCents"`
	GatewayFeeInCents     int64  `json:"gatewayFeeInCents"`
	UserCommissionInCents int64  `json:"userCommissionInCents"`
	Currency              string `json:"currency"`
}

// StatusFor maps an event type onto the downstream order status.
func StatusFor(t models.EventType) string {
	if t == models.EventSale {
		return "paid"
	}
	return "waiting_payment"
}

const timeLayout = "2006-01-02 15:04:05"

// NewOrder builds the order for a delivery job.
func NewOrder(job *models.DeliveryJob, testMode bool) Order {
	e := job.Event
	var value int64
	if e.SaleValueCents != nil {
		value = *e.SaleValueCents
	}
	created := e.CreatedAt.UTC().Format(timeLayout)
	var approved *string
	if e.EventType == models.EventSale {
		approved = &created
	}
	src := job.BotID
	source := "telegram"
	campaign := e.CampaignID
	if job.CampaignName != "" {
		campaign = job.CampaignName + "|" + e.CampaignID
	}
	content := string(e.EventType)

	return Order{
		OrderID:       e.UID,
		Platform:      Platform,
		PaymentMethod: "unknown",
		Status:        StatusFor(e.EventType),
		CreatedAt:     created,
		ApprovedDate:  approved,
		Customer: Customer{
			Name:  "Lead " + e.UID[:min(8, len(e.UID))],
			Email: "lead+" + e.UID + "@skpttrack.local",
			IP:    e.IP,
		},
		Products: []Product{{
			ID:           e.CampaignID,
			Name:         string(e.EventType),
			Quantity:     1,
			PriceInCents: value,
		}},
		TrackingParameters: TrackingParameters{
			Src:         &src,
			UTMSource:   &source,
			UTMCampaign: &campaign,
			UTMContent:  &content,
		},
		Commission: Commission{
			TotalPriceInCents:     value,
			UserCommissionInCents: value,
			Currency:              "BRL",
		},
		IsTest: testMode,
	}
}

// Result is the raw outcome of one delivery attempt.
type Result struct {
	StatusCode int
	Body       string
}

type Client struct {
	url      string
	http     *http.Client
	testMode bool
}

func NewClient(url string, timeout time.Duration, testMode bool) *Client {
	return &Client{
		url:      url,
		http:     &http.Client{Timeout: timeout},
		testMode: testMode,
	}
}

// Send posts the job's order authenticated with the bot token. A non-2xx
// reply is returned as an error together with the Result.
func (c *Client) Send(ctx context.Context, job *models.DeliveryJob) (Result, error) {
	body, err := json.Marshal(NewOrder(job, c.testMode))
	if err != nil {
		return Result{}, fmt.Errorf("encode order: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-token", job.BotToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("post order: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponse))
	res := Result{StatusCode: resp.StatusCode, Body: string(raw)}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return res, fmt.Errorf("utmify returned %s", resp.Status)
	}
	return res, nil
}
