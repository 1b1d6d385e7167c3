package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/skpttrack/tracker/internal/analytics"
	"github.com/skpttrack/tracker/internal/auth"
	"github.com/skpttrack/tracker/internal/config"
	"github.com/skpttrack/tracker/internal/db"
	"github.com/skpttrack/tracker/internal/logging"
	"github.com/skpttrack/tracker/internal/models"
	"github.com/skpttrack/tracker/internal/registry"
)

type seedCampaign struct {
	id   string
	name string
	// weight controls relative traffic (higher = more events)
	weight float64
}

var campaigns = []seedCampaign{
	{"black-friday", "Black Friday", 5.0},
	{"launch-webinar", "Launch Webinar", 3.5},
	{"retargeting-ig", "Instagram Retargeting", 2.8},
	{"tiktok-ugc", "TikTok UGC", 2.2},
	{"newsletter", "Weekly Newsletter", 1.5},
}

type weighted[T any] struct {
	v      T
	weight float64
}

// Funnel steps; sales are rare relative to clicks.
var eventMix = []weighted[models.EventType]{
	{models.EventClick, 55},
	{models.EventPageview, 25},
	{models.EventLead, 10},
	{models.EventCheckout, 6},
	{models.EventSale, 4},
}

var userAgents = []weighted[string]{
	{"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36", 40},
	{"Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1", 25},
	{"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36", 20},
	{"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15", 10},
	{"Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0", 5},
}

var countries = []weighted[string]{
	{"BR", 60},
	{"PT", 10},
	{"US", 10},
	{"AR", 8},
	{"MX", 7},
	{"CO", 5},
}

var saleValues = []weighted[int64]{
	{4990, 40},
	{9700, 30},
	{19700, 20},
	{49700, 10},
}

func weightedPick[T any](items []weighted[T], rng *rand.Rand) T {
	var total float64
	for _, item := range items {
		total += item.weight
	}
	r := rng.Float64() * total
	for _, item := range items {
		r -= item.weight
		if r <= 0 {
			return item.v
		}
	}
	return items[len(items)-1].v
}

func main() {
	email := flag.String("email", "admin@example.com", "admin user email")
	password := flag.String("password", "changeme", "admin user password")
	botID := flag.String("bot-id", "demo-bot", "utmify bot id")
	botToken := flag.String("bot-token", "", "utmify api token for the bot")
	demo := flag.Bool("demo", false, "create demo links and 90 days of events")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)
	log := logging.For("seed")

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer database.Close()

	ctx := context.Background()
	user, err := models.GetUserByEmail(ctx, database, *email)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		hash, err := auth.HashPassword(*password)
		if err != nil {
			log.Fatalf("hash password: %v", err)
		}
		user = &models.User{Email: *email, PasswordHash: hash, Name: "Admin", BotID: *botID, BotToken: *botToken}
		if err := models.CreateUser(ctx, database, user); err != nil {
			log.Fatalf("create user: %v", err)
		}
		fmt.Printf("Created user %s (id %d)\n", user.Email, user.ID)
	case err != nil:
		log.Fatalf("load user: %v", err)
	default:
		fmt.Printf("User %s already exists (id %d)\n", user.Email, user.ID)
	}

	if *demo {
		seedDemo(ctx, database, cfg, user)
	}

	if cfg.JWTSecret != "" {
		tok, err := auth.Issuer{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer, Audience: cfg.JWTAudience}.Issue(user.ID, 30*24*time.Hour)
		if err != nil {
			log.Fatalf("issue token: %v", err)
		}
		fmt.Printf("\nDev token (30 days):\n  Authorization: Bearer %s\n", tok)
	}
	fmt.Printf("Database: %s\n", cfg.DBPath)
}

func seedDemo(ctx context.Context, database *sql.DB, cfg *config.Config, user *models.User) {
	rng := rand.New(rand.NewSource(42)) // deterministic seed
	reg := registry.New(database, nil, cfg.TrackingURL)
	now := time.Now().UTC()
	start := now.AddDate(0, 0, -90)

	fmt.Println("\nSeeding links...")
	total := 0
	for _, c := range campaigns {
		link, err := reg.Create(ctx, user.ID, registry.CreateInput{CampaignID: c.id, CampaignName: c.name, BotID: user.BotID})
		if err != nil {
			logrus.Fatalf("create link %q: %v", c.id, err)
		}
		fmt.Printf("  [%2d] %-16s %s\n", link.ID, c.id, link.TrackingURL)

		n := 0
		for day := start; day.Before(now); day = day.Add(24 * time.Hour) {
			// ±40% daily variance with a weekend dip
			perDay := c.weight * 6 * (0.6 + rng.Float64()*0.8)
			if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
				perDay *= 0.5
			}
			for j := 0; j < int(perDay); j++ {
				at := day.Add(time.Duration(rng.Intn(86400)) * time.Second)
				if at.After(now) {
					continue
				}
				if err := insertDemoEvent(ctx, database, link, at, rng); err != nil {
					logrus.Fatalf("insert event for %s: %v", c.id, err)
				}
				n++
			}
		}
		total += n
		fmt.Printf("       %d events\n", n)
	}
	fmt.Printf("\nDone! Created %d links with %d events.\n", len(campaigns), total)
}

// insertDemoEvent writes a backdated event already marked as delivered so the
// dispatcher never forwards demo data.
func insertDemoEvent(ctx context.Context, database *sql.DB, link *models.TrackingLink, at time.Time, rng *rand.Rand) error {
	ua := weightedPick(userAgents, rng)
	meta := analytics.NewEnricher(nil, nil).Enrich(analytics.Client{UserAgent: ua})

	ev := &models.TrackingEvent{
		UID:            uuid.NewString(),
		TrackingLinkID: link.ID,
		UserID:         link.UserID,
		EventType:      weightedPick(eventMix, rng),
		CampaignID:     link.CampaignID,
		IP:             fmt.Sprintf("%d.%d.%d.%d", rng.Intn(223)+1, rng.Intn(256), rng.Intn(256), rng.Intn(256)),
		UserAgent:      ua,
		Browser:        meta.Browser,
		OS:             meta.OS,
		DeviceType:     meta.DeviceType,
		Country:        weightedPick(countries, rng),
		CreatedAt:      at,
	}
	if ev.EventType == models.EventSale {
		v := weightedPick(saleValues, rng)
		ev.SaleValueCents = &v
	}
	if err := models.InsertEvent(ctx, database, ev); err != nil {
		return err
	}
	return models.MarkDelivered(ctx, database, ev.ID, "seeded")
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: seed [flags]\n\nCreates the admin user (and optional demo data) in TRACKER_DB_PATH.\n\n")
		flag.PrintDefaults()
	}
}
