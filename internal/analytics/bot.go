package analytics

import (
	"strings"

	"github.com/mssola/useragent"
)

// Substrings matched case-insensitively against the User-Agent. Conversion
// pixels get hit by link unfurlers and ad-network verifiers as often as by
// real buyers.
var botSignatures = []string{
	"bot", "spider", "crawl", "preview",

	// Social unfurlers
	"facebookexternalhit", "facebot", "whatsapp", "telegrambot",
	"twitterbot", "linkedinbot", "slackbot", "discordbot", "pinterest",

	// Ad platform and search verifiers
	"adsbot-google", "mediapartners-google", "google-adwords", "google-read-aloud",
	"bingpreview/", "tiktok", "bytespider",

	// Scripted clients
	"go-http-client/", "curl/", "wget/", "python-requests/", "python-urllib/",
	"okhttp/", "java/", "axios/", "node-fetch", "libwww-perl/",

	// Headless renderers
	"headlesschrome/", "phantomjs", "puppeteer", "playwright", "chrome-lighthouse",
}

// IsBot reports whether the user-agent looks automated.
func IsBot(rawUA string) bool {
	if strings.TrimSpace(rawUA) == "" {
		return true
	}
	if useragent.New(rawUA).Bot() {
		return true
	}
	lower := strings.ToLower(rawUA)
	for _, sig := range botSignatures {
		if strings.Contains(lower, sig) {
			return true
		}
	}
	return false
}
