// Package chats inspects the live WhatsApp web page and extracts the
// currently active conversations.
package chats

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/nileshh/whatsapp-media-sync/internal/browser"
	"github.com/nileshh/whatsapp-media-sync/internal/logging"
	"github.com/nileshh/whatsapp-media-sync/internal/models"
)

// extractScript collects chat titles and timestamp labels from the chat
// list in one round trip.
const extractScript = `JSON.stringify(Array.from(document.querySelectorAll("div[role='row']")).map(function(row) {
	var title = row.querySelector("span[data-testid='chat-title']");
	var ts = row.querySelector("span[data-testid='chat-timestamp']");
	return {
		title: title ? title.innerText.trim() : "",
		timestamp: ts ? ts.innerText.trim() : ""
	};
}).filter(function(c) { return c.title !== ""; }))`

var phoneInTitle = regexp.MustCompile(`\+(\d+)`)

// chatRow mirrors the JSON shape produced by extractScript.
type chatRow struct {
	Title     string `json:"title"`
	Timestamp string `json:"timestamp"`
}

// Analyzer reads the chat list from a rendered session.
type Analyzer struct {
	renderer browser.Renderer
	log      logging.Logger
	now      func() time.Time
}

func NewAnalyzer(renderer browser.Renderer, log logging.Logger) *Analyzer {
	return &Analyzer{
		renderer: renderer,
		log:      log.With("component", "chats"),
		now:      time.Now,
	}
}

// ActiveChats extracts the visible conversations with their last-activity
// timestamps. Extraction failures degrade to an empty list: attribution
// falls back to filename patterns, so this is never fatal.
func (a *Analyzer) ActiveChats(ctx context.Context) []models.ActiveChat {
	raw, err := a.renderer.Execute(ctx, extractScript, nil)
	if err != nil {
		a.log.Warn(ctx, "error extracting chat list", "error", err)
		return nil
	}

	var rows []chatRow
	if err := json.Unmarshal([]byte(raw), &rows); err != nil {
		a.log.Warn(ctx, "unexpected chat list payload", "error", err)
		return nil
	}

	chats := make([]models.ActiveChat, 0, len(rows))
	for _, row := range rows {
		chats = append(chats, models.ActiveChat{
			ID:           chatID(row.Title),
			Title:        row.Title,
			LastActivity: parseChatTime(row.Timestamp, a.now()),
		})
	}
	return chats
}

// chatID extracts a bare phone number from a chat title, falling back to
// the title itself for named contacts.
func chatID(title string) string {
	if m := phoneInTitle.FindStringSubmatch(title); m != nil {
		return m[1]
	}
	return title
}

// parseChatTime interprets the timestamp label next to a chat. Today's
// chats show "HH:MM"; older ones show "yesterday" or a date. Anything
// unrecognized falls back to now.
func parseChatTime(label string, now time.Time) time.Time {
	label = strings.TrimSpace(label)

	if strings.Contains(label, ":") {
		parts := strings.SplitN(label, ":", 2)
		hour, errH := strconv.Atoi(strings.TrimSpace(parts[0]))
		minute, errM := strconv.Atoi(strings.TrimSpace(parts[1]))
		if errH == nil && errM == nil && hour >= 0 && hour < 24 && minute >= 0 && minute < 60 {
			return time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
		}
	}

	if strings.EqualFold(label, "yesterday") {
		return now.AddDate(0, 0, -1)
	}

	return now
}
