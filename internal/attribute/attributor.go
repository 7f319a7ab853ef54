// Package attribute resolves the sender identity of a discovered media
// file from its path, its filename, or time proximity to an active chat.
package attribute

import (
	"regexp"
	"time"

	"github.com/nileshh/whatsapp-media-sync/internal/models"
)

// chatMatchWindow is the widest acceptable gap between a file's timestamp
// and a chat's last activity for a time-proximity match.
const chatMatchWindow = 12 * time.Hour

// folderPatterns match a phone number embedded in a WhatsApp directory
// segment: regular conversations and ephemeral status updates.
var folderPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d+)@s\.whatsapp\.net`),
	regexp.MustCompile(`(\d+)@status`),
}

// filenamePatterns match phone numbers embedded in common WhatsApp
// filename templates. Order matters: the most specific forms come first.
var filenamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`from \+(\d+)`),
	regexp.MustCompile(`from \((\d+)\)`),
	regexp.MustCompile(`from (\d{10,})`),
	regexp.MustCompile(`(\d{10,})\.`),
	regexp.MustCompile(`WhatsApp.*?(\d{10,})`),
}

// Attribute resolves a sender identity for the file at pathOrName. It is
// pure: the result depends only on its arguments. Resolution order is
// folder patterns, then filename patterns, then time proximity against
// chats, then the UnknownSender sentinel.
func Attribute(pathOrName string, fileTime time.Time, chats []models.ActiveChat) string {
	for _, re := range folderPatterns {
		if m := re.FindStringSubmatch(pathOrName); m != nil {
			return m[1]
		}
	}

	for _, re := range filenamePatterns {
		if m := re.FindStringSubmatch(pathOrName); m != nil {
			return m[1]
		}
	}

	if id, ok := matchByTime(fileTime, chats); ok {
		return id
	}

	return models.UnknownSender
}

// matchByTime picks the chat whose last activity is closest to fileTime,
// accepting it only within chatMatchWindow.
func matchByTime(fileTime time.Time, chats []models.ActiveChat) (string, bool) {
	var closest string
	var closestDiff time.Duration

	for _, chat := range chats {
		diff := fileTime.Sub(chat.LastActivity)
		if diff < 0 {
			diff = -diff
		}
		if closest == "" || diff < closestDiff {
			closest = chat.ID
			closestDiff = diff
		}
	}

	if closest != "" && closestDiff < chatMatchWindow {
		return closest, true
	}
	return "", false
}
