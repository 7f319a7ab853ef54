package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nileshh/whatsapp-media-sync/internal/models"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		filename string
		want     models.MediaType
	}{
		{"IMG-0001.jpg", models.MediaImage},
		{"photo.HEIC", models.MediaImage},
		{"report.pdf", models.MediaDocument},
		{"voice.opus", models.MediaAudio},
		{"VID-0001.mp4", models.MediaVideo},
		{"backup.tar.gz", models.MediaArchive},
		{"unknown.xyz", models.MediaOther},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, classify(tt.filename), tt.filename)
	}
}

func TestIsCandidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		filename string
		want     bool
	}{
		{"IMG-20230615-0001.jpg", true},
		{"WhatsApp Image 2023-06-15", true},
		{"PTT-20230615-0001", true},
		{".hidden.jpg", false},
		{"notes.xyz", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, isCandidate(tt.filename), tt.filename)
	}
}

func TestGuessMimeType(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "image/jpeg", guessMimeType("photo.jpg"))
	assert.Equal(t, "application/pdf", guessMimeType("report.pdf"))
	assert.Equal(t, defaultMimeType, guessMimeType("mystery.zzz"))
	assert.Equal(t, defaultMimeType, guessMimeType("noextension"))
}
