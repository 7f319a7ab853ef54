// Package models defines the data records persisted in the metadata store.
package models

import "time"

// MediaType buckets a file by its extension group.
type MediaType string

const (
	MediaImage    MediaType = "image"
	MediaDocument MediaType = "document"
	MediaAudio    MediaType = "audio"
	MediaVideo    MediaType = "video"
	MediaArchive  MediaType = "archive"
	MediaOther    MediaType = "other"
)

// SyncStatus tracks a file record's upload state. Records only move
// forward: not_synced -> synced, or not_synced -> sync_error -> (retry)
// -> synced|sync_error. A synced record never reverts implicitly.
type SyncStatus string

const (
	SyncNotSynced SyncStatus = "not_synced"
	SyncSynced    SyncStatus = "synced"
	SyncError     SyncStatus = "sync_error"
)

// UnknownSender is the sentinel sender identity used when no attribution
// path produced a match.
const UnknownSender = "unknown"

// FileRecord is the metadata row for one discovered media file.
// Content hash is the dedup key: two records with the same hash under the
// same owner resolve to the same remote object once synced.
type FileRecord struct {
	ID    string
	Owner string

	Filename      string
	LocalPath     string
	OrganizedPath string
	FileHash      string
	Size          int64
	MimeType      string
	MediaType     MediaType

	// SenderID is the attributed counterpart identity (phone number) or
	// UnknownSender.
	SenderID string

	SyncStatus     SyncStatus
	UploadAttempts int
	LastError      string
	RemotePath     string
	RemoteURL      string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// FileFilter narrows List/Count queries. Zero values mean "no constraint".
type FileFilter struct {
	Owner      string
	SenderID   string
	MediaType  MediaType
	SyncStatus SyncStatus
}

// FileStats aggregates per-owner file counts for the stats endpoint.
type FileStats struct {
	TotalFiles     int64
	SyncedFiles    int64
	TotalSizeBytes int64
	ByMediaType    map[MediaType]int64
	BySender       map[string]int64
}
