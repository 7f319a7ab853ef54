// Package objstore defines the object-storage capability consumed by the
// upload coordinator and provides an S3-compatible implementation.
package objstore

import "context"

// ObjectInfo describes one stored object in a listing.
type ObjectInfo struct {
	// Name is the object's base name within the listed prefix.
	Name string
	Size int64
}

// ObjectStore is the remote bucket capability. Put reports an occupied
// destination as common.ErrRemoteCollision; callers treat "already
// exists" as a routine result, not an exceptional condition.
type ObjectStore interface {
	Put(ctx context.Context, path string, body []byte, contentType string) error
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	PublicURL(path string) string
	Delete(ctx context.Context, path string) error
}
