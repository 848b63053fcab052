package object

import (
	"context"
	"io"
	"path"

	"resume-insight/internal/shared/util"
)

// ObjectStore saves and retrieves blobs under caller-chosen keys.
type ObjectStore interface {
	Put(ctx context.Context, key string, contentType string, r io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// ReportKey returns the archive key for a completed analysis report.
// The owner segment is hashed so keys never expose user identifiers.
func ReportKey(userID, analysisID string) (string, error) {
	name, err := util.SanitizeFileName(analysisID + ".json")
	if err != nil {
		return "", err
	}
	return path.Join("reports", util.HashUserKey(userID), name), nil
}
