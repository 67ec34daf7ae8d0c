// package services implements the HTTP client for the license-entry backend
package services

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/desertthunder/licentry/internal/models"
)

// Backend is the set of backend calls the entry workflow depends on.
type Backend interface {
	// FetchTokens obtains a fresh token pair.
	FetchTokens(ctx context.Context) (models.TokenPair, error)

	// CreateLicenceEntry submits an entry and returns the unread progress stream.
	CreateLicenceEntry(ctx context.Context, entry models.LicenseEntry, tokens models.TokenPair) (io.ReadCloser, error)

	// Health reports whether the backend is reachable.
	Health(ctx context.Context) error
}

var _ Backend = (*APIService)(nil)

// NewHTTPClient returns a client with the given overall timeout. Zero means no timeout, which
// streaming submissions need since the backend may take minutes to finish.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}
