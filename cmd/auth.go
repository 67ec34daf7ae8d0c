package main

import (
	"context"
	"time"

	"github.com/desertthunder/licentry/internal/ui"
	"github.com/urfave/cli/v3"
)

// tokenStatus is the `auth status --json` payload.
type tokenStatus struct {
	Cached     bool      `json:"cached"`
	Fresh      bool      `json:"fresh"`
	AcquiredAt time.Time `json:"acquiredAt,omitzero"`
	ExpiresAt  time.Time `json:"expiresAt,omitzero"`
	AgeSeconds int64     `json:"ageSeconds"`
	BaseURL    string    `json:"baseUrl"`
	Reachable  bool      `json:"reachable"`
	Error      string    `json:"error,omitempty"`
}

// AuthLogin acquires a token pair through the cache, fetching only when the cached pair is missing or stale.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("force") {
		r.logger.Info("discarding cached tokens")
		if err := r.cache.Invalidate(ctx); err != nil {
			return err
		}
	}

	if _, err := r.cache.Tokens(ctx); err != nil {
		return err
	}

	entry, ok, err := r.cache.Peek(ctx)
	if err != nil || !ok {
		r.logger.Warn("tokens acquired but not persisted", "error", err)
		return r.writePlain("%s\n", ui.Warning("✓ Tokens acquired (not persisted)"))
	}

	r.logger.Info("tokens ready", "acquired_at", entry.AcquiredAt)
	r.writePlain("%s\n", ui.Success("✓ Tokens ready"))
	r.writePlain("Acquired: %s\n", entry.AcquiredAt.Format(time.RFC3339))
	return r.writePlain("Expires:  %s\n", r.cache.ExpiresAt(entry).Format(time.RFC3339))
}

// AuthStatus reports the cached token slot and backend reachability without fetching tokens.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	r.logger.Info("checking auth status")

	status := tokenStatus{BaseURL: r.config.API.BaseURL}

	entry, ok, err := r.cache.Peek(ctx)
	if err != nil {
		r.logger.Warn("failed to read cached tokens", "error", err)
	}
	if ok {
		now := time.Now()
		status.Cached = true
		status.Fresh = r.cache.Fresh(entry)
		status.AcquiredAt = entry.AcquiredAt
		status.ExpiresAt = r.cache.ExpiresAt(entry)
		status.AgeSeconds = int64(entry.Age(now).Seconds())
	}

	healthErr := r.api.Health(ctx)
	status.Reachable = healthErr == nil
	if healthErr != nil {
		status.Error = healthErr.Error()
	}

	if cmd.Bool("json") {
		if err := r.writeJSON(status, true); err != nil {
			return err
		}
		return healthErr
	}

	r.writePlainHeader("Token Status")
	switch {
	case !status.Cached:
		r.writePlain("Tokens:   %s\n", ui.Muted("none cached"))
	case status.Fresh:
		r.writePlain("Tokens:   %s\n", ui.Success("fresh"))
	default:
		r.writePlain("Tokens:   %s\n", ui.Warning("expired"))
	}
	if status.Cached {
		r.writePlain("Acquired: %s (%s ago)\n", status.AcquiredAt.Format(time.RFC3339), time.Duration(status.AgeSeconds)*time.Second)
		r.writePlain("Expires:  %s\n", status.ExpiresAt.Format(time.RFC3339))
	}

	r.writePlain("Backend:  %s ", status.BaseURL)
	if healthErr != nil {
		r.writePlain("%s\n", ui.Failure("✗ unreachable"))
		return healthErr
	}
	return r.writePlain("%s\n", ui.Success("✓ reachable"))
}

// AuthLogout clears the cached token slot.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if err := r.cache.Invalidate(ctx); err != nil {
		return err
	}
	r.logger.Info("cached tokens cleared")
	return r.writePlain("%s\n", ui.Success("✓ Cached tokens cleared"))
}
