package cron

import (
	"context"
	"fmt"
	"time"
)

const stalePendingAge = 24 * time.Hour

// ReconcileAccessGrants retries access grants for purchases that completed
// payment but failed to receive their access row.
// Runs every 10 minutes.
func (m *CronManager) ReconcileAccessGrants() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	jobName := "reconcile_access_grants"

	granted, err := m.fulfillment.ReconcileAccessGrants(ctx)
	if err != nil {
		m.logJobError(jobName, fmt.Errorf("reconciliation pass failed: %w", err))
		return
	}

	if granted == 0 {
		m.logJobComplete(jobName, "No purchases needed reconciliation")
		return
	}
	m.logJobComplete(jobName, fmt.Sprintf("Granted access for %d reconciled purchases", granted))
}

// ExpireStalePurchases fails pending purchases whose payment never arrived.
// Runs hourly; anything pending for more than 24 hours is considered
// abandoned.
func (m *CronManager) ExpireStalePurchases() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	jobName := "expire_stale_purchases"

	expired, err := m.fulfillment.ExpireStalePendingPurchases(ctx, stalePendingAge)
	if err != nil {
		m.logJobError(jobName, fmt.Errorf("failed to expire pending purchases: %w", err))
		return
	}

	m.logJobComplete(jobName, fmt.Sprintf("Marked %d stale pending purchases as failed", expired))
}

// CleanupExpiredTokens drops blacklist rows whose tokens have expired anyway.
// Runs daily.
func (m *CronManager) CleanupExpiredTokens() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	jobName := "cleanup_expired_tokens"

	if err := m.blacklist.CleanupExpiredTokens(ctx); err != nil {
		m.logJobError(jobName, fmt.Errorf("failed to cleanup expired tokens: %w", err))
		return
	}

	m.logJobComplete(jobName, "Expired blacklist entries removed")
}
