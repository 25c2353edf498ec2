package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/account-reconciler/internal/models"
	"github.com/account-reconciler/internal/roster"
	"github.com/account-reconciler/internal/types"
)

// ValidateAllInBackground runs a full validation sweep over the roster:
// platforms in parallel, accounts within a platform sequentially, which
// bounds concurrent outstanding requests to the platform count.
//
// Three independent gates must all pass or the call is a no-op: the
// validation cooldown has elapsed, no sweep is currently in progress, and
// the shared throttle interval has elapsed. Cancellation is cooperative:
// ResetState discards results of in-flight requests but never interrupts
// them.
func (o *Orchestrator) ValidateAllInBackground(ctx context.Context) {
	if !o.tracker.NeedsValidation() {
		o.logger.Debug("Validation cooldown active, skipping background sweep")
		return
	}

	o.mu.Lock()
	if o.sweeping {
		o.mu.Unlock()
		o.logger.Debug("Background sweep already in progress, skipping")
		return
	}
	if !o.lastRefreshAt.IsZero() && o.now().Sub(o.lastRefreshAt) < o.minInterval {
		o.mu.Unlock()
		o.logger.Debug("Refresh interval not elapsed, skipping background sweep")
		return
	}
	token := newSweepToken()
	o.token = token
	o.sweeping = true
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.sweeping = false
		o.mu.Unlock()
		o.repo.EndRefresh()
		o.stampRefresh()
	}()

	o.repo.StartRefresh()

	accounts := o.repo.Accounts()
	if len(accounts) == 0 {
		o.logger.Debug("No accounts to validate")
		return
	}

	groups := make(map[string][]*models.Account)
	for _, account := range accounts {
		groups[account.Platform] = append(groups[account.Platform], account)
	}

	sweepLogger := o.logger.WithField("sweep", token.id.String())
	sweepLogger.WithFields(map[string]interface{}{
		"accounts":  len(accounts),
		"platforms": len(groups),
	}).Info("Background validation sweep started")

	var wg sync.WaitGroup
	for platform, group := range groups {
		wg.Add(1)
		go func(platform string, group []*models.Account) {
			defer wg.Done()
			for _, account := range group {
				if o.tokenCancelled(token) {
					sweepLogger.WithField("platform", platform).Debug("Sweep cancelled, stopping platform queue")
					return
				}
				o.validateAccount(ctx, token, account)
			}
		}(platform, group)
	}
	wg.Wait()

	if o.tokenCancelled(token) {
		sweepLogger.Info("Background validation sweep cancelled, not marking validation complete")
		return
	}
	o.tracker.MarkValidationCompleted()
	sweepLogger.Info("Background validation sweep complete")
}

// validateAccount validates one account under the sweep's token. A cancelled
// or superseded token abandons the result without touching the roster.
func (o *Orchestrator) validateAccount(ctx context.Context, token *sweepToken, account *models.Account) {
	o.repo.UpdateAccountStatus(account.ID, types.StatusVerifying, true)

	id := account.ID
	resp, err := o.client.ListValidatedAccounts(ctx, &id)

	if o.tokenCancelled(token) {
		o.logger.WithField("id", id).Debug("Sweep cancelled, discarding validation result")
		return
	}

	if err != nil {
		o.logger.WithError(err).WithFields(map[string]interface{}{
			"id":       id,
			"name":     account.Name,
			"platform": account.Platform,
		}).Error("Account validation failed")
		o.repo.UpdateAccountStatus(id, types.StatusException, false)
		return
	}

	if resp.OK() && len(resp.Data) > 0 {
		status := statusFromResultRow(resp.Data[0])
		refreshing := false
		o.repo.UpdateAccount(id, roster.AccountPatch{Status: &status, IsRefreshing: &refreshing})
		return
	}
	o.repo.UpdateAccountStatus(id, types.StatusException, false)
}

// RetryExceptionAccounts re-validates every exception account whose backoff
// has elapsed, all in parallel. This sweep takes no cancellation token and
// no global flag; it may run alongside any other entry point.
func (o *Orchestrator) RetryExceptionAccounts(ctx context.Context) {
	eligible := o.scheduler.AccountsForRetry()
	if len(eligible) == 0 {
		return
	}
	o.logger.WithField("accounts", len(eligible)).Info("Retrying exception accounts")

	var wg sync.WaitGroup
	for _, account := range eligible {
		wg.Add(1)
		go func(account *models.Account) {
			defer wg.Done()
			id := account.ID
			o.repo.UpdateAccountStatus(id, types.StatusVerifying, false)

			resp, err := o.client.ListValidatedAccounts(ctx, &id)
			if err != nil || !resp.OK() || len(resp.Data) == 0 {
				o.repo.UpdateAccountStatus(id, types.StatusException, false)
				o.scheduler.IncrementRetryCount(id)
				return
			}

			status := statusFromResultRow(resp.Data[0])
			o.repo.UpdateAccount(id, roster.AccountPatch{Status: &status})
			if status == types.StatusNormal {
				o.scheduler.ResetRetryCount(id)
				o.logger.WithFields(map[string]interface{}{
					"id":   id,
					"name": account.Name,
				}).Info("Exception account recovered")
			} else {
				o.scheduler.IncrementRetryCount(id)
			}
		}(account)
	}
	wg.Wait()
}

// BatchRefresh validates the selected accounts in parallel, updating each
// one individually as its response lands. Partial failure is tolerated; the
// aggregate result reports success as long as the batch ran.
func (o *Orchestrator) BatchRefresh(ctx context.Context, ids []int64) *RefreshResult {
	if len(ids) == 0 {
		o.notifier.Info("no accounts selected")
		return &RefreshResult{Success: false, Error: "no accounts selected"}
	}

	o.repo.StartRefresh()
	defer o.repo.EndRefresh()

	o.notifier.Info(fmt.Sprintf("refreshing %d accounts", len(ids)))

	var wg sync.WaitGroup
	for _, id := range ids {
		account := o.repo.ByID(id)
		if account == nil {
			o.logger.WithField("id", id).Warn("Skipping unknown account in batch refresh")
			continue
		}
		wg.Add(1)
		go func(id int64, name string) {
			defer wg.Done()
			o.repo.UpdateAccountStatus(id, types.StatusVerifying, true)

			resp, err := o.client.ListValidatedAccounts(ctx, &id)
			if err != nil {
				o.logger.WithError(err).WithField("name", name).Error("Batch refresh of account failed")
				o.repo.UpdateAccountStatus(id, types.StatusException, false)
				return
			}
			if resp.OK() && len(resp.Data) > 0 {
				status := statusFromResultRow(resp.Data[0])
				refreshing := false
				o.repo.UpdateAccount(id, roster.AccountPatch{Status: &status, IsRefreshing: &refreshing})
				return
			}
			o.repo.UpdateAccountStatus(id, types.StatusException, false)
		}(id, account.Name)
	}
	wg.Wait()

	if err := o.cache.Delete(ctx, KeyValidAccounts, nil); err != nil {
		o.logger.WithError(err).Warn("Failed to invalidate validated snapshot cache")
	}
	o.notifier.Success(fmt.Sprintf("batch refresh complete, %d accounts refreshed", len(ids)))
	return &RefreshResult{Success: true}
}

// ForceRefresh bypasses every gate: no cooldown check, no throttle, no cache
// check. It is the explicit user override used right after a login, when the
// roster must reflect reality immediately.
func (o *Orchestrator) ForceRefresh(ctx context.Context) *RefreshResult {
	if err := o.cache.Delete(ctx, KeyValidAccounts, nil); err != nil {
		o.logger.WithError(err).Warn("Failed to clear validated snapshot cache")
	}
	if err := o.cache.Delete(ctx, KeyQuickAccounts, nil); err != nil {
		o.logger.WithError(err).Warn("Failed to clear quick snapshot cache")
	}

	// Flag everything refreshing up front so the UI flips to verifying the
	// instant the refresh begins.
	o.repo.SetAllRefreshing(true)
	defer o.repo.EndRefresh()

	resp, err := o.client.ListValidatedAccounts(ctx, nil)
	if err != nil {
		o.logger.WithError(err).Error("Force refresh failed")
		return &RefreshResult{Success: false, Error: err.Error()}
	}
	if !resp.OK() || resp.Data == nil {
		return &RefreshResult{Success: false, Error: fmt.Sprintf("validator returned code %d", resp.Code)}
	}

	if err := o.cache.Set(ctx, KeyValidAccounts, resp.Data, 0, nil); err != nil {
		o.logger.WithError(err).Warn("Failed to cache validated snapshot")
	}
	o.repo.SetAccounts(resp.Data)
	o.stampRefresh()
	return &RefreshResult{Success: true}
}

// DeleteAccount removes an account remotely first, and only on success
// removes the local record and invalidates both cached snapshots.
func (o *Orchestrator) DeleteAccount(ctx context.Context, id int64) error {
	resp, err := o.client.DeleteAccount(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete account %d: %w", id, err)
	}
	if !resp.OK() {
		msg := resp.Msg
		if msg == "" {
			msg = fmt.Sprintf("validator returned code %d", resp.Code)
		}
		return &types.ServiceError{Code: "delete_failed", Message: msg}
	}

	o.repo.Delete(id)
	if err := o.cache.Delete(ctx, KeyValidAccounts, nil); err != nil {
		o.logger.WithError(err).Warn("Failed to invalidate validated snapshot cache")
	}
	if err := o.cache.Delete(ctx, KeyQuickAccounts, nil); err != nil {
		o.logger.WithError(err).Warn("Failed to invalidate quick snapshot cache")
	}
	return nil
}

// statusFromResultRow maps a scoped validation result row to a status: a
// positive flag means normal, anything else means exception.
func statusFromResultRow(row types.Row) types.AccountStatus {
	if row.Flag != nil && *row.Flag == 1 {
		return types.StatusNormal
	}
	return types.StatusException
}
