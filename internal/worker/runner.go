package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"campaignd/internal/audience"
	"campaignd/internal/dispatch"
	"campaignd/internal/domain"
	"campaignd/internal/observability"
	"campaignd/internal/pacer"
	"campaignd/internal/store"
	"campaignd/internal/util"
)

type Store interface {
	ClaimNextQueueItem(ctx context.Context, now time.Time) (domain.QueueItem, bool, error)
	GetCampaign(ctx context.Context, id string) (domain.Campaign, bool, error)
	GetSegments(ctx context.Context, ids []string) ([]domain.Segment, error)
	GetStoreCredentials(ctx context.Context, storeID string) (domain.StoreCredentials, bool, error)
	MarkCampaignRunning(ctx context.Context, campaignID string, now time.Time) error
	InsertCampaignLog(ctx context.Context, in store.CampaignLogInsert) error
	CompleteRun(ctx context.Context, in store.CompleteRunInput) error
	RescheduleQueueItem(ctx context.Context, in store.RescheduleInput) error
	MarkQueueItemFailed(ctx context.Context, in store.FailQueueItemInput) error
	IncrementUsage(ctx context.Context, in store.UsageIncrement) error
}

type CustomerSource interface {
	FetchCustomers(ctx context.Context, creds domain.StoreCredentials) ([]domain.Customer, error)
}

type Sender interface {
	Send(ctx context.Context, channel domain.Channel, customer domain.Customer, body, subject string) (dispatch.Outcome, error)
}

type ErrorSink interface {
	LogError(msg string, err error, context map[string]any)
}

type Pacer interface {
	Wait(ctx context.Context) error
}

const defaultMaxRetries = 3

// Runner drives one campaign send per invocation: lease a queue item,
// resolve the audience, dispatch to each recipient at the configured pace,
// and finalize or reschedule the item.
type Runner struct {
	Store      Store
	Customers  CustomerSource
	Dispatcher Sender
	Audit      ErrorSink

	// MaxRetries bounds setup-failure reschedules before the item is
	// dead-lettered. Zero means the default of 3.
	MaxRetries int

	// NewPacer and Now exist for tests; nil means the real thing.
	NewPacer func(domain.SendingSpeed) Pacer
	Now      func() time.Time
	IDGen    func(prefix string) string
}

type RunResult struct {
	Claimed     bool
	QueueItemID string
	CampaignID  string
	Matched     int
	Sent        int
	Failed      int
}

// RunOnce processes at most one pending queue item to completion or failure.
// When nothing is claimable it is a no-op, which is also what the loser of a
// concurrent claim race observes.
func (r *Runner) RunOnce(ctx context.Context) (RunResult, error) {
	now := r.now()

	item, claimed, err := r.Store.ClaimNextQueueItem(ctx, now)
	if err != nil {
		return RunResult{}, fmt.Errorf("claim queue item: %w", err)
	}
	if !claimed {
		observability.WorkerRuns.WithLabelValues("idle").Inc()
		return RunResult{}, nil
	}

	result, runErr := r.execute(ctx, item)
	if runErr != nil {
		r.handleRunFailure(ctx, item, runErr)
		return result, runErr
	}

	observability.WorkerRuns.WithLabelValues("completed").Inc()
	return result, nil
}

// execute covers steps 2-5 of the run: any error returned here is a
// setup/infra fault and goes through the retry path. Per-recipient dispatch
// failures never surface as errors; they are outcomes.
func (r *Runner) execute(ctx context.Context, item domain.QueueItem) (RunResult, error) {
	result := RunResult{Claimed: true, QueueItemID: item.ID, CampaignID: item.CampaignID}

	campaign, found, err := r.Store.GetCampaign(ctx, item.CampaignID)
	if err != nil {
		return result, fmt.Errorf("load campaign %s: %w", item.CampaignID, err)
	}
	if !found {
		return result, fmt.Errorf("campaign %s not found", item.CampaignID)
	}

	segments, err := r.Store.GetSegments(ctx, campaign.SegmentIDs)
	if err != nil {
		return result, fmt.Errorf("load segments for campaign %s: %w", campaign.ID, err)
	}

	creds, found, err := r.Store.GetStoreCredentials(ctx, campaign.StoreID)
	if err != nil {
		return result, fmt.Errorf("load store %s: %w", campaign.StoreID, err)
	}
	if !found || creds.AccessToken == "" {
		return result, fmt.Errorf("store %s has no access token", campaign.StoreID)
	}

	if err := r.Store.MarkCampaignRunning(ctx, campaign.ID, r.now()); err != nil {
		return result, fmt.Errorf("mark campaign %s running: %w", campaign.ID, err)
	}

	customers, err := r.Customers.FetchCustomers(ctx, creds)
	if err != nil {
		return result, fmt.Errorf("fetch customers for store %s: %w", campaign.StoreID, err)
	}

	matched := audience.Resolve(customers, segments)
	result.Matched = len(matched)

	pace := r.newPacer(campaign.SendingSpeed)
	for _, customer := range matched {
		r.dispatchOne(ctx, campaign, customer, &result)

		// Pace after every attempt, success or failure. The only error here
		// is context cancellation, which is an infra fault for the run.
		if err := pace.Wait(ctx); err != nil {
			return result, fmt.Errorf("pacing interrupted: %w", err)
		}
	}

	if err := r.Store.CompleteRun(ctx, store.CompleteRunInput{
		QueueItemID: item.ID,
		CampaignID:  campaign.ID,
		Totals:      store.RunTotals{Sent: result.Sent, Failed: result.Failed},
		Now:         r.now(),
	}); err != nil {
		return result, fmt.Errorf("finalize run for campaign %s: %w", campaign.ID, err)
	}

	// Metering is best-effort by contract: a failed upsert must not fail or
	// retry the send.
	if err := r.Store.IncrementUsage(ctx, store.UsageIncrement{
		StoreID:           campaign.StoreID,
		Period:            r.now().Format("2006-01"),
		MessagesSent:      result.Sent,
		CampaignsExecuted: 1,
	}); err != nil {
		slog.Warn("usage metric update failed", "err", err, "store_id", campaign.StoreID, "campaign_id", campaign.ID)
	}

	slog.Info("campaign run completed",
		"campaign_id", campaign.ID,
		"queue_item_id", item.ID,
		"matched", result.Matched,
		"sent", result.Sent,
		"failed", result.Failed,
	)
	return result, nil
}

func (r *Runner) dispatchOne(ctx context.Context, campaign domain.Campaign, customer domain.Customer, result *RunResult) {
	vars := customer.TemplateVars()
	body := util.RenderTemplate(campaign.Template.Body, vars)
	subject := util.RenderTemplate(campaign.Template.Subject, vars)

	outcome, err := r.Dispatcher.Send(ctx, campaign.Type, customer, body, subject)

	logRow := store.CampaignLogInsert{
		ID:         r.newID("log"),
		CampaignID: campaign.ID,
		CustomerID: customer.ID,
		Now:        r.now(),
	}
	if err != nil {
		result.Failed++
		logRow.Status = domain.LogFailed
		logRow.Message = err.Error()
	} else {
		result.Sent++
		logRow.Status = domain.LogSuccess
		logRow.Message = outcome.Note
		logRow.ProviderMsgID = outcome.ProviderMsgID
	}

	if logErr := r.Store.InsertCampaignLog(ctx, logRow); logErr != nil {
		slog.Warn("campaign log insert failed",
			"err", logErr, "campaign_id", campaign.ID, "customer_id", customer.ID)
	}
}

// handleRunFailure is the retry/backoff path for setup and infra faults.
// The retry count increments; at the cap the item dead-letters with an
// escalated audit entry, otherwise it reschedules PENDING with linear
// backoff (60s x new retry count).
func (r *Runner) handleRunFailure(ctx context.Context, item domain.QueueItem, runErr error) {
	now := r.now()
	retryCount := item.RetryCount + 1

	if retryCount >= r.maxRetries() {
		if err := r.Store.MarkQueueItemFailed(ctx, store.FailQueueItemInput{
			QueueItemID: item.ID,
			RetryCount:  retryCount,
			LastError:   runErr.Error(),
			Now:         now,
		}); err != nil {
			slog.Error("dead-letter transition failed", "err", err, "queue_item_id", item.ID)
		}
		observability.QueueDeadLettered.Inc()
		observability.WorkerRuns.WithLabelValues("dead_letter").Inc()
		r.Audit.LogError("campaign queue item failed permanently", runErr, map[string]any{
			"queue_item_id": item.ID,
			"campaign_id":   item.CampaignID,
			"retry_count":   retryCount,
		})
		return
	}

	backoff := time.Duration(retryCount) * 60 * time.Second
	if err := r.Store.RescheduleQueueItem(ctx, store.RescheduleInput{
		QueueItemID: item.ID,
		RetryCount:  retryCount,
		ScheduledAt: now.Add(backoff),
		LastError:   runErr.Error(),
		Now:         now,
	}); err != nil {
		slog.Error("reschedule failed", "err", err, "queue_item_id", item.ID)
	}
	observability.QueueRetries.Inc()
	observability.WorkerRuns.WithLabelValues("rescheduled").Inc()
	slog.Warn("campaign run rescheduled",
		"queue_item_id", item.ID,
		"campaign_id", item.CampaignID,
		"retry_count", retryCount,
		"backoff", backoff,
		"err", runErr,
	)
}

func (r *Runner) maxRetries() int {
	if r.MaxRetries > 0 {
		return r.MaxRetries
	}
	return defaultMaxRetries
}

func (r *Runner) newPacer(speed domain.SendingSpeed) Pacer {
	if r.NewPacer != nil {
		return r.NewPacer(speed)
	}
	return pacer.New(speed)
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return util.NowUTC()
}

func (r *Runner) newID(prefix string) string {
	if r.IDGen != nil {
		return r.IDGen(prefix)
	}
	return util.NewID(prefix)
}
