package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"campaignd/internal/domain"
	"campaignd/internal/store"
)

type Store struct {
	DB *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store { return &Store{DB: db} }

// ClaimNextQueueItem atomically leases the oldest PENDING item whose
// scheduled_at has arrived, moving it to PROCESSING. The conditional update
// plus SKIP LOCKED guarantees that of two racing workers exactly one claims
// the row; the other sees no claimable item.
//
// There is deliberately no stale-PROCESSING reclaim: a worker that crashes
// mid-run leaves its item PROCESSING until an external watchdog intervenes.
func (s *Store) ClaimNextQueueItem(ctx context.Context, now time.Time) (domain.QueueItem, bool, error) {
	row := s.DB.QueryRow(ctx, `
		UPDATE campaign_queue SET status=$1, started_at=$2
		WHERE id = (
			SELECT id FROM campaign_queue
			WHERE status=$3 AND scheduled_at <= $2
			ORDER BY scheduled_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		) AND status=$3
		RETURNING id, campaign_id, status, scheduled_at, started_at, retry_count, COALESCE(last_error,''), last_attempt
	`, domain.QueueProcessing, now, domain.QueuePending)

	var item domain.QueueItem
	err := row.Scan(&item.ID, &item.CampaignID, &item.Status, &item.ScheduledAt,
		&item.StartedAt, &item.RetryCount, &item.LastError, &item.LastAttempt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.QueueItem{}, false, nil
		}
		return domain.QueueItem{}, false, err
	}
	return item, true, nil
}

func (s *Store) InsertQueueItem(ctx context.Context, in store.QueueItemInsert) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO campaign_queue (id, campaign_id, idempotency_key, status, scheduled_at, retry_count, created_at)
		VALUES ($1,$2,$3,$4,$5,0,$6)
	`, in.ID, in.CampaignID, in.IdempotencyKey, domain.QueuePending, in.ScheduledAt, in.Now)
	return err
}

func (s *Store) FindQueueItemByIdempotency(ctx context.Context, campaignID, idemKey string) (store.IdempotencyResult, error) {
	row := s.DB.QueryRow(ctx, `
		SELECT id, status FROM campaign_queue WHERE campaign_id=$1 AND idempotency_key=$2
	`, campaignID, idemKey)
	var out store.IdempotencyResult
	err := row.Scan(&out.QueueItemID, &out.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.IdempotencyResult{}, nil
		}
		return store.IdempotencyResult{}, err
	}
	out.Found = true
	return out, nil
}

// RescheduleQueueItem puts a leased item back to PENDING after a setup
// failure, carrying the incremented retry count and backoff schedule.
func (s *Store) RescheduleQueueItem(ctx context.Context, in store.RescheduleInput) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE campaign_queue
		SET status=$2, retry_count=$3, scheduled_at=$4, last_error=$5, last_attempt=$6
		WHERE id=$1
	`, in.QueueItemID, domain.QueuePending, in.RetryCount, in.ScheduledAt, nullIfEmpty(in.LastError), in.Now)
	return err
}

// MarkQueueItemFailed is the dead-letter transition. The row is retained.
func (s *Store) MarkQueueItemFailed(ctx context.Context, in store.FailQueueItemInput) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE campaign_queue
		SET status=$2, retry_count=$3, last_error=$4, last_attempt=$5
		WHERE id=$1
	`, in.QueueItemID, domain.QueueFailed, in.RetryCount, nullIfEmpty(in.LastError), in.Now)
	return err
}

// CompleteRun finalizes one successful pass in a single transaction: the
// campaign moves to COMPLETED with this run's counts added to its aggregate
// totals, and the queue item is closed out. Only the lease holder mutates
// these fields, so increment-by-delta needs no extra locking.
func (s *Store) CompleteRun(ctx context.Context, in store.CompleteRunInput) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		UPDATE campaigns
		SET status=$2, total_sent = total_sent + $3, total_failed = total_failed + $4, updated_at=$5
		WHERE id=$1
	`, in.CampaignID, domain.CampaignCompleted, in.Totals.Sent, in.Totals.Failed, in.Now); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE campaign_queue SET status=$2, last_attempt=$3 WHERE id=$1
	`, in.QueueItemID, domain.QueueCompleted, in.Now); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) MarkCampaignRunning(ctx context.Context, campaignID string, now time.Time) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE campaigns SET status=$2, updated_at=$3 WHERE id=$1
	`, campaignID, domain.CampaignRunning, now)
	return err
}

func (s *Store) GetCampaign(ctx context.Context, id string) (domain.Campaign, bool, error) {
	row := s.DB.QueryRow(ctx, `
		SELECT id, store_id, name, type, segment_ids, template_body, COALESCE(template_subject,''),
		       sending_speed, status, total_sent, total_delivered, total_failed, created_at, updated_at
		FROM campaigns WHERE id=$1
	`, id)
	var c domain.Campaign
	err := row.Scan(&c.ID, &c.StoreID, &c.Name, &c.Type, &c.SegmentIDs, &c.Template.Body, &c.Template.Subject,
		&c.SendingSpeed, &c.Status, &c.TotalSent, &c.TotalDelivered, &c.TotalFailed, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Campaign{}, false, nil
		}
		return domain.Campaign{}, false, err
	}
	return c, true, nil
}

func (s *Store) InsertCampaign(ctx context.Context, in store.CampaignInsert) error {
	if in.SegmentIDs == nil {
		in.SegmentIDs = []string{}
	}
	_, err := s.DB.Exec(ctx, `
		INSERT INTO campaigns (id, store_id, name, type, segment_ids, template_body, template_subject,
		                       sending_speed, status, total_sent, total_delivered, total_failed, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,0,0,0,$10,$10)
	`, in.ID, in.StoreID, in.Name, in.Type, in.SegmentIDs, in.Template.Body, nullIfEmpty(in.Template.Subject),
		in.SendingSpeed, in.Status, in.Now)
	return err
}

func (s *Store) GetSegments(ctx context.Context, ids []string) ([]domain.Segment, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.DB.Query(ctx, `
		SELECT id, store_id, name, catch_all, filter_json, created_at, updated_at
		FROM segments WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Segment
	for rows.Next() {
		var seg domain.Segment
		var filterJSON []byte
		if err := rows.Scan(&seg.ID, &seg.StoreID, &seg.Name, &seg.CatchAll, &filterJSON, &seg.CreatedAt, &seg.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(filterJSON, &seg.Filter); err != nil {
			return nil, fmt.Errorf("segment %s: bad filter json: %w", seg.ID, err)
		}
		out = append(out, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) != len(ids) {
		return out, fmt.Errorf("wanted %d segments, found %d", len(ids), len(out))
	}
	return out, nil
}

func (s *Store) InsertSegment(ctx context.Context, in store.SegmentInsert) error {
	filterJSON, err := json.Marshal(in.Filter)
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(ctx, `
		INSERT INTO segments (id, store_id, name, catch_all, filter_json, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$6)
	`, in.ID, in.StoreID, in.Name, in.CatchAll, filterJSON, in.Now)
	return err
}

func (s *Store) GetSegment(ctx context.Context, id string) (domain.Segment, bool, error) {
	row := s.DB.QueryRow(ctx, `
		SELECT id, store_id, name, catch_all, filter_json, created_at, updated_at
		FROM segments WHERE id=$1
	`, id)
	var seg domain.Segment
	var filterJSON []byte
	err := row.Scan(&seg.ID, &seg.StoreID, &seg.Name, &seg.CatchAll, &filterJSON, &seg.CreatedAt, &seg.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Segment{}, false, nil
		}
		return domain.Segment{}, false, err
	}
	if err := json.Unmarshal(filterJSON, &seg.Filter); err != nil {
		return domain.Segment{}, false, fmt.Errorf("segment %s: bad filter json: %w", seg.ID, err)
	}
	return seg, true, nil
}

func (s *Store) GetStoreCredentials(ctx context.Context, storeID string) (domain.StoreCredentials, bool, error) {
	row := s.DB.QueryRow(ctx, `
		SELECT id, storefront_url, COALESCE(access_token,'') FROM stores WHERE id=$1
	`, storeID)
	var creds domain.StoreCredentials
	err := row.Scan(&creds.StoreID, &creds.StorefrontURL, &creds.AccessToken)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.StoreCredentials{}, false, nil
		}
		return domain.StoreCredentials{}, false, err
	}
	return creds, true, nil
}

func (s *Store) InsertCampaignLog(ctx context.Context, in store.CampaignLogInsert) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO campaign_logs (id, campaign_id, customer_id, status, message, provider_msg_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, in.ID, in.CampaignID, in.CustomerID, in.Status, nullIfEmpty(in.Message), nullIfEmpty(in.ProviderMsgID), in.Now)
	return err
}

// IncrementUsage upserts the billing-period counters. Callers treat failures
// as best-effort; metering must never fail a send.
func (s *Store) IncrementUsage(ctx context.Context, in store.UsageIncrement) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO usage_metrics (store_id, period, messages_sent, campaigns_executed, updated_at)
		VALUES ($1,$2,$3,$4,now())
		ON CONFLICT (store_id, period)
		DO UPDATE SET messages_sent = usage_metrics.messages_sent + $3,
		              campaigns_executed = usage_metrics.campaigns_executed + $4,
		              updated_at = now()
	`, in.StoreID, in.Period, in.MessagesSent, in.CampaignsExecuted)
	return err
}

// ApplyDeliveryReceipt flips the log row matched by provider message id and,
// on the first DELIVERED transition, bumps the owning campaign's delivered
// total. Returns false when no log row matches (receipt for an unknown send).
func (s *Store) ApplyDeliveryReceipt(ctx context.Context, in store.DeliveryReceiptUpdate) (bool, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		UPDATE campaign_logs
		SET status=$2, delivered_at = CASE WHEN $2 = 'DELIVERED' THEN $3 ELSE delivered_at END
		WHERE provider_msg_id=$1 AND status <> $2
		RETURNING campaign_id
	`, in.ProviderMsgID, in.Status, in.Now)

	var campaignID string
	if err := row.Scan(&campaignID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, tx.Commit(ctx)
		}
		return false, err
	}

	if in.Status == domain.LogDelivered {
		if _, err := tx.Exec(ctx, `
			UPDATE campaigns SET total_delivered = total_delivered + 1, updated_at=$2 WHERE id=$1
		`, campaignID, in.Now); err != nil {
			return false, err
		}
	}
	return true, tx.Commit(ctx)
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
