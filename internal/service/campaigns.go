package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"campaignd/internal/domain"
	"campaignd/internal/store"
	"campaignd/internal/util"
)

type Store interface {
	InsertSegment(ctx context.Context, in store.SegmentInsert) error
	GetSegment(ctx context.Context, id string) (domain.Segment, bool, error)
	GetSegments(ctx context.Context, ids []string) ([]domain.Segment, error)
	InsertCampaign(ctx context.Context, in store.CampaignInsert) error
	GetCampaign(ctx context.Context, id string) (domain.Campaign, bool, error)
	FindQueueItemByIdempotency(ctx context.Context, campaignID, idemKey string) (store.IdempotencyResult, error)
	InsertQueueItem(ctx context.Context, in store.QueueItemInsert) error
}

// WakeQueue nudges the worker that new work is pending. The database row is
// the source of truth; the signal only shortens the wait until the next tick,
// so enqueue failures degrade to tick latency instead of failing the request.
type WakeQueue interface {
	EnqueueWake(ctx context.Context, campaignID, queueItemID string) error
}

var (
	ErrCampaignNotFound = errors.New("campaign not found")
	ErrSegmentNotFound  = errors.New("segment not found")
	ErrInvalidCampaign  = errors.New("invalid campaign")
)

var validChannels = map[domain.Channel]bool{
	domain.ChannelEmail: true, domain.ChannelWhatsApp: true,
	domain.ChannelSMS: true, domain.ChannelPush: true,
}

var validSpeeds = map[domain.SendingSpeed]bool{
	domain.SpeedFast: true, domain.SpeedMedium: true, domain.SpeedSlow: true,
}

type CampaignService struct {
	Store Store
	Queue WakeQueue
	IDGen func(prefix string) string
}

func (s *CampaignService) newID(prefix string) string {
	if s.IDGen != nil {
		return s.IDGen(prefix)
	}
	return util.NewID(prefix)
}

type CreateSegmentRequest struct {
	StoreID  string                `json:"storeId"`
	Name     string                `json:"name"`
	CatchAll bool                  `json:"catchAll"`
	Filter   domain.ConditionGroup `json:"filter"`
}

// CreateSegment validates the condition tree at load time so malformed
// operators are rejected here instead of failing closed during a send.
func (s *CampaignService) CreateSegment(ctx context.Context, req CreateSegmentRequest, now time.Time) (domain.Segment, error) {
	if req.StoreID == "" || req.Name == "" {
		return domain.Segment{}, domain.ErrMissingFields
	}
	if err := req.Filter.Validate(); err != nil {
		return domain.Segment{}, fmt.Errorf("invalid filter: %w", err)
	}

	seg := domain.Segment{
		ID:        s.newID("seg"),
		StoreID:   req.StoreID,
		Name:      req.Name,
		CatchAll:  req.CatchAll,
		Filter:    req.Filter,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.Store.InsertSegment(ctx, store.SegmentInsert{
		ID: seg.ID, StoreID: seg.StoreID, Name: seg.Name,
		CatchAll: seg.CatchAll, Filter: seg.Filter, Now: now,
	})
	if err != nil {
		return domain.Segment{}, err
	}
	return seg, nil
}

func (s *CampaignService) GetSegment(ctx context.Context, id string) (domain.Segment, error) {
	seg, found, err := s.Store.GetSegment(ctx, id)
	if err != nil {
		return domain.Segment{}, err
	}
	if !found {
		return domain.Segment{}, ErrSegmentNotFound
	}
	return seg, nil
}

type CreateCampaignRequest struct {
	StoreID      string                 `json:"storeId"`
	Name         string                 `json:"name"`
	Type         domain.Channel         `json:"type"`
	SegmentIDs   []string               `json:"segmentIds"`
	Template     domain.MessageTemplate `json:"template"`
	SendingSpeed domain.SendingSpeed    `json:"sendingSpeed"`
}

func (s *CampaignService) CreateCampaign(ctx context.Context, req CreateCampaignRequest, now time.Time) (domain.Campaign, error) {
	if req.StoreID == "" || req.Name == "" || req.Template.Body == "" {
		return domain.Campaign{}, domain.ErrMissingFields
	}
	if !validChannels[req.Type] {
		return domain.Campaign{}, fmt.Errorf("%w: unknown channel %q", ErrInvalidCampaign, req.Type)
	}
	if req.SendingSpeed == "" {
		req.SendingSpeed = domain.SpeedMedium
	}
	if !validSpeeds[req.SendingSpeed] {
		return domain.Campaign{}, fmt.Errorf("%w: unknown sending speed %q", ErrInvalidCampaign, req.SendingSpeed)
	}
	// Every referenced segment must exist up front; a send referencing a
	// missing segment would only fail at run time otherwise.
	if len(req.SegmentIDs) > 0 {
		if _, err := s.Store.GetSegments(ctx, req.SegmentIDs); err != nil {
			return domain.Campaign{}, fmt.Errorf("segments: %w", err)
		}
	}

	c := domain.Campaign{
		ID:           s.newID("cmp"),
		StoreID:      req.StoreID,
		Name:         req.Name,
		Type:         req.Type,
		SegmentIDs:   req.SegmentIDs,
		Template:     req.Template,
		SendingSpeed: req.SendingSpeed,
		Status:       domain.CampaignDraft,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err := s.Store.InsertCampaign(ctx, store.CampaignInsert{
		ID: c.ID, StoreID: c.StoreID, Name: c.Name, Type: c.Type,
		SegmentIDs: c.SegmentIDs, Template: c.Template,
		SendingSpeed: c.SendingSpeed, Status: c.Status, Now: now,
	})
	if err != nil {
		return domain.Campaign{}, err
	}
	return c, nil
}

func (s *CampaignService) GetCampaign(ctx context.Context, id string) (domain.Campaign, error) {
	c, found, err := s.Store.GetCampaign(ctx, id)
	if err != nil {
		return domain.Campaign{}, err
	}
	if !found {
		return domain.Campaign{}, ErrCampaignNotFound
	}
	return c, nil
}

// ScheduleSend creates one PENDING queue item for the campaign. The
// idempotency key makes a retried or double-clicked trigger return the
// existing item instead of queueing the campaign twice.
func (s *CampaignService) ScheduleSend(ctx context.Context, req domain.ScheduleSendRequest, now time.Time) (domain.ScheduleSendResponse, error) {
	if err := req.Validate(); err != nil {
		return domain.ScheduleSendResponse{}, err
	}
	if _, err := s.GetCampaign(ctx, req.CampaignID); err != nil {
		return domain.ScheduleSendResponse{}, err
	}

	if existing, err := s.Store.FindQueueItemByIdempotency(ctx, req.CampaignID, req.IdempotencyKey); err != nil {
		return domain.ScheduleSendResponse{}, err
	} else if existing.Found {
		return domain.ScheduleSendResponse{QueueItemID: existing.QueueItemID, Status: existing.Status}, nil
	}

	scheduledAt := req.ScheduledAt
	if scheduledAt.IsZero() {
		scheduledAt = now
	}

	itemID := s.newID("qi")
	err := s.Store.InsertQueueItem(ctx, store.QueueItemInsert{
		ID:             itemID,
		CampaignID:     req.CampaignID,
		IdempotencyKey: req.IdempotencyKey,
		ScheduledAt:    scheduledAt,
		Now:            now,
	})
	if err != nil {
		return domain.ScheduleSendResponse{}, err
	}

	if s.Queue != nil {
		if err := s.Queue.EnqueueWake(ctx, req.CampaignID, itemID); err != nil {
			slog.Warn("wake enqueue failed, worker will pick the item up on its next tick",
				"err", err, "queue_item_id", itemID)
		}
	}

	return domain.ScheduleSendResponse{QueueItemID: itemID, Status: string(domain.QueuePending)}, nil
}
