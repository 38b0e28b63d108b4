package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"campaignd/internal/domain"
	"campaignd/internal/store"
)

var now = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

type fakeStore struct {
	segments  map[string]domain.Segment
	campaigns map[string]domain.Campaign

	queueItems  []store.QueueItemInsert
	idemResults map[string]store.IdempotencyResult
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		segments:    map[string]domain.Segment{},
		campaigns:   map[string]domain.Campaign{},
		idemResults: map[string]store.IdempotencyResult{},
	}
}

func (f *fakeStore) InsertSegment(_ context.Context, in store.SegmentInsert) error {
	f.segments[in.ID] = domain.Segment{ID: in.ID, StoreID: in.StoreID, Name: in.Name, CatchAll: in.CatchAll, Filter: in.Filter}
	return nil
}

func (f *fakeStore) GetSegment(_ context.Context, id string) (domain.Segment, bool, error) {
	s, ok := f.segments[id]
	return s, ok, nil
}

func (f *fakeStore) GetSegments(_ context.Context, ids []string) ([]domain.Segment, error) {
	out := make([]domain.Segment, 0, len(ids))
	for _, id := range ids {
		s, ok := f.segments[id]
		if !ok {
			return nil, fmt.Errorf("segment %s missing", id)
		}
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeStore) InsertCampaign(_ context.Context, in store.CampaignInsert) error {
	f.campaigns[in.ID] = domain.Campaign{ID: in.ID, StoreID: in.StoreID, Name: in.Name, Type: in.Type, Status: in.Status}
	return nil
}

func (f *fakeStore) GetCampaign(_ context.Context, id string) (domain.Campaign, bool, error) {
	c, ok := f.campaigns[id]
	return c, ok, nil
}

func (f *fakeStore) FindQueueItemByIdempotency(_ context.Context, campaignID, idemKey string) (store.IdempotencyResult, error) {
	res, ok := f.idemResults[campaignID+"/"+idemKey]
	if !ok {
		return store.IdempotencyResult{}, nil
	}
	return res, nil
}

func (f *fakeStore) InsertQueueItem(_ context.Context, in store.QueueItemInsert) error {
	f.queueItems = append(f.queueItems, in)
	f.idemResults[in.CampaignID+"/"+in.IdempotencyKey] = store.IdempotencyResult{
		QueueItemID: in.ID,
		Status:      string(domain.QueuePending),
		Found:       true,
	}
	return nil
}

type fakeWake struct {
	calls int
	err   error
}

func (f *fakeWake) EnqueueWake(_ context.Context, _, _ string) error {
	f.calls++
	return f.err
}

func newService(st *fakeStore, wake *fakeWake) *CampaignService {
	var seq int
	svc := &CampaignService{
		Store: st,
		IDGen: func(prefix string) string {
			seq++
			return fmt.Sprintf("%s_%03d", prefix, seq)
		},
	}
	if wake != nil {
		svc.Queue = wake
	}
	return svc
}

func TestCreateSegmentRejectsBadFilter(t *testing.T) {
	svc := newService(newFakeStore(), nil)

	_, err := svc.CreateSegment(context.Background(), CreateSegmentRequest{
		StoreID: "store_1",
		Name:    "bad ops",
		Filter: domain.ConditionGroup{
			Combinator: domain.CombinatorAnd,
			Conditions: []domain.Condition{{
				Field: "total_spent", Type: domain.FieldNumber,
				Operator: domain.OpStartsWith, Value: "5",
			}},
		},
	}, now)
	if !errors.Is(err, domain.ErrUnknownOperator) {
		t.Fatalf("err = %v, want ErrUnknownOperator", err)
	}
}

func TestCreateSegmentAndGet(t *testing.T) {
	st := newFakeStore()
	svc := newService(st, nil)

	seg, err := svc.CreateSegment(context.Background(), CreateSegmentRequest{
		StoreID: "store_1",
		Name:    "High Value",
		Filter: domain.ConditionGroup{
			Combinator: domain.CombinatorAnd,
			Conditions: []domain.Condition{{
				Field: "total_spent", Type: domain.FieldNumber,
				Operator: domain.OpGreaterThan, Value: float64(500),
			}},
		},
	}, now)
	if err != nil {
		t.Fatalf("CreateSegment: %v", err)
	}

	got, err := svc.GetSegment(context.Background(), seg.ID)
	if err != nil {
		t.Fatalf("GetSegment: %v", err)
	}
	if got.Name != "High Value" {
		t.Fatalf("got %+v", got)
	}

	if _, err := svc.GetSegment(context.Background(), "seg_nope"); !errors.Is(err, ErrSegmentNotFound) {
		t.Fatalf("err = %v, want ErrSegmentNotFound", err)
	}
}

func TestCreateCampaignValidation(t *testing.T) {
	st := newFakeStore()
	st.segments["seg_1"] = domain.Segment{ID: "seg_1", Name: "High Value"}
	svc := newService(st, nil)

	base := CreateCampaignRequest{
		StoreID:    "store_1",
		Name:       "Spring promo",
		Type:       domain.ChannelEmail,
		SegmentIDs: []string{"seg_1"},
		Template:   domain.MessageTemplate{Body: "Hi {{name}}"},
	}

	t.Run("defaults speed to medium", func(t *testing.T) {
		c, err := svc.CreateCampaign(context.Background(), base, now)
		if err != nil {
			t.Fatalf("CreateCampaign: %v", err)
		}
		if c.SendingSpeed != domain.SpeedMedium {
			t.Fatalf("speed = %q, want MEDIUM default", c.SendingSpeed)
		}
		if c.Status != domain.CampaignDraft {
			t.Fatalf("status = %q, want DRAFT", c.Status)
		}
	})

	t.Run("unknown channel", func(t *testing.T) {
		req := base
		req.Type = "FAX"
		if _, err := svc.CreateCampaign(context.Background(), req, now); !errors.Is(err, ErrInvalidCampaign) {
			t.Fatalf("err = %v, want ErrInvalidCampaign", err)
		}
	})

	t.Run("unknown speed", func(t *testing.T) {
		req := base
		req.SendingSpeed = "TURBO"
		if _, err := svc.CreateCampaign(context.Background(), req, now); !errors.Is(err, ErrInvalidCampaign) {
			t.Fatalf("err = %v, want ErrInvalidCampaign", err)
		}
	})

	t.Run("missing template body", func(t *testing.T) {
		req := base
		req.Template.Body = ""
		if _, err := svc.CreateCampaign(context.Background(), req, now); !errors.Is(err, domain.ErrMissingFields) {
			t.Fatalf("err = %v, want ErrMissingFields", err)
		}
	})

	t.Run("missing segment", func(t *testing.T) {
		req := base
		req.SegmentIDs = []string{"seg_ghost"}
		if _, err := svc.CreateCampaign(context.Background(), req, now); err == nil {
			t.Fatal("campaign referencing an absent segment must be rejected")
		}
	})
}

func TestScheduleSendIsIdempotent(t *testing.T) {
	st := newFakeStore()
	st.campaigns["cmp_1"] = domain.Campaign{ID: "cmp_1", StoreID: "store_1"}
	wake := &fakeWake{}
	svc := newService(st, wake)

	req := domain.ScheduleSendRequest{CampaignID: "cmp_1", IdempotencyKey: "click-1"}

	first, err := svc.ScheduleSend(context.Background(), req, now)
	if err != nil {
		t.Fatalf("first ScheduleSend: %v", err)
	}
	if first.Status != string(domain.QueuePending) {
		t.Fatalf("status = %q", first.Status)
	}

	second, err := svc.ScheduleSend(context.Background(), req, now)
	if err != nil {
		t.Fatalf("second ScheduleSend: %v", err)
	}
	if second.QueueItemID != first.QueueItemID {
		t.Fatalf("ids differ: %q vs %q, double trigger queued twice", first.QueueItemID, second.QueueItemID)
	}
	if len(st.queueItems) != 1 {
		t.Fatalf("queue inserts = %d, want 1", len(st.queueItems))
	}
	if wake.calls != 1 {
		t.Fatalf("wake signals = %d, want 1", wake.calls)
	}

	// A different key queues a fresh run.
	third, err := svc.ScheduleSend(context.Background(), domain.ScheduleSendRequest{
		CampaignID: "cmp_1", IdempotencyKey: "click-2",
	}, now)
	if err != nil {
		t.Fatalf("third ScheduleSend: %v", err)
	}
	if third.QueueItemID == first.QueueItemID {
		t.Fatal("distinct idempotency keys must not collapse")
	}
}

func TestScheduleSendWakeFailureDegradesToTick(t *testing.T) {
	st := newFakeStore()
	st.campaigns["cmp_1"] = domain.Campaign{ID: "cmp_1"}
	svc := newService(st, &fakeWake{err: errors.New("sqs unavailable")})

	resp, err := svc.ScheduleSend(context.Background(), domain.ScheduleSendRequest{
		CampaignID: "cmp_1", IdempotencyKey: "click-1",
	}, now)
	if err != nil {
		t.Fatalf("wake failure must not fail the schedule: %v", err)
	}
	if resp.QueueItemID == "" || len(st.queueItems) != 1 {
		t.Fatalf("queue item missing: %+v", resp)
	}
}

func TestScheduleSendUnknownCampaign(t *testing.T) {
	svc := newService(newFakeStore(), nil)
	_, err := svc.ScheduleSend(context.Background(), domain.ScheduleSendRequest{
		CampaignID: "cmp_ghost", IdempotencyKey: "k",
	}, now)
	if !errors.Is(err, ErrCampaignNotFound) {
		t.Fatalf("err = %v, want ErrCampaignNotFound", err)
	}
}

func TestScheduleSendMissingKey(t *testing.T) {
	svc := newService(newFakeStore(), nil)
	_, err := svc.ScheduleSend(context.Background(), domain.ScheduleSendRequest{CampaignID: "cmp_1"}, now)
	if !errors.Is(err, domain.ErrMissingFields) {
		t.Fatalf("err = %v, want ErrMissingFields", err)
	}
}

func TestScheduleSendFutureSchedule(t *testing.T) {
	st := newFakeStore()
	st.campaigns["cmp_1"] = domain.Campaign{ID: "cmp_1"}
	svc := newService(st, nil)

	future := now.Add(2 * time.Hour)
	_, err := svc.ScheduleSend(context.Background(), domain.ScheduleSendRequest{
		CampaignID: "cmp_1", IdempotencyKey: "k", ScheduledAt: future,
	}, now)
	if err != nil {
		t.Fatalf("ScheduleSend: %v", err)
	}
	if got := st.queueItems[0].ScheduledAt; !got.Equal(future) {
		t.Fatalf("scheduled at %v, want %v", got, future)
	}
}
