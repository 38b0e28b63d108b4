package store

import (
	"time"

	"campaignd/internal/domain"
)

type SegmentInsert struct {
	ID       string
	StoreID  string
	Name     string
	CatchAll bool
	Filter   domain.ConditionGroup
	Now      time.Time
}

type CampaignInsert struct {
	ID           string
	StoreID      string
	Name         string
	Type         domain.Channel
	SegmentIDs   []string
	Template     domain.MessageTemplate
	SendingSpeed domain.SendingSpeed
	Status       domain.CampaignStatus
	Now          time.Time
}

type QueueItemInsert struct {
	ID             string
	CampaignID     string
	IdempotencyKey string
	ScheduledAt    time.Time
	Now            time.Time
}

type IdempotencyResult struct {
	QueueItemID string
	Status      string
	Found       bool
}

type CampaignLogInsert struct {
	ID            string
	CampaignID    string
	CustomerID    string
	Status        domain.LogStatus
	Message       string
	ProviderMsgID string
	Now           time.Time
}

// RunTotals is one pass's delta, applied once by the lease holder.
type RunTotals struct {
	Sent   int
	Failed int
}

type CompleteRunInput struct {
	QueueItemID string
	CampaignID  string
	Totals      RunTotals
	Now         time.Time
}

type RescheduleInput struct {
	QueueItemID string
	RetryCount  int
	ScheduledAt time.Time
	LastError   string
	Now         time.Time
}

type FailQueueItemInput struct {
	QueueItemID string
	RetryCount  int
	LastError   string
	Now         time.Time
}

type UsageIncrement struct {
	StoreID           string
	Period            string
	MessagesSent      int
	CampaignsExecuted int
}

type DeliveryReceiptUpdate struct {
	ProviderMsgID string
	Status        domain.LogStatus
	Now           time.Time
}
