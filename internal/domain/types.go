package domain

import (
	"errors"
	"strings"
	"time"
)

type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "DRAFT"
	CampaignScheduled CampaignStatus = "SCHEDULED"
	CampaignRunning   CampaignStatus = "RUNNING"
	CampaignCompleted CampaignStatus = "COMPLETED"
	CampaignCancelled CampaignStatus = "CANCELLED"
)

type QueueStatus string

const (
	QueuePending    QueueStatus = "PENDING"
	QueueProcessing QueueStatus = "PROCESSING"
	QueueCompleted  QueueStatus = "COMPLETED"
	QueueFailed     QueueStatus = "FAILED"
)

type Channel string

const (
	ChannelEmail    Channel = "EMAIL"
	ChannelWhatsApp Channel = "WHATSAPP"
	ChannelSMS      Channel = "SMS"
	ChannelPush     Channel = "PUSH"
)

type SendingSpeed string

const (
	SpeedFast   SendingSpeed = "FAST"
	SpeedMedium SendingSpeed = "MEDIUM"
	SpeedSlow   SendingSpeed = "SLOW"
)

type LogStatus string

const (
	LogSuccess   LogStatus = "SUCCESS"
	LogFailed    LogStatus = "FAILED"
	LogDelivered LogStatus = "DELIVERED"
)

type FieldType string

const (
	FieldText    FieldType = "text"
	FieldNumber  FieldType = "number"
	FieldDate    FieldType = "date"
	FieldArray   FieldType = "array"
	FieldBoolean FieldType = "boolean"
)

type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpContains    Operator = "contains"
	OpNotContains Operator = "not_contains"
	OpStartsWith  Operator = "starts_with"
	OpEndsWith    Operator = "ends_with"
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
	OpBetween     Operator = "between"
	OpInList      Operator = "in_list"
	OpIsSet       Operator = "is_set"
	OpIsNotSet    Operator = "is_not_set"
)

type Combinator string

const (
	CombinatorAnd Combinator = "AND"
	CombinatorOr  Combinator = "OR"
)

// Condition is one field/operator/value test against a customer record.
// ValueTo is only meaningful for the between operator.
type Condition struct {
	Field    string    `json:"field"`
	Type     FieldType `json:"type"`
	Operator Operator  `json:"operator"`
	Value    any       `json:"value,omitempty"`
	ValueTo  any       `json:"valueTo,omitempty"`
}

// ConditionGroup is a boolean composition of conditions and nested groups.
// An empty group (no conditions, no subgroups) matches everything.
type ConditionGroup struct {
	Combinator Combinator       `json:"combinator"`
	Conditions []Condition      `json:"conditions,omitempty"`
	Groups     []ConditionGroup `json:"groups,omitempty"`
}

// Segment is a named, reusable audience filter.
type Segment struct {
	ID        string         `json:"id"`
	StoreID   string         `json:"storeId"`
	Name      string         `json:"name"`
	CatchAll  bool           `json:"catchAll"`
	Filter    ConditionGroup `json:"filter"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// IsCatchAll reports whether the segment matches every customer regardless
// of its filter tree. A segment literally named "all" counts.
func (s Segment) IsCatchAll() bool {
	return s.CatchAll || strings.EqualFold(s.Name, "all")
}

type MessageTemplate struct {
	Body    string `json:"body"`
	Subject string `json:"subject,omitempty"`
}

type Campaign struct {
	ID             string          `json:"id"`
	StoreID        string          `json:"storeId"`
	Name           string          `json:"name"`
	Type           Channel         `json:"type"`
	SegmentIDs     []string        `json:"segmentIds"`
	Template       MessageTemplate `json:"template"`
	SendingSpeed   SendingSpeed    `json:"sendingSpeed"`
	Status         CampaignStatus  `json:"status"`
	TotalSent      int             `json:"totalSent"`
	TotalDelivered int             `json:"totalDelivered"`
	TotalFailed    int             `json:"totalFailed"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// QueueItem is one attempt/execution record for a campaign's send.
// Rows only ever move to a terminal status; they are never deleted.
type QueueItem struct {
	ID          string      `json:"id"`
	CampaignID  string      `json:"campaignId"`
	Status      QueueStatus `json:"status"`
	ScheduledAt time.Time   `json:"scheduledAt"`
	StartedAt   *time.Time  `json:"startedAt,omitempty"`
	RetryCount  int         `json:"retryCount"`
	LastError   string      `json:"lastError,omitempty"`
	LastAttempt *time.Time  `json:"lastAttempt,omitempty"`
}

// CampaignLog is one immutable per-recipient attempt record.
type CampaignLog struct {
	ID            string     `json:"id"`
	CampaignID    string     `json:"campaignId"`
	CustomerID    string     `json:"customerId"`
	Status        LogStatus  `json:"status"`
	Message       string     `json:"message,omitempty"`
	ProviderMsgID string     `json:"providerMsgId,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	DeliveredAt   *time.Time `json:"deliveredAt,omitempty"`
}

// UsageMetric counts messages sent and campaigns executed per store and
// billing period (YYYY-MM). Incremented, never overwritten.
type UsageMetric struct {
	StoreID           string `json:"storeId"`
	Period            string `json:"period"`
	MessagesSent      int    `json:"messagesSent"`
	CampaignsExecuted int    `json:"campaignsExecuted"`
}

// StoreCredentials is what the worker needs to talk to the commerce store.
type StoreCredentials struct {
	StoreID       string
	StorefrontURL string
	AccessToken   string
}

var ErrMissingFields = errors.New("missing required fields")

type ScheduleSendRequest struct {
	CampaignID     string    `json:"campaignId"`
	IdempotencyKey string    `json:"idempotencyKey"`
	ScheduledAt    time.Time `json:"scheduledAt,omitempty"`
}

func (r ScheduleSendRequest) Validate() error {
	if r.CampaignID == "" || r.IdempotencyKey == "" {
		return ErrMissingFields
	}
	return nil
}

type ScheduleSendResponse struct {
	QueueItemID string `json:"queueItemId"`
	Status      string `json:"status"`
}
