package sqsqueue

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// WakeSignal tells the worker a queue item just became PENDING. The database
// row is authoritative; losing or duplicating a signal is harmless because
// every pass re-reads the queue table under the claim lock.
type WakeSignal struct {
	CampaignID  string    `json:"campaignId"`
	QueueItemID string    `json:"queueItemId"`
	ScheduledAt time.Time `json:"scheduledAt,omitempty"`
}

type WakeProducer struct {
	SQS      *sqs.Client
	QueueURL string
}

func (p *WakeProducer) EnqueueWake(ctx context.Context, campaignID, queueItemID string) error {
	body, err := json.Marshal(WakeSignal{CampaignID: campaignID, QueueItemID: queueItemID})
	if err != nil {
		return err
	}
	_, err = p.SQS.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    &p.QueueURL,
		MessageBody: str(string(body)),
	})
	return err
}

type WakeHandler func(ctx context.Context, sig WakeSignal) error

type WakeConsumer struct {
	SQS      *sqs.Client
	QueueURL string

	WaitTimeSeconds   int32
	MaxMessages       int32
	VisibilityTimeout int32
}

// Poll long-polls for wake signals and invokes the handler sequentially.
// The worker processes one queue item per pass by contract, so there is no
// point fanning out here. Handled or malformed messages are always deleted;
// the signal has no redrive value once a pass ran.
func (c *WakeConsumer) Poll(ctx context.Context, handler WakeHandler) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		out, err := c.SQS.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            &c.QueueURL,
			MaxNumberOfMessages: c.MaxMessages,
			WaitTimeSeconds:     c.WaitTimeSeconds,
			VisibilityTimeout:   c.VisibilityTimeout,
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("sqs receive message failed", "err", err)
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, m := range out.Messages {
			if m.Body != nil {
				var sig WakeSignal
				if err := json.Unmarshal([]byte(*m.Body), &sig); err == nil {
					if err := handler(ctx, sig); err != nil {
						slog.Error("wake handler error", "err", err, "queue_item_id", sig.QueueItemID)
					}
				}
			}
			_, _ = c.SQS.DeleteMessage(ctx, &sqs.DeleteMessageInput{
				QueueUrl:      &c.QueueURL,
				ReceiptHandle: m.ReceiptHandle,
			})
		}
	}
}

func str(s string) *string { return &s }
