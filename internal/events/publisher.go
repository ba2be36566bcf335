package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"textvault/internal/ingest"
)

// TopicIngestResult carries one message per finished ingestion, success or
// failure, for downstream consumers (notifiers, audit trails).
const TopicIngestResult = "ingest.result"

// Producer is the slice of the NSQ producer API the publisher needs.
type Producer interface {
	Publish(topic string, body []byte) error
}

// NSQPublisher emits ingestion results onto an NSQ topic.
type NSQPublisher struct {
	producer Producer
	topic    string
}

func NewNSQPublisher(producer Producer) *NSQPublisher {
	return &NSQPublisher{producer: producer, topic: TopicIngestResult}
}

func (p *NSQPublisher) PublishResult(ctx context.Context, res ingest.Result) error {
	body, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encoding result for %s: %w", res.UploadID, err)
	}
	if err := p.producer.Publish(p.topic, body); err != nil {
		return fmt.Errorf("publishing result for %s: %w", res.UploadID, err)
	}
	slog.DebugContext(ctx, "published ingestion result", "upload_id", res.UploadID, "status", res.Status)
	return nil
}

// NoopPublisher is used when eventing is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishResult(context.Context, ingest.Result) error { return nil }
