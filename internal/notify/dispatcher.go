package notify

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"onboarding-service/internal/client"
	"onboarding-service/internal/config"
	"onboarding-service/internal/util"
)

// Event is one outbound user notification. Dispatch is fire-and-forget:
// a broker failure is logged and never fails the request that raised it.
type Event struct {
	EventType     string    `json:"eventType"`
	AppUserID     string    `json:"appUserId"`
	ContactNumber string    `json:"contactNumber"`
	Channel       string    `json:"channel"`
	TemplateID    string    `json:"templateId"`
	Params        []string  `json:"params"`
	OccurredAt    time.Time `json:"occurredAt"`
}

const (
	EventWelcome       = "welcome"
	EventAccountLocked = "account_locked"
	EventMPINChanged   = "mpin_changed"
	EventDeviceBound   = "device_bound"
	EventNomineeAdded  = "nominee_added"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, event *Event)
}

type kafkaDispatcher struct {
	producer *client.KafkaProducer
	topic    string
}

func NewDispatcher(producer *client.KafkaProducer, cfg *config.Config) Dispatcher {
	return &kafkaDispatcher{
		producer: producer,
		topic:    cfg.Kafka.NotificationTopic,
	}
}

func (d *kafkaDispatcher) Dispatch(ctx context.Context, event *Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		util.Error("failed to encode notification event",
			zap.String("event_type", event.EventType), zap.Error(err))
		return
	}

	err = d.producer.ProduceMessage(ctx, d.topic, []byte(event.AppUserID), payload, map[string]string{
		"eventType": event.EventType,
	})
	if err != nil {
		util.Error("failed to dispatch notification",
			zap.String("event_type", event.EventType),
			zap.String("app_user_id", event.AppUserID),
			zap.Error(err))
	}
}

// NopDispatcher drops events; used in tests and when the broker is
// disabled by config.
type NopDispatcher struct{}

func (NopDispatcher) Dispatch(ctx context.Context, event *Event) {}
