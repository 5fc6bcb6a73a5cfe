package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"onboarding-service/internal/bucketing"
	"onboarding-service/internal/client"
	"onboarding-service/internal/models"
	"onboarding-service/internal/util"
)

const (
	clickhouseInsert = `INSERT INTO onboarding_audit_events
        (event_bucket, app_user_id, event_date, event_time, event_type, device_id, txn_ref_no, outcome, details)`
	esIndex = "onboarding-audit-events"
)

// Recorder sinks security events to ClickHouse for analytics and mirrors
// them into Elasticsearch for operator search. Both writes are
// best-effort: audit failures are logged and never fail the caller.
type Recorder interface {
	Record(ctx context.Context, event *models.AuditEvent)
}

type recorder struct {
	clickhouse *client.ClickHouseClient
	es         *client.ESClient
	buckets    *bucketing.BucketingManager
}

func NewRecorder(ch *client.ClickHouseClient, es *client.ESClient, buckets *bucketing.BucketingManager) Recorder {
	return &recorder{clickhouse: ch, es: es, buckets: buckets}
}

func (r *recorder) Record(ctx context.Context, event *models.AuditEvent) {
	if event.EventTime.IsZero() {
		event.EventTime = time.Now().UTC()
	}
	if event.EventDate == "" {
		event.EventDate = r.buckets.GetDateBucket()
	}
	event.EventBucket = r.buckets.GetEventBucket(event.AppUserID)

	if r.clickhouse != nil {
		err := r.clickhouse.BatchInsert(ctx, clickhouseInsert, [][]interface{}{{
			event.EventBucket, event.AppUserID, event.EventDate, event.EventTime,
			event.EventType, event.DeviceID, event.TxnRefNo, event.Outcome, event.Details,
		}})
		if err != nil {
			util.Error("failed to sink audit event to clickhouse",
				zap.String("event_type", event.EventType), zap.Error(err))
		}
	}

	if r.es != nil {
		res, err := r.es.IndexDocument(esIndex, uuid.NewString(), event)
		if err != nil {
			util.Error("failed to index audit event",
				zap.String("event_type", event.EventType), zap.Error(err))
			return
		}
		defer res.Body.Close()
		if res.IsError() {
			util.Error("audit index rejected",
				zap.String("event_type", event.EventType),
				zap.String("status", res.Status()))
		}
	}
}

// NopRecorder drops events; used in tests.
type NopRecorder struct{}

func (NopRecorder) Record(ctx context.Context, event *models.AuditEvent) {}
