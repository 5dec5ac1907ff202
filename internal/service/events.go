package service

import (
	"context"
	"encoding/json"
	"log"

	"ripple/internal/realtime"
)

// ChangePublisher pushes row changes to realtime subscribers. Satisfied
// by *realtime.Notifier; nil disables publishing.
type ChangePublisher interface {
	PublishChange(ctx context.Context, topic string, event realtime.ChangeEvent) error
}

// publishRow emits a change event for one row. Delivery is best-effort:
// the database write already committed, so a publish failure is logged
// and the request still succeeds.
func publishRow(ctx context.Context, pub ChangePublisher, topic, kind, table string, row interface{}) {
	if pub == nil {
		return
	}
	payload, err := json.Marshal(row)
	if err != nil {
		log.Printf("failed to marshal %s row for topic %s: %v", table, topic, err)
		return
	}
	if err := pub.PublishChange(ctx, topic, realtime.ChangeEvent{
		Kind:  kind,
		Table: table,
		Row:   payload,
	}); err != nil {
		log.Printf("failed to publish %s %s to topic %s: %v", table, kind, topic, err)
	}
}
