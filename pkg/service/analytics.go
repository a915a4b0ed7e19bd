package service

import "context"

// EventSink records analytics events. Track never blocks and never fails the caller.
type EventSink interface {
	Track(ctx context.Context, eventType string, userID int64, payload map[string]interface{}, source string)
}

// NopEventSink discards every event
type NopEventSink struct{}

func (NopEventSink) Track(context.Context, string, int64, map[string]interface{}, string) {}
