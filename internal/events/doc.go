// Package events provides the in-process event bus for council activity.
//
// Publishers (the deliberation orchestrator, the availability monitor)
// call Publish; subscribers (the HTTP streaming endpoint, the CLI progress
// renderer, the metrics exporter) receive matching events through their own
// buffered channels. Publish never blocks: when a subscriber's buffer is
// full the event is dropped for that subscriber only and reported through
// the error handler.
//
//	events, cleanup := bus.Subscribe(ctx, events.Filter{SessionID: id}, 0)
//	defer cleanup()
//	for ev := range events {
//		...
//	}
package events
