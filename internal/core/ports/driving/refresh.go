package driving

import "context"

// TriggerResult tells a caller what happened to its refresh request.
type TriggerResult string

const (
	// TriggerAccepted means a new refresh cycle was started.
	TriggerAccepted TriggerResult = "accepted"

	// TriggerInProgress means a cycle was already running; the request
	// was coalesced into a no-op rather than queued.
	TriggerInProgress TriggerResult = "already_in_progress"
)

// RefreshTrigger lets the serving layer request an on-demand refresh.
// At most one cycle runs at a time.
type RefreshTrigger interface {
	// Trigger starts a refresh cycle if none is running. It returns
	// immediately; the cycle completes in the background.
	Trigger(ctx context.Context) TriggerResult
}
