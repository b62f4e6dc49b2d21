package queue

import "context"

// Inline runs the Handler synchronously instead of going through the broker.
// It is used when RABBITMQ_URL is not configured.
type Inline struct {
	Handler *Handler
}

func (p Inline) ScreeningAssigned(ctx context.Context, ev ScreeningAssignedEvent) error {
	return p.Handler.HandleAssigned(ctx, ev)
}

func (p Inline) ScreeningReviewed(ctx context.Context, ev ScreeningReviewedEvent) error {
	return p.Handler.HandleReviewed(ctx, ev)
}
