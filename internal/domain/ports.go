package domain

import "context"

// OutboxRepository хранит события, ожидающие публикации.
// PullPending отдаёт сообщения в порядке Enqueue; limit <= 0 означает DefaultOutboxPullLimit.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	// MarkSent и MarkFailed возвращают ErrOutboxPublish для неизвестного id.
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

type OutboxPublisher interface {
	// Publish может вызываться повторно для одного сообщения, получатель дедуплицирует по ID.
	Publish(event OutboxMessage) error
}

// TimelineRepository хранит историю заказа. List возвращает события по возрастанию Occurred.
type TimelineRepository interface {
	Append(ctx context.Context, event TimelineEvent) error
	List(ctx context.Context, orderID string) ([]TimelineEvent, error)
}
