package services

import (
	"context"
	"encoding/json"
	"log"

	"github.com/minchat/apiserver/types"
)

// MessageCreatedChannel is the broker channel new-message events are
// published to.
const MessageCreatedChannel = "messages.created"

// MessageRepository defines persistence operations for messages.
type MessageRepository interface {
	List(ctx context.Context, offset, limit int) ([]types.Message, int, error)
	Create(ctx context.Context, memberID int64, text string) (types.Message, error)
}

// EventPublisher sends domain events to the configured broker.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// MessageService encapsulates message use-cases.
type MessageService struct {
	repo      MessageRepository
	publisher EventPublisher
}

// NewMessageService constructs a MessageService. publisher may be nil
// when no broker is configured.
func NewMessageService(repo MessageRepository, publisher EventPublisher) *MessageService {
	return &MessageService{repo: repo, publisher: publisher}
}

func (s *MessageService) List(ctx context.Context, offset, limit int) ([]types.Message, int, error) {
	return s.repo.List(ctx, offset, limit)
}

// Create stores the message and, if a broker is configured, publishes a
// created event. Publish failures are logged and never fail the write:
// the message is already durable at that point.
func (s *MessageService) Create(ctx context.Context, member types.Member, text string) (types.Message, error) {
	message, err := s.repo.Create(ctx, member.ID, text)
	if err != nil {
		return types.Message{}, err
	}
	message.Username = member.Username

	if s.publisher != nil {
		payload, err := json.Marshal(message)
		if err == nil {
			_, err = s.publisher.Publish(ctx, MessageCreatedChannel, payload, map[string]string{
				"username": member.Username,
			})
		}
		if err != nil {
			log.Printf("failed to publish message event: %v", err)
		}
	}

	return message, nil
}
