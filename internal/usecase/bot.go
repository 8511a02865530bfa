package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"studio-relay/internal/domain"
)

// ReplySender delivers dispatcher replies back into the originating chat.
type ReplySender interface {
	SendReply(ctx context.Context, chatID int64, text string, buttons []domain.Button) (int64, error)
	AnswerCallback(ctx context.Context, callbackQueryID string) error
}

// SessionStore tracks per-identity conversational state.
type SessionStore interface {
	Touch(ctx context.Context, identity, displayName, text string, now time.Time) (domain.Session, error)
}

const throttleReply = "🛰 Easy there, quantum traveler. Too many transmissions at once. " +
	"Give the channel a minute and try again."

// BotService drives the scripted conversation for inbound webhook updates.
// Its errors are for logging only: the endpoint acknowledges the platform
// regardless, so delivery retries cannot amplify an application bug.
type BotService struct {
	sender   ReplySender
	sessions SessionStore
	limiter  RateLimiter
	now      func() time.Time
}

func NewBotService(sender ReplySender, sessions SessionStore, limiter RateLimiter) (*BotService, error) {
	if sender == nil {
		return nil, errors.New("usecase: reply sender must not be nil")
	}
	if sessions == nil {
		return nil, errors.New("usecase: session store must not be nil")
	}
	if limiter == nil {
		return nil, errors.New("usecase: rate limiter must not be nil")
	}
	return &BotService{sender: sender, sessions: sessions, limiter: limiter, now: time.Now}, nil
}

// WithClock overrides the service clock; used by tests.
func (s *BotService) WithClock(now func() time.Time) *BotService {
	if now != nil {
		s.now = now
	}
	return s
}

// HandleUpdate processes one webhook delivery. Updates that carry nothing
// dispatchable (edits, media without text, joins) are ignored without error.
func (s *BotService) HandleUpdate(ctx context.Context, upd domain.Update) error {
	switch {
	case upd.CallbackQuery != nil:
		return s.handleCallback(ctx, upd.CallbackQuery)
	case upd.Message != nil && upd.Message.From != nil && upd.Message.Text != "":
		return s.handleMessage(ctx, upd.Message)
	}
	return nil
}

func (s *BotService) handleMessage(ctx context.Context, msg *domain.Message) error {
	now := s.now()
	user := *msg.From

	allowed, err := s.limiter.Allow(ctx, user.Identity(), now)
	if err != nil {
		return fmt.Errorf("usecase: rate limiter: %w", err)
	}
	if !allowed {
		if _, err := s.sender.SendReply(ctx, msg.Chat.ID, throttleReply, nil); err != nil {
			return fmt.Errorf("usecase: send throttle reply: %w", err)
		}
		return nil
	}

	sess, err := s.sessions.Touch(ctx, user.Identity(), user.DisplayName(), msg.Text, now)
	if err != nil {
		return fmt.Errorf("usecase: touch session: %w", err)
	}

	reply := Dispatch(sess, TriggerFromMessage(msg.Text))
	if _, err := s.sender.SendReply(ctx, msg.Chat.ID, reply.Text, reply.Buttons); err != nil {
		return fmt.Errorf("usecase: send reply: %w", err)
	}
	return nil
}

func (s *BotService) handleCallback(ctx context.Context, cq *domain.CallbackQuery) error {
	now := s.now()

	// Stop the button spinner first; a failure here is not worth losing the
	// actual reply over, so it is joined with the send result.
	ackErr := s.sender.AnswerCallback(ctx, cq.ID)

	sess, err := s.sessions.Touch(ctx, cq.From.Identity(), cq.From.DisplayName(), cq.Data, now)
	if err != nil {
		return errors.Join(ackErr, fmt.Errorf("usecase: touch session: %w", err))
	}

	chatID := cq.From.ID // private chats share the user id
	if cq.Message != nil {
		chatID = cq.Message.Chat.ID
	}

	reply := Dispatch(sess, Trigger{Kind: TriggerCallback, Value: cq.Data})
	if _, err := s.sender.SendReply(ctx, chatID, reply.Text, reply.Buttons); err != nil {
		return errors.Join(ackErr, fmt.Errorf("usecase: send reply: %w", err))
	}
	return ackErr
}
