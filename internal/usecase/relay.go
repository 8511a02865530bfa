package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"studio-relay/internal/domain"
	"studio-relay/internal/integrations/telegram"
)

// ChannelSender forwards a formatted message to the destination channel.
type ChannelSender interface {
	SendToChannel(ctx context.Context, text string) (int64, error)
}

// RateLimiter is the fixed-window per-identity throttle.
type RateLimiter interface {
	Allow(ctx context.Context, identity string, now time.Time) (bool, error)
}

// RelayService validates, formats and forwards form submissions. It holds
// no state of its own; the limiter is the only shared dependency.
type RelayService struct {
	sender  ChannelSender
	limiter RateLimiter
	now     func() time.Time
}

type RelayInput struct {
	Payload domain.RelayPayload
	// Identity is the caller key for rate limiting, typically the source IP.
	Identity string
}

type RelayOutput struct {
	TransmissionID    string
	Type              domain.TransmissionType
	Timestamp         time.Time
	TelegramMessageID int64
}

func NewRelayService(sender ChannelSender, limiter RateLimiter) (*RelayService, error) {
	if sender == nil {
		return nil, errors.New("usecase: channel sender must not be nil")
	}
	if limiter == nil {
		return nil, errors.New("usecase: rate limiter must not be nil")
	}
	return &RelayService{sender: sender, limiter: limiter, now: time.Now}, nil
}

// WithClock overrides the service clock; used by determinism tests.
func (s *RelayService) WithClock(now func() time.Time) *RelayService {
	if now != nil {
		s.now = now
	}
	return s
}

// Relay performs one outbound transmission. The single network call is the
// sendMessage to Telegram; there is no retry, a failure surfaces directly
// as the mapped error.
func (s *RelayService) Relay(ctx context.Context, in RelayInput) (RelayOutput, error) {
	now := s.now()

	if err := validatePayload(in.Payload); err != nil {
		return RelayOutput{}, err
	}

	if in.Identity != "" {
		allowed, err := s.limiter.Allow(ctx, in.Identity, now)
		if err != nil {
			return RelayOutput{}, newError(ErrorInternal, "rate_limiter_error", err)
		}
		if !allowed {
			return RelayOutput{}, newError(ErrorRateLimited, "window_exhausted", nil)
		}
	}

	messageID, err := s.sender.SendToChannel(ctx, Format(in.Payload, now))
	if err != nil {
		return RelayOutput{}, mapSendError(err)
	}

	return RelayOutput{
		TransmissionID:    fmt.Sprintf("TX-%d", now.UnixMilli()),
		Type:              in.Payload.Type,
		Timestamp:         now.UTC(),
		TelegramMessageID: messageID,
	}, nil
}

func validatePayload(p domain.RelayPayload) error {
	if !domain.KnownTransmissionType(p.Type) {
		return newError(ErrorInvalidInput, "unknown_transmission_type", nil)
	}
	if p.Type == domain.TransmissionProject {
		switch {
		case strings.TrimSpace(p.Name) == "":
			return newError(ErrorInvalidInput, "project_missing_name", nil)
		case strings.TrimSpace(p.Email) == "":
			return newError(ErrorInvalidInput, "project_missing_email", nil)
		case strings.TrimSpace(p.Details()) == "":
			return newError(ErrorInvalidInput, "project_missing_message", nil)
		}
	}
	return nil
}

// mapSendError turns a Telegram failure into the local taxonomy. Auth and
// permission rejections (401/403) are configuration errors: the caller gets
// a generic message, the credential detail stays in server logs.
func mapSendError(err error) *Error {
	if errors.Is(err, telegram.ErrNotConfigured) {
		return newError(ErrorConfiguration, "missing_credentials", err)
	}

	var apiErr *telegram.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode {
		case 400:
			return newError(ErrorInvalidInput, "telegram_rejected_payload", err)
		case 401, 403:
			return newError(ErrorConfiguration, "telegram_auth_failure", err)
		default:
			return newError(ErrorUpstream, "telegram_api_error", err)
		}
	}

	var transportErr *telegram.TransportError
	if errors.As(err, &transportErr) {
		return newError(ErrorNetwork, "telegram_unreachable", err)
	}

	return newError(ErrorInternal, "send_failed", err)
}
