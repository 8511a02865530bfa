package usecase

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"studio-relay/internal/domain"
)

var formatClock = time.Date(2026, 3, 1, 12, 30, 45, 0, time.UTC)

func TestFormat_Deterministic(t *testing.T) {
	payload := domain.RelayPayload{
		Type:    domain.TransmissionProject,
		Source:  "web",
		Name:    "Sara",
		Email:   "sara@example.com",
		Message: "60s teaser, footage ready",
	}

	first := Format(payload, formatClock)
	for i := 0; i < 5; i++ {
		require.Equal(t, first, Format(payload, formatClock), "formatting must be byte-identical for a fixed clock")
	}
}

func TestFormat_ProjectTemplate(t *testing.T) {
	text := Format(domain.RelayPayload{
		Type:    domain.TransmissionProject,
		Name:    "Sara",
		Email:   "sara@example.com",
		Message: "60s teaser",
	}, formatClock)

	require.Contains(t, text, "NEW PROJECT REQUEST")
	require.Contains(t, text, "*Client*: Sara")
	require.Contains(t, text, "*Email*: sara@example.com")
	require.Contains(t, text, "└ 60s teaser")
	require.Contains(t, text, "*Transmission Type*: PROJECT")
	require.Contains(t, text, "Quantum Web Portal")
}

func TestFormat_ProjectFallbacks(t *testing.T) {
	text := Format(domain.RelayPayload{Type: domain.TransmissionProject}, formatClock)

	require.Contains(t, text, "Anonymous Quantum Being")
	require.Contains(t, text, "Not provided")
	require.Contains(t, text, "No details provided")
}

func TestFormat_ProjectLegacyField(t *testing.T) {
	text := Format(domain.RelayPayload{Type: domain.TransmissionProject, Project: "old form build"}, formatClock)
	require.Contains(t, text, "└ old form build")
}

func TestFormat_FeedbackTemplate(t *testing.T) {
	text := Format(domain.RelayPayload{Type: domain.TransmissionFeedback, Message: "great cut!"}, formatClock)

	require.Contains(t, text, "CLIENT FEEDBACK")
	require.Contains(t, text, "*From*: Anonymous")
	require.Contains(t, text, "└ great cut!")
}

func TestFormat_SubscribeTemplate(t *testing.T) {
	text := Format(domain.RelayPayload{Type: domain.TransmissionSubscribe, Email: "a@b.com"}, formatClock)

	require.Contains(t, text, "NEWSLETTER SUBSCRIPTION")
	require.Contains(t, text, "*Email*: a@b.com")
	require.Contains(t, text, "ACTIVE")
}

func TestFormat_MiniAppSource(t *testing.T) {
	text := Format(domain.RelayPayload{Type: domain.TransmissionFeedback, Source: "webapp"}, formatClock)
	require.Contains(t, text, "Telegram Mini App")
	require.NotContains(t, text, "Quantum Web Portal")
}

func TestFormat_TimestampInStudioZone(t *testing.T) {
	// 12:30:45 UTC renders as 3:30:45 PM at UTC+3.
	text := Format(domain.RelayPayload{Type: domain.TransmissionFeedback}, formatClock)
	require.Contains(t, text, "3:30:45 PM")
	require.True(t, strings.HasPrefix(text, "🌌 *QUANTUM TRANSMISSION INITIATED* 🌌\n"))
}
