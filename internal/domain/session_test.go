package domain

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMatchInterests_OrderAndDedup(t *testing.T) {
	labels := MatchInterests("I need COLOR work and some Motion graphics, more color too")
	require.Equal(t, []string{"ColorGrading", "MotionGraphics"}, labels)
}

func TestMatchInterests_SubstringContainment(t *testing.T) {
	// Containment, not tokenization: "videoclip" carries "video".
	labels := MatchInterests("got a videoclip for you")
	require.Contains(t, labels, "VideoEditing")
}

func TestMatchInterests_NoMatch(t *testing.T) {
	require.Empty(t, MatchInterests("hello there"))
}

func TestSessionRecord_CountersAndInterests(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sess := NewSession("42", "Dawit", now)

	sess.Record("what about color grading", now)
	sess.Record("and motion graphics", now.Add(time.Minute))
	sess.Record("color again", now.Add(2*time.Minute))

	require.Equal(t, 3, sess.QueryCount)
	require.Equal(t, []string{"ColorGrading", "MotionGraphics"}, sess.Interests)
	require.Equal(t, now.Add(2*time.Minute), sess.LastSeen)
	require.Equal(t, now, sess.FirstSeen)
	require.Len(t, sess.Log, 3)
}

func TestSessionRecord_LogCapped(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sess := NewSession("42", "", now)

	for i := 0; i < MaxLogEntries+10; i++ {
		sess.Record(fmt.Sprintf("message %d", i), now.Add(time.Duration(i)*time.Second))
	}

	require.Len(t, sess.Log, MaxLogEntries)
	require.Equal(t, "message 10", sess.Log[0].Text)
	require.Equal(t, fmt.Sprintf("message %d", MaxLogEntries+9), sess.Log[len(sess.Log)-1].Text)
}

func TestSessionExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sess := NewSession("42", "", now)

	require.False(t, sess.Expired(now.Add(24*time.Hour), 24*time.Hour))
	require.True(t, sess.Expired(now.Add(24*time.Hour+time.Second), 24*time.Hour))
}

func TestRelayPayload_Details(t *testing.T) {
	require.Equal(t, "from message", RelayPayload{Message: "from message", Project: "legacy"}.Details())
	require.Equal(t, "legacy", RelayPayload{Project: "legacy"}.Details())
	require.Empty(t, RelayPayload{}.Details())
}

func TestRelayPayload_FromMiniApp(t *testing.T) {
	require.True(t, RelayPayload{Source: "webapp"}.FromMiniApp())
	require.True(t, RelayPayload{Source: "MiniApp"}.FromMiniApp())
	require.False(t, RelayPayload{Source: "web"}.FromMiniApp())
	require.False(t, RelayPayload{}.FromMiniApp())
}

func TestUserIdentity(t *testing.T) {
	u := User{ID: 123456789, FirstName: "Sara", Username: "sara_cuts"}
	require.Equal(t, "123456789", u.Identity())
	require.Equal(t, "Sara", u.DisplayName())
	require.Equal(t, "sara_cuts", User{ID: 1, Username: "sara_cuts"}.DisplayName())
}
