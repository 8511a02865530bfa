package domain

import (
	"strings"
	"time"
)

// MaxLogEntries caps per-session conversation history so long-running chats
// cannot grow memory without bound.
const MaxLogEntries = 50

// LogEntry is a single recorded inbound message.
type LogEntry struct {
	At   time.Time `json:"at"`
	Text string    `json:"text"`
}

// Session is ephemeral per-identity conversational state. It is never
// persisted across process restarts in memory-backed deployments.
type Session struct {
	Identity    string     `json:"identity"`
	DisplayName string     `json:"displayName,omitempty"`
	FirstSeen   time.Time  `json:"firstSeen"`
	LastSeen    time.Time  `json:"lastSeen"`
	Interests   []string   `json:"interests,omitempty"`
	QueryCount  int        `json:"queryCount"`
	Log         []LogEntry `json:"log,omitempty"`
}

// NewSession creates a session for an identity first seen at now.
func NewSession(identity, displayName string, now time.Time) *Session {
	return &Session{
		Identity:    identity,
		DisplayName: displayName,
		FirstSeen:   now,
		LastSeen:    now,
	}
}

// Record applies one inbound message to the session: bumps counters, appends
// to the capped conversation log and merges any matched interests. Both the
// memory and DynamoDB stores route through here so update semantics cannot
// drift between backends.
func (s *Session) Record(text string, now time.Time) {
	s.LastSeen = now
	s.QueryCount++
	s.Log = append(s.Log, LogEntry{At: now, Text: text})
	if len(s.Log) > MaxLogEntries {
		s.Log = s.Log[len(s.Log)-MaxLogEntries:]
	}
	for _, label := range MatchInterests(text) {
		s.addInterest(label)
	}
}

// Expired reports whether the session has been idle longer than ttl.
func (s *Session) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.LastSeen) > ttl
}

func (s *Session) addInterest(label string) {
	for _, have := range s.Interests {
		if have == label {
			return
		}
	}
	s.Interests = append(s.Interests, label)
}

// interestRules maps lowercase substrings to interest labels. Order matters:
// a session's interest list preserves the order in which substrings first
// matched, so the slice is scanned front to back on every message.
var interestRules = []struct {
	substr string
	label  string
}{
	{"color", "ColorGrading"},
	{"grade", "ColorGrading"},
	{"motion", "MotionGraphics"},
	{"animation", "MotionGraphics"},
	{"video", "VideoEditing"},
	{"edit", "VideoEditing"},
	{"vfx", "VisualEffects"},
	{"effect", "VisualEffects"},
	{"audio", "SoundDesign"},
	{"sound", "SoundDesign"},
	{"wedding", "WeddingFilms"},
	{"commercial", "Commercials"},
	{"youtube", "YouTubeContent"},
}

// MatchInterests scans text for known topic substrings and returns the
// matched labels, deduplicated, in rule order. Matching is plain substring
// containment, not tokenization: "videoclip" matches "video".
func MatchInterests(text string) []string {
	lowered := strings.ToLower(text)
	var labels []string
	seen := make(map[string]struct{}, 4)
	for _, rule := range interestRules {
		if !strings.Contains(lowered, rule.substr) {
			continue
		}
		if _, dup := seen[rule.label]; dup {
			continue
		}
		seen[rule.label] = struct{}{}
		labels = append(labels, rule.label)
	}
	return labels
}
