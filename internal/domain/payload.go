package domain

import "strings"

// TransmissionType is the closed set of relay submission kinds.
type TransmissionType string

const (
	TransmissionProject   TransmissionType = "project"
	TransmissionFeedback  TransmissionType = "feedback"
	TransmissionSubscribe TransmissionType = "subscribe"
)

// KnownTransmissionType reports whether t is one of the supported kinds.
func KnownTransmissionType(t TransmissionType) bool {
	switch t {
	case TransmissionProject, TransmissionFeedback, TransmissionSubscribe:
		return true
	}
	return false
}

// RelayPayload is an inbound form submission. It is validated, formatted,
// forwarded and discarded; nothing here is persisted.
type RelayPayload struct {
	Type    TransmissionType `json:"type"`
	Source  string           `json:"source,omitempty"`
	Name    string           `json:"name,omitempty"`
	Email   string           `json:"email,omitempty"`
	Message string           `json:"message,omitempty"`
	Project string           `json:"project,omitempty"`
}

// FromMiniApp reports whether the submission came from the Telegram Mini App
// rather than the web portal.
func (p RelayPayload) FromMiniApp() bool {
	switch strings.ToLower(strings.TrimSpace(p.Source)) {
	case "webapp", "miniapp":
		return true
	}
	return false
}

// Details returns the project description, falling back to the legacy
// "project" field used by older site builds.
func (p RelayPayload) Details() string {
	if p.Message != "" {
		return p.Message
	}
	return p.Project
}
