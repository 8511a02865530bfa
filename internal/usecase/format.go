package usecase

import (
	"fmt"
	"strings"
	"time"

	"studio-relay/internal/domain"
)

// The studio operates out of Addis Ababa; rendering through a fixed offset
// keeps Format deterministic without shipping tzdata in the Lambda binary.
var studioZone = time.FixedZone("EAT", 3*60*60)

const timestampLayout = "Monday, January 2, 2006 at 3:04:05 PM"

// Format renders the outbound channel message for a submission. It is a
// pure function of (payload, now): identical inputs produce byte-identical
// output, which the replay tests rely on. Missing fields render as literal
// fallbacks, never as errors.
func Format(p domain.RelayPayload, now time.Time) string {
	var b strings.Builder

	b.WriteString("🌌 *QUANTUM TRANSMISSION INITIATED* 🌌\n")
	fmt.Fprintf(&b, "⏰ *Time*: %s\n", now.In(studioZone).Format(timestampLayout))
	fmt.Fprintf(&b, "📡 *Transmission Type*: %s\n", strings.ToUpper(string(p.Type)))
	fmt.Fprintf(&b, "🚀 *Source*: %s\n\n", sourceLabel(p))

	switch p.Type {
	case domain.TransmissionProject:
		b.WriteString("🎬 *NEW PROJECT REQUEST*\n")
		fmt.Fprintf(&b, "├ *Client*: %s\n", fallback(p.Name, "Anonymous Quantum Being"))
		fmt.Fprintf(&b, "├ *Email*: %s\n", fallback(p.Email, "Not provided"))
		b.WriteString("├ *Project Details*:\n")
		fmt.Fprintf(&b, "└ %s\n", fallback(p.Details(), "No details provided"))
	case domain.TransmissionFeedback:
		b.WriteString("💬 *CLIENT FEEDBACK*\n")
		fmt.Fprintf(&b, "├ *From*: %s\n", fallback(p.Name, "Anonymous"))
		b.WriteString("├ *Message*:\n")
		fmt.Fprintf(&b, "└ %s\n", fallback(p.Message, "Empty feedback"))
	case domain.TransmissionSubscribe:
		b.WriteString("📧 *NEWSLETTER SUBSCRIPTION*\n")
		fmt.Fprintf(&b, "├ *Email*: %s\n", fallback(p.Email, "Invalid email"))
		b.WriteString("├ *Status*: 🟢 ACTIVE\n")
		b.WriteString("└ *Frequency*: Quantum Updates Enabled\n")
	default:
		// Unknown types are rejected before formatting; kept for safety.
		b.WriteString("⚡ *UNKNOWN TRANSMISSION*\n")
		b.WriteString("└ *Status*: 🔴 INVESTIGATE\n")
	}

	b.WriteString("\n---\n")
	b.WriteString("⚡ *REAL1EDITOR QUANTUM SYSTEMS* ⚡\n")
	b.WriteString("📍 Neo-Addis | 3045 Era | Video Editing Elite\n")
	fmt.Fprintf(&b, "🌐 %s", sourceName(p))

	return b.String()
}

func sourceLabel(p domain.RelayPayload) string {
	if p.FromMiniApp() {
		return "Telegram Mini App"
	}
	return "Quantum Web Portal"
}

func sourceName(p domain.RelayPayload) string {
	if p.FromMiniApp() {
		return "Telegram Mini App"
	}
	return "Web Portal"
}

func fallback(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
