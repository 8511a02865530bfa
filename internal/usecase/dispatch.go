package usecase

import (
	"strings"

	"studio-relay/internal/domain"
)

// Reply is a dispatcher response: message text plus optional inline buttons
// rendered as a Telegram inline keyboard.
type Reply struct {
	Text    string
	Buttons []domain.Button
}

// TriggerKind distinguishes how an inbound interaction was expressed.
type TriggerKind int

const (
	TriggerText TriggerKind = iota
	TriggerCommand
	TriggerCallback
)

// Trigger is one inbound interaction to dispatch on.
type Trigger struct {
	Kind  TriggerKind
	Value string
}

// Topic identifies a canned response.
type topic string

const (
	topicMenu      topic = "menu"
	topicPricing   topic = "pricing"
	topicPortfolio topic = "portfolio"
	topicServices  topic = "services"
	topicContact   topic = "contact"
	topicBooking   topic = "booking"
	topicGreeting  topic = "greeting"
	topicThanks    topic = "thanks"
)

var commandTopics = map[string]topic{
	"/start":     topicGreeting,
	"/help":      topicMenu,
	"/menu":      topicMenu,
	"/pricing":   topicPricing,
	"/portfolio": topicPortfolio,
	"/services":  topicServices,
	"/contact":   topicContact,
	"/book":      topicBooking,
}

var callbackTopics = map[string]topic{
	"menu":      topicMenu,
	"pricing":   topicPricing,
	"portfolio": topicPortfolio,
	"services":  topicServices,
	"contact":   topicContact,
	"booking":   topicBooking,
}

// keywordGroups are tested in this exact order against lowercased free
// text; the first group with any matching substring wins. Pricing outranks
// portfolio outranks services outranks contact outranks booking, with
// greetings and thanks last.
var keywordGroups = []struct {
	topic    topic
	keywords []string
}{
	{topicPricing, []string{"price", "pricing", "cost", "rate", "budget", "how much", "charge"}},
	{topicPortfolio, []string{"portfolio", "showreel", "reel", "sample", "your work", "examples"}},
	{topicServices, []string{"service", "editing", "edit", "grading", "vfx", "what do you do"}},
	{topicContact, []string{"contact", "email", "reach", "phone", "telegram"}},
	{topicBooking, []string{"book", "schedule", "appointment", "slot", "available"}},
	{topicGreeting, []string{"hello", "hi", "hey", "good morning", "good evening", "selam"}},
	{topicThanks, []string{"thanks", "thank you", "appreciate"}},
}

// Dispatch maps an inbound trigger to its canned reply. Pure apart from the
// session argument: handlers may personalize from it but never touch any
// other state.
func Dispatch(sess domain.Session, trig Trigger) Reply {
	switch trig.Kind {
	case TriggerCommand:
		if t, ok := commandTopics[normalizeCommand(trig.Value)]; ok {
			return replyFor(t, sess)
		}
		return replyFor(topicMenu, sess)
	case TriggerCallback:
		if t, ok := callbackTopics[trig.Value]; ok {
			return replyFor(t, sess)
		}
		return replyFor(topicMenu, sess)
	default:
		return replyFor(matchKeywords(trig.Value), sess)
	}
}

// TriggerFromMessage classifies raw message text as a command or free text.
func TriggerFromMessage(text string) Trigger {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "/") {
		return Trigger{Kind: TriggerCommand, Value: trimmed}
	}
	return Trigger{Kind: TriggerText, Value: trimmed}
}

// normalizeCommand strips arguments and the @botname suffix used in groups.
func normalizeCommand(raw string) string {
	cmd := strings.ToLower(strings.TrimSpace(raw))
	if i := strings.IndexAny(cmd, " \t"); i >= 0 {
		cmd = cmd[:i]
	}
	if i := strings.Index(cmd, "@"); i >= 0 {
		cmd = cmd[:i]
	}
	return cmd
}

func matchKeywords(text string) topic {
	lowered := strings.ToLower(text)
	for _, group := range keywordGroups {
		for _, kw := range group.keywords {
			if strings.Contains(lowered, kw) {
				return group.topic
			}
		}
	}
	return topicMenu
}

func replyFor(t topic, sess domain.Session) Reply {
	switch t {
	case topicPricing:
		return Reply{
			Text: "💰 *PRICING MATRIX*\n\n" +
				"├ Short-form edit: from $150\n" +
				"├ Full video production: from $500\n" +
				"├ Color grading pass: from $200\n" +
				"└ Motion graphics package: from $300\n\n" +
				"Every project is scoped individually. Tell me about yours.",
			Buttons: []domain.Button{
				{Label: "📅 Book a slot", Action: "booking"},
				{Label: "🎬 See the work", Action: "portfolio"},
			},
		}
	case topicPortfolio:
		return Reply{
			Text: "🎬 *PORTFOLIO ACCESS*\n\n" +
				"The showreel and recent client work live at real1editor.example/work.\n" +
				"Commercials, wedding films, YouTube content and VFX breakdowns.",
			Buttons: []domain.Button{
				{Label: "💰 Pricing", Action: "pricing"},
				{Label: "📅 Book a slot", Action: "booking"},
			},
		}
	case topicServices:
		return Reply{
			Text: "⚡ *SERVICES ONLINE*\n\n" +
				"├ Video editing (short & long form)\n" +
				"├ Color grading\n" +
				"├ Motion graphics & titles\n" +
				"├ VFX & compositing\n" +
				"└ Sound design\n\n" +
				"Which one does your project need?",
			Buttons: []domain.Button{
				{Label: "💰 Pricing", Action: "pricing"},
				{Label: "🎬 Portfolio", Action: "portfolio"},
			},
		}
	case topicContact:
		return Reply{
			Text: "📡 *DIRECT CHANNEL*\n\n" +
				"Fastest: keep talking to me right here.\n" +
				"Email: studio@real1editor.example\n" +
				"Or send a project brief from the website form.",
			Buttons: []domain.Button{
				{Label: "📅 Book a slot", Action: "booking"},
			},
		}
	case topicBooking:
		return Reply{
			Text: "📅 *BOOKING SEQUENCE*\n\n" +
				"Send a short brief (deadline, length, footage status) and you'll " +
				"get a slot proposal within one working day.",
			Buttons: []domain.Button{
				{Label: "💰 Pricing first", Action: "pricing"},
			},
		}
	case topicGreeting:
		name := sess.DisplayName
		if name == "" {
			name = "traveler"
		}
		return Reply{
			Text: "🌌 Welcome to *Real1Editor Quantum Systems*, " + name + "!\n\n" +
				"I can walk you through services, pricing and booking. What brings you here?",
			Buttons: menuButtons(),
		}
	case topicThanks:
		return Reply{
			Text: "⚡ Anytime! The channel stays open, ping me when the next project materializes.",
		}
	default:
		return Reply{
			Text:    "🛰 *COMMAND MENU*\n\nPick a destination or just describe your project in plain words.",
			Buttons: menuButtons(),
		}
	}
}

func menuButtons() []domain.Button {
	return []domain.Button{
		{Label: "⚡ Services", Action: "services"},
		{Label: "💰 Pricing", Action: "pricing"},
		{Label: "🎬 Portfolio", Action: "portfolio"},
		{Label: "📅 Booking", Action: "booking"},
	}
}
