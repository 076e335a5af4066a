// Package bot decides which webhook events deserve an automated reply and
// derives the question text to forward to the answer backend.
package bot

import "github.com/answerline/answerline/internal/webhook"

// Policy holds the per-process reply rules. Values come from config and
// never change during request handling.
type Policy struct {
	// BotUserID is the bot's own user id. Only mention entries matching
	// it count as "bot mentioned".
	BotUserID string

	// DirectChatAllowed lets one-to-one messages through without a
	// mention.
	DirectChatAllowed bool
}

// ShouldRespond reports whether an event warrants an automated reply.
//
// Non-message events and non-text messages never do. A one-to-one source
// qualifies when the direct-chat allowance is on; everything else needs
// an explicit mention of the bot.
func (p Policy) ShouldRespond(ev *webhook.Event) bool {
	if ev == nil || ev.Type != webhook.EventTypeMessage || ev.Message == nil {
		return false
	}
	if ev.Message.Type != webhook.MessageTypeText {
		return false
	}

	if p.DirectChatAllowed && isDirectChat(ev.Source) {
		return true
	}

	return p.mentionsBot(ev.Message)
}

// isDirectChat reports whether the source is a one-to-one conversation:
// a user id with neither group nor room.
func isDirectChat(src *webhook.Source) bool {
	return src != nil && src.UserID != "" && src.GroupID == "" && src.RoomID == ""
}

func (p Policy) mentionsBot(m *webhook.Message) bool {
	if m.Mention == nil || p.BotUserID == "" {
		return false
	}
	for _, me := range m.Mention.Mentionees {
		if me.UserID == p.BotUserID {
			return true
		}
	}
	return false
}
