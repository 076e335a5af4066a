package webhook

import "errors"

// Event and message kinds. Only text message events are actionable; the
// parser keeps everything so the policy layer can reject uniformly.
const (
	EventTypeMessage = "message"

	MessageTypeText = "text"
)

// ErrMalformedPayload marks a request body that is not a valid webhook
// batch. The server answers such requests with 400.
var ErrMalformedPayload = errors.New("malformed webhook payload")

// Callback is one webhook delivery: an ordered list of independent events.
// A delivery with zero events is valid and produces no side effects.
type Callback struct {
	Destination string  `json:"destination,omitempty"`
	Events      []Event `json:"events"`
}

// Event is a single webhook event. Fields for kinds we do not act on are
// left nil; unknown extra fields are ignored for forward compatibility.
type Event struct {
	Type            string           `json:"type"`
	WebhookEventID  string           `json:"webhookEventId"`
	DeliveryContext *DeliveryContext `json:"deliveryContext,omitempty"`
	Timestamp       int64            `json:"timestamp"`
	Source          *Source          `json:"source,omitempty"`

	// ReplyToken is an opaque single-use credential. It may be empty or
	// already consumed; dispatch treats that as a no-op.
	ReplyToken string `json:"replyToken,omitempty"`

	Message *Message `json:"message,omitempty"`
}

// DeliveryContext flags platform-side redeliveries of the same event.
type DeliveryContext struct {
	IsRedelivery bool `json:"isRedelivery"`
}

// Source describes where an event originated. At most one of GroupID and
// RoomID is present; a bare UserID denotes a one-to-one conversation.
type Source struct {
	Type    string `json:"type"`
	UserID  string `json:"userId,omitempty"`
	GroupID string `json:"groupId,omitempty"`
	RoomID  string `json:"roomId,omitempty"`
}

// Message is the message body of a message event.
type Message struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Text string `json:"text,omitempty"`

	Mention *Mention `json:"mention,omitempty"`
}

// Mention holds the inline mention markers of a text message.
type Mention struct {
	Mentionees []Mentionee `json:"mentionees"`
}

// Mentionee is one mention span over the message text. Index and Length
// are counted in UTF-16 code units per the platform's offset convention.
// Bounds are not validated at parse time; the consumer checks them
// per-message before slicing.
type Mentionee struct {
	Index  int    `json:"index"`
	Length int    `json:"length"`
	Type   string `json:"type,omitempty"`
	UserID string `json:"userId,omitempty"`
}

// IsRedelivery reports whether the platform flagged this event as a
// redelivery of an earlier attempt.
func (e *Event) IsRedelivery() bool {
	return e.DeliveryContext != nil && e.DeliveryContext.IsRedelivery
}
