package booking

import (
	"encoding/json"

	"github.com/leadrail/leadrail/pkg/models"
)

// scheduledEvent is the widget message value that signals a completed booking.
const scheduledEvent = "scheduled"

// WidgetMessage is the cross-origin message shape posted by the scheduling
// widget. Anything other than a scheduled event is ignored.
type WidgetMessage struct {
	Event   string `json:"event"`
	Payload struct {
		Event struct {
			URI       string `json:"uri"`
			StartTime string `json:"start_time"`
			EndTime   string `json:"end_time"`
		} `json:"event"`
		Invitee struct {
			URI   string `json:"uri"`
			Name  string `json:"name"`
			Email string `json:"email"`
		} `json:"invitee"`
	} `json:"payload"`
}

// ParseWidgetMessage extracts a BookingPayload from a raw widget message. The
// second return value is false for malformed messages and for event kinds other
// than a completed booking.
func ParseWidgetMessage(raw []byte) (models.BookingPayload, bool) {
	var msg WidgetMessage

	if err := json.Unmarshal(raw, &msg); err != nil {
		return models.BookingPayload{}, false
	}

	if msg.Event != scheduledEvent {
		return models.BookingPayload{}, false
	}

	return models.BookingPayload{
		EventURI:       msg.Payload.Event.URI,
		InviteeURI:     msg.Payload.Invitee.URI,
		EventStartTime: msg.Payload.Event.StartTime,
		EventEndTime:   msg.Payload.Event.EndTime,
		InviteeName:    msg.Payload.Invitee.Name,
		InviteeEmail:   msg.Payload.Invitee.Email,
	}, true
}
