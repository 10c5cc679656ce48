package models

// BookingPayload carries the details reported by the embedded scheduling widget
// when the visitor books a slot. It is produced at most once per widget lifetime
// and held in a single overwritten slot, never queued.
type BookingPayload struct {
	EventURI       string `json:"event_uri,omitempty"`
	InviteeURI     string `json:"invitee_uri,omitempty"`
	EventStartTime string `json:"event_start_time,omitempty"`
	EventEndTime   string `json:"event_end_time,omitempty"`
	InviteeName    string `json:"invitee_name,omitempty"`
	InviteeEmail   string `json:"invitee_email,omitempty"`
}

// Empty reports whether no booking has been captured.
func (b BookingPayload) Empty() bool {
	return b == BookingPayload{}
}
