package types

import "time"

// Message represents one chat message posted by a member.
// Messages are immutable: they are only ever created and listed.
type Message struct {
	// ID is the unique identifier of the message.
	ID int64 `json:"id" db:"id"`

	// MemberID references the member who posted the message. Deleting
	// a member cascades and removes all of their messages.
	MemberID int64 `json:"member_id" db:"member_id"`

	// Username is the posting member's name, denormalized into list
	// responses for the client. It is populated by joins, not stored.
	Username string `json:"username" db:"username"`

	// Text is the message body, 1–1000 characters after trimming.
	Text string `json:"text" db:"text"`

	// CreatedAt is the timestamp when the message was posted. Listing
	// is ordered by this field, oldest first.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
