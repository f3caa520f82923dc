package models

import "time"

// User represents an account within the chat platform. IsOnline holds the
// last moment an authenticated request was seen for the user; it is nil
// until the first authenticated request.
type User struct {
	ID        string
	Username  string
	Email     string
	Password  string
	IsOnline  *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserProfile holds the public-facing details attached to a user account.
// Username is populated from the owning user when profiles are loaded and
// is never written through this struct.
type UserProfile struct {
	ID               string
	UserID           string
	Username         string
	FirstName        string
	LastName         string
	Caption          string
	About            string
	ProfilePictureID *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// FileUpload references a stored file consumable as a profile picture or a
// message attachment.
type FileUpload struct {
	ID          string
	Location    string
	ContentType string
	Size        int64
	CreatedAt   time.Time
}

// Message is a chat message between two users. Sender, Receiver and
// Attachments are loaded eagerly when the message is read back.
type Message struct {
	ID          string
	SenderID    string
	ReceiverID  string
	Body        string
	IsRead      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Sender      *User
	Receiver    *User
	Attachments []MessageAttachment
}

// MessageAttachment links an uploaded file to a message. The attachment set
// of a message is always replaced wholesale, never merged.
type MessageAttachment struct {
	ID        string
	MessageID string
	UploadID  string
	Caption   string
}

// TokenPair groups the bearer credentials issued to authenticated users.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// RefreshSecret scopes refresh-token rotation for a user. A refresh token
// only rotates while it embeds the currently stored secret.
type RefreshSecret struct {
	UserID    string
	Secret    string
	ExpiresAt time.Time
}
