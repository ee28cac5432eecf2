package domain

import (
	"time"

	"github.com/google/uuid"
)

type NoticeKind string

const (
	NoticeSuccess   NoticeKind = "success"
	NoticeInfo      NoticeKind = "info"
	NoticeDuplicate NoticeKind = "duplicate"
	NoticeWarning   NoticeKind = "warning"
	NoticeError     NoticeKind = "error"
)

// DefaultNoticeTTL is how long a toast stays on screen.
const DefaultNoticeTTL = 3 * time.Second

// Notice is a transient, auto-dismissing message for the shopper.
type Notice struct {
	ID      uuid.UUID
	Kind    NoticeKind
	Message string
	TTL     time.Duration
}

func NewNotice(kind NoticeKind, message string) Notice {
	return Notice{
		ID:      uuid.New(),
		Kind:    kind,
		Message: message,
		TTL:     DefaultNoticeTTL,
	}
}
