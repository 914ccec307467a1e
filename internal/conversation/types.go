package conversation

import (
	"time"

	"github.com/google/uuid"
)

// Message roles accepted by the chat pipeline.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Title constraints for newly created conversations.
const (
	// maxTitleRunes is the display limit for a conversation title derived
	// from the first user message.
	maxTitleRunes = 80

	// placeholderTitle is used when no user message text is available.
	placeholderTitle = "New conversation"
)

// Conversation is one chat thread owned by the deployment's business account.
type Conversation struct {
	ID        uuid.UUID
	OwnerID   uuid.UUID
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is one persisted turn of a conversation.
type Message struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	Role           string
	Content        string
	TokensUsed     *int32 // nil when the provider reported no usage
	CreatedAt      time.Time
}
