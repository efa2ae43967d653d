package domain

// Role identifies the author of a chat turn
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// ChatMessage is a single turn of the stylist transcript
type ChatMessage struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// StylistGreeting opens every new transcript
const StylistGreeting = "Hello! I'm Luna, your personal stylist. Looking for outfit advice or gift ideas?"
