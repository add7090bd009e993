package domain

import "time"

type MessageType string

const (
	MessageCollectiveLearning MessageType = "COLLECTIVE_LEARNING"
	MessageCrisisTraining     MessageType = "CRISIS_TRAINING"
	MessageEmotionalLearning  MessageType = "EMOTIONAL_LEARNING"
	MessagePatternMatch       MessageType = "PATTERN_MATCH"
	MessageStandardProcedure  MessageType = "STANDARD_PROCEDURE"
	MessageSync               MessageType = "SYNC"
	MessageProactiveAction    MessageType = "PROACTIVE_ACTION"
	MessageError              MessageType = "ERROR"
)

// Broadcast is an egress message delivered to connected agents.
type Broadcast struct {
	Type      MessageType `json:"type"`
	Source    string      `json:"source,omitempty"`
	Learning  any         `json:"learning"`
	Timestamp time.Time   `json:"timestamp"`
}

func NewBroadcast(t MessageType, source string, learning any) Broadcast {
	return Broadcast{Type: t, Source: source, Learning: learning, Timestamp: time.Now().UTC()}
}
