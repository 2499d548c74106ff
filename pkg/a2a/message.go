package a2a

import (
	"strings"

	"github.com/google/uuid"
)

/*
Message represents all non‑artifact communication between client & agent.
An ID is assigned on construction so a message can be referenced from history
independently of the task it belongs to.
*/
type Message struct {
	ID        string         `json:"id,omitempty"`
	Role      string         `json:"role"` // "user" or "agent"
	Parts     []Part         `json:"parts"`
	TaskID    string         `json:"taskId,omitempty"`
	ContextID string         `json:"contextId,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func NewTextMessage(role string, text string) *Message {
	return &Message{
		ID:   uuid.New().String(),
		Role: role,
		Parts: []Part{
			{Type: PartTypeText, Text: text},
		},
	}
}

func NewFileMessage(role string, file *FilePart) *Message {
	return &Message{
		ID:   uuid.New().String(),
		Role: role,
		Parts: []Part{
			{Type: PartTypeFile, File: file},
		},
	}
}

func NewDataMessage(role string, data map[string]any) *Message {
	return &Message{
		ID:   uuid.New().String(),
		Role: role,
		Parts: []Part{
			{Type: PartTypeData, Data: data},
		},
	}
}

// UserInput concatenates the text of every TextPart, joined by delimiter
// (defaulting to "\n"); parts of other kinds are skipped. Grounds §4.8's
// getUserInput helper.
func (msg *Message) UserInput(delimiter string) string {
	if delimiter == "" {
		delimiter = "\n"
	}

	var texts []string
	for _, part := range msg.Parts {
		if text, ok := part.AsText(); ok {
			texts = append(texts, text)
		}
	}

	return strings.Join(texts, delimiter)
}

func (msg *Message) String() string {
	var sb strings.Builder

	for _, part := range msg.Parts {
		sb.WriteString(part.Text)
	}

	return sb.String()
}
