package a2a

/*
Event is the sum type produced by an Agent Executor and folded by the Task
Manager (§3, §9 "Polymorphic Event sum type"). It is modeled as a tagged
variant rather than an interface hierarchy: Kind is the wire discriminator
and exactly one of the Message/Task/Status/Artifact fields is populated
according to Kind.
*/
type EventKind string

const (
	EventKindMessage        EventKind = "message"
	EventKindTask           EventKind = "task"
	EventKindStatusUpdate   EventKind = "status-update"
	EventKindArtifactUpdate EventKind = "artifact-update"
)

type Event struct {
	Kind EventKind `json:"kind"`

	Message  *Message  `json:"message,omitempty"`
	Task     *Task     `json:"task,omitempty"`
	Status   *StatusUpdate `json:"status,omitempty"`
	Artifact *ArtifactUpdate `json:"artifact,omitempty"`
}

// StatusUpdate carries a status transition for a task (§3).
type StatusUpdate struct {
	TaskID    string         `json:"taskId"`
	ContextID string         `json:"contextId"`
	Status    TaskStatus     `json:"status"`
	Final     bool           `json:"final"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// ArtifactUpdate carries a new or updated artifact chunk for a task (§3).
type ArtifactUpdate struct {
	TaskID    string         `json:"taskId"`
	ContextID string         `json:"contextId"`
	Artifact  Artifact       `json:"artifact"`
	Append    bool           `json:"append,omitempty"`
	LastChunk bool           `json:"lastChunk,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func NewMessageEvent(m *Message) Event {
	return Event{Kind: EventKindMessage, Message: m}
}

func NewTaskEvent(t *Task) Event {
	return Event{Kind: EventKindTask, Task: t}
}

func NewStatusUpdateEvent(taskID, contextID string, status TaskStatus, final bool) Event {
	return Event{
		Kind: EventKindStatusUpdate,
		Status: &StatusUpdate{
			TaskID:    taskID,
			ContextID: contextID,
			Status:    status,
			Final:     final,
		},
	}
}

func NewArtifactUpdateEvent(taskID, contextID string, artifact Artifact, append, lastChunk bool) Event {
	return Event{
		Kind: EventKindArtifactUpdate,
		Artifact: &ArtifactUpdate{
			TaskID:    taskID,
			ContextID: contextID,
			Artifact:  artifact,
			Append:    append,
			LastChunk: lastChunk,
		},
	}
}

// TaskID extracts the task identifier carried by task-related event
// variants; ok is false for MessageEvent, which carries none.
func (e Event) TaskID() (id string, ok bool) {
	switch e.Kind {
	case EventKindTask:
		return e.Task.ID, true
	case EventKindStatusUpdate:
		return e.Status.TaskID, true
	case EventKindArtifactUpdate:
		return e.Artifact.TaskID, true
	default:
		return "", false
	}
}

// ContextID extracts the context identifier carried by task-related event
// variants; ok is false for MessageEvent.
func (e Event) ContextID() (id string, ok bool) {
	switch e.Kind {
	case EventKindTask:
		return e.Task.ContextID, true
	case EventKindStatusUpdate:
		return e.Status.ContextID, true
	case EventKindArtifactUpdate:
		return e.Artifact.ContextID, true
	default:
		return "", false
	}
}

// Terminal implements §4.4's terminal-event detection: a StatusUpdate with
// Final=true, any MessageEvent, or a TaskEvent whose status is terminal.
func (e Event) Terminal() bool {
	switch e.Kind {
	case EventKindMessage:
		return true
	case EventKindStatusUpdate:
		return e.Status.Final
	case EventKindTask:
		return e.Task.Status.State.Terminal()
	default:
		return false
	}
}

// Interruption reports whether e pauses the flow awaiting external action —
// a TaskEvent or StatusUpdate in auth-required (§4.4's break-on-interrupt
// condition).
func (e Event) Interruption() bool {
	switch e.Kind {
	case EventKindTask:
		return e.Task.Status.State == TaskStateAuthReq
	case EventKindStatusUpdate:
		return e.Status.Status.State == TaskStateAuthReq
	default:
		return false
	}
}
