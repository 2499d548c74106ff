package a2a

import (
	"strings"
	"time"

	"github.com/cohesivestack/valgo"
	"github.com/google/uuid"
)

/*
Task is the server-tracked unit of agent work: an immutable id and contextId,
a current status, an append-only history of Messages, and an ordered list of
Artifacts. Once assigned, ID and ContextID never change; History only ever
grows through the Task Manager (§3).
*/
type Task struct {
	ID        string         `json:"id"`
	ContextID string         `json:"contextId"`
	Status    TaskStatus     `json:"status"`
	History   []Message      `json:"history,omitempty"`
	Artifacts []Artifact     `json:"artifacts,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func (task *Task) Validate() bool {
	return valgo.Is(
		valgo.String(task.ID).Not().Blank(),
		valgo.String(task.ContextID).Not().Blank(),
		valgo.String(string(task.Status.State)).Not().Blank(),
	).Valid()
}

// NewTask applies the task-creation policy from §4.3: submitted state,
// history seeded with initialMessage if present, empty artifacts.
func NewTask(id, contextID string, initialMessage *Message) *Task {
	if id == "" {
		id = uuid.New().String()
	}
	if contextID == "" {
		contextID = uuid.New().String()
	}

	task := &Task{
		ID:        id,
		ContextID: contextID,
		Status: TaskStatus{
			State:     TaskStateSubmitted,
			Timestamp: time.Now(),
		},
		History:   []Message{},
		Artifacts: []Artifact{},
	}

	if initialMessage != nil {
		task.History = append(task.History, *initialMessage)
	}

	return task
}

/*
Prefix returns a deterministic "/"-joined key for a task, after any
optionals. The taskstore backends do not use it: redisstore keys by its
own prefix plus the task id, sqlstore by the task id. Segments are ordered:

  - State: at the front so a scan can filter by state cheaply.
  - ContextID: groups all tasks belonging to one conversation.
  - ID: the unique segment guaranteeing no collisions.
*/
func (task *Task) Prefix(optionals ...string) string {
	builder := optionals
	builder = append(builder, string(task.Status.State), task.ContextID, task.ID)
	return strings.Join(builder, "/")
}

// WithHistoryLength returns a shallow copy of the task whose History is
// truncated to the last n entries. n <= 0 (or n >= len(History)) returns the
// full history unchanged, per §4.7's truncation rule.
func (task *Task) WithHistoryLength(n int) *Task {
	if n <= 0 || n >= len(task.History) {
		return task
	}

	cp := *task
	cp.History = append([]Message{}, task.History[len(task.History)-n:]...)
	return &cp
}

func (task *Task) LastMessage() *Message {
	if len(task.History) == 0 {
		return nil
	}

	return &task.History[len(task.History)-1]
}

// findArtifact returns the index of the artifact with the given id, or -1.
func (task *Task) findArtifact(id string) int {
	for i := range task.Artifacts {
		if task.Artifacts[i].ID == id {
			return i
		}
	}
	return -1
}

// ApplyArtifact implements §4.3's ArtifactUpdate fold rule: append=true
// merges into a matching artifact by id (or appends if none matches);
// otherwise the artifact is always appended as new.
func (task *Task) ApplyArtifact(artifact Artifact, appendFlag bool) {
	if appendFlag {
		if idx := task.findArtifact(artifact.ID); idx != -1 {
			task.Artifacts[idx] = task.Artifacts[idx].MergeAppend(artifact)
			return
		}
	}

	task.Artifacts = append(task.Artifacts, artifact)
}

// ApplyStatus implements §4.3's StatusUpdate fold rule: the previous
// status.Message, if any, is displaced into History before the new status
// replaces it.
func (task *Task) ApplyStatus(status TaskStatus) {
	if task.Status.Message != nil {
		task.History = append(task.History, *task.Status.Message)
	}
	task.Status = status
}

// TaskHistory is a standalone view of a task's message history, used by
// history-only query results.
type TaskHistory struct {
	MessageHistory []Message `json:"messageHistory,omitempty"`
}
