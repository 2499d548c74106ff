package a2a

// MessageSendParams are the params of message/send and message/stream
// (§4.7). TaskID/ContextID are optional; when absent the Request Context
// generates UUID v4 values for them.
type MessageSendParams struct {
	Message          Message                 `json:"message"`
	TaskID           string                  `json:"taskId,omitempty"`
	ContextID        string                  `json:"contextId,omitempty"`
	PushNotification *PushNotificationConfig `json:"pushNotification,omitempty"`
	HistoryLength    *int                    `json:"historyLength,omitempty"`
	Metadata         map[string]any          `json:"metadata,omitempty"`
}

// TaskIDParams is the params shape shared by tasks/cancel and
// tasks/resubscribe.
type TaskIDParams struct {
	ID       string         `json:"id"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// TaskQueryParams is the params shape for tasks/get.
type TaskQueryParams struct {
	TaskIDParams
	HistoryLength *int `json:"historyLength,omitempty"`
}

// AgentAuthentication describes the authentication schemes a client must
// present (or, reused here, the scheme a Push Notifier uses against a
// webhook, per §4.6).
type AgentAuthentication struct {
	Schemes     []string `json:"schemes"`
	Credentials *string  `json:"credentials,omitempty"`
}

// PushNotificationConfig is the webhook target and its auth (§3).
type PushNotificationConfig struct {
	URL            string               `json:"url"`
	ID             *string              `json:"id,omitempty"`
	Token          *string              `json:"token,omitempty"`
	Authentication *AgentAuthentication `json:"authentication,omitempty"`
}

// TaskPushNotificationConfig binds a PushNotificationConfig to a task id —
// the params/result shape of the pushNotificationConfig/set and /get
// methods.
type TaskPushNotificationConfig struct {
	TaskID                 string                 `json:"taskId"`
	PushNotificationConfig PushNotificationConfig `json:"pushNotificationConfig"`
}

// GetTaskPushNotificationConfigParams is the params shape for
// tasks/pushNotificationConfig/get, which accepts either a bare task id or
// a (taskId, pushNotificationConfigId) pair (§4.7).
type GetTaskPushNotificationConfigParams struct {
	ID                       string `json:"id,omitempty"`
	TaskID                   string `json:"taskId,omitempty"`
	PushNotificationConfigID string `json:"pushNotificationConfigId,omitempty"`
}
