// Package push implements the Push Notifier (C3): a per-task webhook
// registry plus best-effort notification dispatch with retry, adapted from
// the teacher's pkg/push/service.go and generalized to the full
// Bearer → Basic → API Key auth priority order (§4.6).
package push

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/a2a-engine/pkg/a2a"
	"github.com/theapemachine/a2a-engine/pkg/errors"
)

// Notifier is a concurrent-safe mapping from taskId to
// PushNotificationConfig, plus fire-and-forget notification dispatch.
type Notifier struct {
	mu         sync.RWMutex
	configs    map[string]*a2a.TaskPushNotificationConfig
	httpClient *http.Client

	retryQueue chan notificationRequest
	retryCfg   *errors.RetryConfig
}

type notificationRequest struct {
	taskID string
	task   *a2a.Task
}

// New builds a Notifier whose outbound webhook calls use httpTimeout as the
// per-request deadline (router.agentCardPath's sibling config key
// pushNotifier.httpTimeout, §6).
func New(httpTimeout time.Duration) *Notifier {
	if httpTimeout <= 0 {
		httpTimeout = 10 * time.Second
	}

	n := &Notifier{
		configs:    make(map[string]*a2a.TaskPushNotificationConfig),
		httpClient: &http.Client{Timeout: httpTimeout},
		retryQueue: make(chan notificationRequest, 1000),
		retryCfg:   errors.DefaultRetryConfig(),
	}

	go n.retryWorker()

	return n
}

// SetConfig registers or replaces the push notification config for a task.
func (n *Notifier) SetConfig(cfg a2a.TaskPushNotificationConfig) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.configs[cfg.TaskID] = &cfg
}

// GetConfig retrieves the push notification config for a task.
func (n *Notifier) GetConfig(taskID string) (a2a.TaskPushNotificationConfig, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	cfg, ok := n.configs[taskID]
	if !ok {
		return a2a.TaskPushNotificationConfig{}, false
	}
	return *cfg, true
}

// ConfiguredTaskIDs returns every task id currently holding a push
// notification config, for internal/sweeper's retention scan.
func (n *Notifier) ConfiguredTaskIDs() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()

	ids := make([]string, 0, len(n.configs))
	for id := range n.configs {
		ids = append(ids, id)
	}
	return ids
}

// ClearConfig removes a task's push notification config, if any.
func (n *Notifier) ClearConfig(taskID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.configs, taskID)
}

// SendNotification fires a best-effort webhook POST of task to its
// registered config, if any. It never returns an error to the caller that
// should surface in a JSON-RPC result — failures are logged and queued for
// retry (§4.6, §7 "Notification failures").
func (n *Notifier) SendNotification(task *a2a.Task) {
	n.mu.RLock()
	cfg, ok := n.configs[task.ID]
	n.mu.RUnlock()

	if !ok {
		return
	}

	go func() {
		if err := n.deliver(cfg, task); err != nil {
			log.Error("push notification failed", "taskId", task.ID, "error", err)
			select {
			case n.retryQueue <- notificationRequest{taskID: task.ID, task: task}:
			default:
				log.Error("push retry queue full, dropping notification", "taskId", task.ID)
			}
		}
	}()
}

func (n *Notifier) deliver(cfg *a2a.TaskPushNotificationConfig, task *a2a.Task) error {
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, cfg.PushNotificationConfig.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	applyAuth(req, cfg.PushNotificationConfig.Authentication)

	if cfg.PushNotificationConfig.Token != nil {
		req.Header.Set("X-Task-Token", *cfg.PushNotificationConfig.Token)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return nil
}

// applyAuth sets the Authorization (or X-API-Key) header following the
// first supported scheme in priority order Bearer → Basic → API Key
// (§4.6), regardless of the order the schemes were listed in.
func applyAuth(req *http.Request, auth *a2a.AgentAuthentication) {
	if auth == nil || auth.Credentials == nil {
		return
	}
	creds := *auth.Credentials

	schemes := make(map[string]bool, len(auth.Schemes))
	for _, s := range auth.Schemes {
		schemes[strings.ToLower(s)] = true
	}

	switch {
	case schemes["bearer"]:
		req.Header.Set("Authorization", "Bearer "+creds)
	case schemes["basic"]:
		// Whether or not creds already contains a "user:pass" colon, it is
		// base64-encoded as-is (§4.6).
		req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(creds)))
	case schemes["apikey"] || schemes["api-key"] || schemes["api_key"]:
		req.Header.Set("X-API-Key", creds)
	}
}

func (n *Notifier) retryWorker() {
	for req := range n.retryQueue {
		err := errors.RetryWithBackoff(n.retryCfg, func() error {
			n.mu.RLock()
			cfg, ok := n.configs[req.taskID]
			n.mu.RUnlock()
			if !ok {
				return nil
			}
			return n.deliver(cfg, req.task)
		})
		if err != nil {
			log.Error("push notification retries exhausted", "taskId", req.taskID, "error", err)
		}
	}
}
