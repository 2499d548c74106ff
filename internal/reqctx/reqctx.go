// Package reqctx builds the Request Context (C8): the normalized view of
// an incoming message/send or message/stream call handed to an Agent
// Executor, per §4.8. Grounded on the teacher's pkg/ai.TaskManager
// selectTask, which performed the same existing-task lookup inline —
// pulled out here into its own normalization step so the Router (C9) can
// share it across message/send and message/stream.
package reqctx

import (
	"github.com/google/uuid"

	"github.com/theapemachine/a2a-engine/pkg/a2a"
	rpcerrors "github.com/theapemachine/a2a-engine/pkg/errors"
)

// Build normalizes params against an optional current Task snapshot
// (nil if none exists yet), generating UUID v4 ids for any of
// taskId/contextId/message id left unset, per §4.7's "ID generation" and
// §4.8's invariants:
//   - a provided taskId must match currentTask's id, or InvalidParams.
//   - a provided contextId must match currentTask's contextId, or InvalidParams.
//   - the incoming Message's own taskId/contextId are preserved if set,
//     otherwise filled in from the resolved ids.
func Build(
	params a2a.MessageSendParams, currentTask *a2a.Task, callContext any,
) (*a2a.RequestContext, *rpcerrors.RpcError) {
	taskID := params.TaskID
	contextID := params.ContextID

	if currentTask != nil {
		if taskID != "" && taskID != currentTask.ID {
			return nil, rpcerrors.ErrInvalidParams.WithMessagef(
				"taskId %s does not match current task %s", taskID, currentTask.ID,
			)
		}
		if contextID != "" && contextID != currentTask.ContextID {
			return nil, rpcerrors.ErrInvalidParams.WithMessagef(
				"contextId %s does not match current task's context %s", contextID, currentTask.ContextID,
			)
		}
		taskID = currentTask.ID
		contextID = currentTask.ContextID
	}

	if taskID == "" {
		taskID = uuid.New().String()
	}
	if contextID == "" {
		contextID = uuid.New().String()
	}

	if params.Message.ID == "" {
		params.Message.ID = uuid.New().String()
	}
	if params.Message.TaskID == "" {
		params.Message.TaskID = taskID
	}
	if params.Message.ContextID == "" {
		params.Message.ContextID = contextID
	}

	params.TaskID = taskID
	params.ContextID = contextID

	return &a2a.RequestContext{
		Params:      params,
		TaskID:      taskID,
		ContextID:   contextID,
		CurrentTask: currentTask,
		CallContext: callContext,
	}, nil
}
