package reqctx

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/theapemachine/a2a-engine/pkg/a2a"
)

func TestBuild(t *testing.T) {
	Convey("Given a message/send call with no taskId or contextId", t, func() {
		params := a2a.MessageSendParams{Message: *a2a.NewTextMessage("user", "hello")}

		Convey("When the Request Context is built with no current task", func() {
			rc, err := Build(params, nil, nil)

			Convey("Then fresh UUIDs are generated for task and context", func() {
				So(err, ShouldBeNil)
				So(rc.TaskID, ShouldNotBeBlank)
				So(rc.ContextID, ShouldNotBeBlank)
				So(rc.Params.Message.TaskID, ShouldEqual, rc.TaskID)
				So(rc.Params.Message.ContextID, ShouldEqual, rc.ContextID)
			})
		})
	})

	Convey("Given a call pinned to a current task's id and context", t, func() {
		current := a2a.NewTask("t1", "c1", nil)
		params := a2a.MessageSendParams{
			Message: *a2a.NewTextMessage("user", "hello"),
			TaskID:  "t1", ContextID: "c1",
		}

		Convey("When the Request Context is built", func() {
			rc, err := Build(params, current, nil)

			Convey("Then it resolves to the current task's ids", func() {
				So(err, ShouldBeNil)
				So(rc.TaskID, ShouldEqual, "t1")
				So(rc.ContextID, ShouldEqual, "c1")
				So(rc.CurrentTask, ShouldEqual, current)
			})
		})
	})

	Convey("Given a call whose taskId conflicts with the current task", t, func() {
		current := a2a.NewTask("t1", "c1", nil)
		params := a2a.MessageSendParams{
			Message: *a2a.NewTextMessage("user", "hello"),
			TaskID:  "different-task",
		}

		Convey("When the Request Context is built", func() {
			_, err := Build(params, current, nil)

			Convey("Then it fails as InvalidParams", func() {
				So(err, ShouldNotBeNil)
				So(err.Code, ShouldEqual, -32602)
			})
		})
	})

	Convey("Given a call whose contextId conflicts with the current task", t, func() {
		current := a2a.NewTask("t1", "c1", nil)
		params := a2a.MessageSendParams{
			Message:   *a2a.NewTextMessage("user", "hello"),
			ContextID: "different-context",
		}

		Convey("When the Request Context is built", func() {
			_, err := Build(params, current, nil)

			Convey("Then it fails as InvalidParams", func() {
				So(err, ShouldNotBeNil)
				So(err.Code, ShouldEqual, -32602)
			})
		})
	})

	Convey("Given a message that already carries its own taskId and contextId", t, func() {
		msg := a2a.NewTextMessage("user", "hello")
		msg.TaskID = "preset-task"
		msg.ContextID = "preset-context"
		params := a2a.MessageSendParams{Message: *msg}

		Convey("When the Request Context is built", func() {
			rc, err := Build(params, nil, nil)

			Convey("Then the message's own ids are preserved, not overwritten", func() {
				So(err, ShouldBeNil)
				So(rc.Params.Message.TaskID, ShouldEqual, "preset-task")
				So(rc.Params.Message.ContextID, ShouldEqual, "preset-context")
			})
		})
	})
}
