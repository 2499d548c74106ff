package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/theapemachine/a2a-engine/internal/echoexecutor"
	"github.com/theapemachine/a2a-engine/internal/push"
	"github.com/theapemachine/a2a-engine/internal/queuemanager"
	"github.com/theapemachine/a2a-engine/internal/server"
	"github.com/theapemachine/a2a-engine/internal/sweeper"
	"github.com/theapemachine/a2a-engine/internal/taskmanager"
	"github.com/theapemachine/a2a-engine/internal/taskstore"
	"github.com/theapemachine/a2a-engine/internal/taskstore/memstore"
	"github.com/theapemachine/a2a-engine/internal/taskstore/redisstore"
	"github.com/theapemachine/a2a-engine/internal/taskstore/sqlstore"
	"github.com/theapemachine/a2a-engine/internal/telemetry"
	"github.com/theapemachine/a2a-engine/internal/transport"
	"github.com/theapemachine/a2a-engine/pkg/a2a"
	rpcerrors "github.com/theapemachine/a2a-engine/pkg/errors"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the A2A JSON-RPC engine",
	Long:  longServe,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	store, err := buildTaskStore()
	if err != nil {
		return fmt.Errorf("serve: build task store: %w", err)
	}

	tel, err := telemetry.Init(context.Background(), telemetry.Config{
		Enabled:  viper.GetBool("telemetry.enabled"),
		Exporter: viper.GetString("telemetry.exporter"),
		Endpoint: viper.GetString("telemetry.endpoint"),
	})
	if err != nil {
		return fmt.Errorf("serve: init telemetry: %w", err)
	}

	taskManager := taskmanager.New(taskmanager.WithStore(store))
	queues := queuemanager.New(viper.GetInt("eventQueue.maxSize"))
	notifier := push.New(viper.GetDuration("pushNotifier.httpTimeout"))

	sweep := sweeper.New(sweeper.Config{
		Schedule:            viper.GetString("sweeper.schedule"),
		QueueIdleWindow:     viper.GetDuration("sweeper.queueIdleWindow"),
		PushConfigRetention: viper.GetDuration("sweeper.pushConfigRetention"),
	}, queues, notifier, taskManager)
	if err := sweep.Start(); err != nil {
		return fmt.Errorf("serve: start sweeper: %w", err)
	}

	router := server.New(echoexecutor.New(), taskManager, queues, notifier, tel, viper.GetDuration("consumer.pollTimeout"))
	card := a2a.NewAgentCardFromConfig("default")
	srv := transport.New(router, card)
	srv.Mount()

	addr := fmt.Sprintf("%s:%d", viper.GetString("server.host"), viper.GetInt("server.port"))

	listenErr := make(chan error, 1)
	go func() {
		log.Info("a2a-engine listening", "addr", addr, "agent", card.Name)
		if lerr := srv.Listen(addr); lerr != nil {
			listenErr <- lerr
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case lerr := <-listenErr:
		return fmt.Errorf("serve: listen %s: %w", addr, lerr)
	case <-stop:
		log.Info("shutting down a2a-engine")
	}

	return shutdown(sweep, tel)
}

// shutdown stops the sweeper and flushes telemetry. Sweeper.Stop reports no
// error, so the only failure returned is a telemetry shutdown error, wrapped
// via pkg/errors.NewError (the teacher's multi-cause error type).
func shutdown(sweep *sweeper.Sweeper, tel *telemetry.Provider) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sweep.Stop(ctx)

	if err := tel.Shutdown(ctx); err != nil {
		return rpcerrors.NewError("a2a-engine shutdown", err)
	}
	return nil
}

// buildTaskStore selects a Task Store backend from taskStore.backend
// (memory, redis, sqlite), defaulting to memory when unset (§2's
// "pluggable persistence").
func buildTaskStore() (taskstore.Store, error) {
	switch viper.GetString("taskStore.backend") {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: viper.GetString("taskStore.redis.addr")})
		return redisstore.New(client, viper.GetString("taskStore.redis.prefix")), nil
	case "sqlite":
		return sqlstore.Open(viper.GetString("taskStore.sqlite.path"))
	default:
		return memstore.New(), nil
	}
}

var longServe = `
Serve the A2A JSON-RPC engine: message/send, message/stream, tasks/get,
tasks/cancel, tasks/resubscribe, and tasks/pushNotificationConfig/{set,get}
over HTTP, backed by a pluggable Task Store and driven by an Agent
Executor.

The binary defaults to a bundled echo executor so the engine can be
smoke-tested standalone; embed this engine and supply your own
a2a.Executor for real workloads.
`
