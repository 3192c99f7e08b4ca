// Package agent runs deployment tasks queued on the NATS task stream.
//
// Each message carries a launcher.TaskMessage. The agent hands the spec to a
// local launcher (normally a ProcessLauncher, giving every task its own child
// process and workspace), waits for it to finish and records the outcome in the
// shared status bucket before acknowledging the message.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/sitedeploy/internal/config"
	"git.home.luguber.info/inful/sitedeploy/internal/launcher"
	"git.home.luguber.info/inful/sitedeploy/internal/logfields"
	"git.home.luguber.info/inful/sitedeploy/internal/metrics"
	"git.home.luguber.info/inful/sitedeploy/internal/project"
)

// Options configures an Agent.
type Options struct {
	Launcher    launcher.Launcher
	Statuses    launcher.StatusStore
	Recorder    metrics.Recorder
	Concurrency int
	Logger      *slog.Logger
}

// Agent executes queued tasks with bounded concurrency.
type Agent struct {
	launcher launcher.Launcher
	statuses launcher.StatusStore
	recorder metrics.Recorder
	logger   *slog.Logger
	sem      chan struct{}
	wg       sync.WaitGroup
	now      func() time.Time
}

func New(opts Options) (*Agent, error) {
	if opts.Launcher == nil {
		return nil, errors.New("agent requires a launcher")
	}
	if opts.Statuses == nil {
		return nil, errors.New("agent requires a status store")
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.NoopRecorder{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Agent{
		launcher: opts.Launcher,
		statuses: opts.Statuses,
		recorder: opts.Recorder,
		logger:   opts.Logger,
		sem:      make(chan struct{}, opts.Concurrency),
		now:      time.Now,
	}, nil
}

// EnsureConsumer creates or updates the durable pull consumer for the task subject.
func EnsureConsumer(ctx context.Context, js jetstream.JetStream, nc config.NATSConfig, ac config.AgentConfig) (jetstream.Consumer, error) {
	consumer, err := js.CreateOrUpdateConsumer(ctx, nc.Stream, jetstream.ConsumerConfig{
		Durable:       ac.Durable,
		FilterSubject: nc.Subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       ac.AckWait,
		MaxAckPending: ac.Concurrency,
		MaxDeliver:    3,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer %s: %w", ac.Durable, err)
	}
	return consumer, nil
}

// Run consumes until ctx is cancelled, then waits for in-flight tasks.
func (a *Agent) Run(ctx context.Context, consumer jetstream.Consumer) error {
	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		select {
		case a.sem <- struct{}{}:
		case <-ctx.Done():
			_ = msg.Nak()
			return
		}
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			defer func() { <-a.sem }()
			a.handle(ctx, msg)
		}()
	}, jetstream.PullMaxMessages(cap(a.sem)))
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	a.logger.Info("Agent consuming tasks", slog.Int("concurrency", cap(a.sem)))
	<-ctx.Done()
	cc.Stop()
	a.wg.Wait()
	a.logger.Info("Agent stopped")
	return nil
}

// handle runs one task message to completion.
func (a *Agent) handle(ctx context.Context, msg jetstream.Msg) {
	var task launcher.TaskMessage
	if err := json.Unmarshal(msg.Data(), &task); err != nil || task.TaskID == "" {
		a.logger.Error("Discarding malformed task message", logfields.Error(err))
		a.recorder.IncAgentTask(metrics.ResultFailed)
		_ = msg.Term()
		return
	}
	if err := project.Validate(task.Spec.ProjectID); err != nil {
		a.logger.Error("Discarding task with invalid project id", logfields.TaskID(task.TaskID), logfields.Error(err))
		a.finish(ctx, task, err)
		_ = msg.Term()
		return
	}

	log := a.logger.With(logfields.TaskID(task.TaskID), logfields.ProjectID(task.Spec.ProjectID))
	a.setStatus(ctx, task, launcher.StateRunning, "")
	log.Info("Running deployment task")

	start := a.now()
	h, err := a.launcher.Launch(ctx, task.Spec)
	if err == nil {
		err = h.Wait(ctx)
	}
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		// Shutting down; let another agent pick it up.
		_ = msg.Nak()
		return
	}

	a.finish(ctx, task, err)
	if err != nil {
		log.Warn("Deployment task failed", logfields.Duration(a.now().Sub(start)), logfields.Error(err))
	} else {
		log.Info("Deployment task succeeded", logfields.Duration(a.now().Sub(start)))
	}
	_ = msg.Ack()
}

func (a *Agent) finish(ctx context.Context, task launcher.TaskMessage, err error) {
	a.recorder.IncAgentTask(metrics.ResultFor(err))
	if err != nil {
		a.setStatus(ctx, task, launcher.StateFailed, err.Error())
		return
	}
	a.setStatus(ctx, task, launcher.StateSucceeded, "")
}

func (a *Agent) setStatus(ctx context.Context, task launcher.TaskMessage, state launcher.TaskState, msg string) {
	status := launcher.TaskStatus{
		State:     state,
		ProjectID: task.Spec.ProjectID,
		Error:     msg,
		UpdatedAt: a.now().UTC(),
	}
	// Status writes outlive a cancelled run context.
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := a.statuses.SetStatus(sctx, task.TaskID, status); err != nil {
		a.logger.Warn("Failed to record task status", logfields.TaskID(task.TaskID), logfields.Error(err))
	}
}
