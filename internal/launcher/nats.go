package launcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/sitedeploy/internal/config"
	ferrors "git.home.luguber.info/inful/sitedeploy/internal/foundation/errors"
	"git.home.luguber.info/inful/sitedeploy/internal/logfields"
)

// TaskMessage is the payload published for every queued deployment.
type TaskMessage struct {
	TaskID string   `json:"task_id"`
	Spec   TaskSpec `json:"spec"`
}

// NATSClient owns the connection, the task stream and the status bucket.
type NATSClient struct {
	conn     *nats.Conn
	js       jetstream.JetStream
	cfg      config.NATSConfig
	statuses *KVStatusStore
}

// NewNATSClient connects and makes sure the task stream and status bucket exist.
func NewNATSClient(ctx context.Context, cfg config.NATSConfig) (*NATSClient, error) {
	conn, err := nats.Connect(cfg.URL, nats.Name("sitedeploy"))
	if err != nil {
		return nil, ferrors.NetworkError("failed to connect to NATS").
			WithCause(err).WithContext("url", cfg.URL).Build()
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	client := &NATSClient{conn: conn, js: js, cfg: cfg}
	if err := client.ensureStream(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	if err := client.initStatusBucket(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	slog.Info("NATS client initialized",
		logfields.URL(cfg.URL),
		logfields.Stream(cfg.Stream),
		slog.String("subject", cfg.Subject),
		slog.String("status_bucket", cfg.StatusBucket))
	return client, nil
}

func (c *NATSClient) ensureStream(ctx context.Context) error {
	_, err := c.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        c.cfg.Stream,
		Description: "Queued site deployments",
		Subjects:    []string{c.cfg.Subject},
		Retention:   jetstream.WorkQueuePolicy,
		Duplicates:  2 * time.Minute,
	})
	if err != nil {
		return fmt.Errorf("failed to ensure stream %s: %w", c.cfg.Stream, err)
	}
	return nil
}

func (c *NATSClient) initStatusBucket(ctx context.Context) error {
	kv, err := c.js.KeyValue(ctx, c.cfg.StatusBucket)
	if err == nil {
		c.statuses = NewKVStatusStore(kv)
		return nil
	}

	kv, err = c.js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      c.cfg.StatusBucket,
		Description: "Deployment task status",
		History:     1,
		TTL:         7 * 24 * time.Hour,
	})
	if err != nil {
		return fmt.Errorf("failed to create status bucket: %w", err)
	}
	c.statuses = NewKVStatusStore(kv)
	slog.Info("Created status bucket", slog.String("bucket", c.cfg.StatusBucket))
	return nil
}

func (c *NATSClient) JetStream() jetstream.JetStream { return c.js }
func (c *NATSClient) Statuses() *KVStatusStore       { return c.statuses }
func (c *NATSClient) Config() config.NATSConfig      { return c.cfg }

func (c *NATSClient) Close() error {
	if c.conn != nil {
		c.conn.Close()
	}
	return nil
}

// publisher is the subset of jetstream.JetStream used by NATSLauncher.
type publisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// NATSLauncher queues deployments on a JetStream subject for an agent to run.
type NATSLauncher struct {
	pub      publisher
	subject  string
	statuses StatusStore
	poll     time.Duration
	newID    func() string
}

// NewNATSLauncher builds a launcher over an established client.
func NewNATSLauncher(client *NATSClient) *NATSLauncher {
	return newNATSLauncher(client.JetStream(), client.Config().Subject, client.Statuses())
}

func newNATSLauncher(pub publisher, subject string, statuses StatusStore) *NATSLauncher {
	return &NATSLauncher{
		pub:      pub,
		subject:  subject,
		statuses: statuses,
		poll:     2 * time.Second,
		newID:    uuid.NewString,
	}
}

func (l *NATSLauncher) Name() string { return "nats" }

// Launch returns once the stream has acknowledged the task.
func (l *NATSLauncher) Launch(ctx context.Context, spec TaskSpec) (Handle, error) {
	taskID := l.newID()
	payload, err := json.Marshal(TaskMessage{TaskID: taskID, Spec: spec})
	if err != nil {
		return nil, ferrors.InternalError("failed to encode task").WithCause(err).Build()
	}

	queued := TaskStatus{State: StateQueued, ProjectID: spec.ProjectID, UpdatedAt: time.Now().UTC()}
	if err := l.statuses.SetStatus(ctx, taskID, queued); err != nil {
		return nil, classifyLaunchError(err, l.Name(), spec.ProjectID)
	}

	ack, err := l.pub.Publish(ctx, l.subject, payload, jetstream.WithMsgID(taskID))
	if err != nil {
		return nil, classifyLaunchError(err, l.Name(), spec.ProjectID)
	}
	if ack.Duplicate {
		return nil, ferrors.LaunchError("task was already queued").
			WithContext("task_id", taskID).Build()
	}

	slog.Info("Queued deployment task",
		logfields.ProjectID(spec.ProjectID),
		logfields.TaskID(taskID),
		logfields.Stream(ack.Stream),
		slog.Uint64("sequence", ack.Sequence))
	return &natsHandle{id: taskID, statuses: l.statuses, poll: l.poll}, nil
}

type natsHandle struct {
	id       string
	statuses StatusStore
	poll     time.Duration
}

func (h *natsHandle) ID() string       { return h.id }
func (h *natsHandle) Provider() string { return "nats" }

func (h *natsHandle) Wait(ctx context.Context) error {
	return pollStatus(ctx, h.statuses, h.id, h.poll)
}
