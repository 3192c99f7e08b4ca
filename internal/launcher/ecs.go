package launcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/ecs/types"

	"git.home.luguber.info/inful/sitedeploy/internal/config"
	ferrors "git.home.luguber.info/inful/sitedeploy/internal/foundation/errors"
	"git.home.luguber.info/inful/sitedeploy/internal/logfields"
)

// ECSAPI is the subset of the ECS client used by ECSLauncher.
type ECSAPI interface {
	RunTask(ctx context.Context, params *ecs.RunTaskInput, optFns ...func(*ecs.Options)) (*ecs.RunTaskOutput, error)
	StopTask(ctx context.Context, params *ecs.StopTaskInput, optFns ...func(*ecs.Options)) (*ecs.StopTaskOutput, error)
	DescribeTasks(ctx context.Context, params *ecs.DescribeTasksInput, optFns ...func(*ecs.Options)) (*ecs.DescribeTasksOutput, error)
}

// ECSLauncher runs each deployment as one task of a fixed ECS task definition.
type ECSLauncher struct {
	client  ECSAPI
	cfg     config.ECSConfig
	maxWait time.Duration
}

// NewECSLauncher wraps an ECS client with the task template in cfg.
func NewECSLauncher(client ECSAPI, cfg config.ECSConfig) *ECSLauncher {
	return &ECSLauncher{client: client, cfg: cfg, maxWait: 2 * time.Hour}
}

func (l *ECSLauncher) Name() string { return "ecs" }

func (l *ECSLauncher) Launch(ctx context.Context, spec TaskSpec) (Handle, error) {
	env := spec.Environment()
	pairs := make([]types.KeyValuePair, 0, len(env))
	for _, k := range slices.Sorted(maps.Keys(env)) {
		pairs = append(pairs, types.KeyValuePair{Name: aws.String(k), Value: aws.String(env[k])})
	}

	out, err := l.client.RunTask(ctx, &ecs.RunTaskInput{
		Cluster:        aws.String(l.cfg.Cluster),
		TaskDefinition: aws.String(l.cfg.TaskDefinition),
		LaunchType:     types.LaunchType(l.cfg.LaunchType),
		Count:          aws.Int32(1),
		StartedBy:      aws.String("sitedeploy"),
		NetworkConfiguration: &types.NetworkConfiguration{
			AwsvpcConfiguration: &types.AwsVpcConfiguration{
				Subnets:        l.cfg.Subnets,
				SecurityGroups: l.cfg.SecurityGroups,
				AssignPublicIp: types.AssignPublicIp(l.cfg.AssignPublicIP),
			},
		},
		Overrides: &types.TaskOverride{
			ContainerOverrides: []types.ContainerOverride{{
				Name:        aws.String(l.cfg.ContainerName),
				Environment: pairs,
			}},
		},
	})
	if err != nil {
		return nil, classifyLaunchError(err, l.Name(), spec.ProjectID)
	}

	if len(out.Failures) > 0 {
		l.stopAll(out.Tasks, "launch reported failures")
		f := out.Failures[0]
		return nil, ferrors.LaunchError("task launcher rejected the task").
			WithContext("project_id", spec.ProjectID).
			WithContext("reason", aws.ToString(f.Reason)).
			WithContext("detail", aws.ToString(f.Detail)).
			WithContext("arn", aws.ToString(f.Arn)).
			Build()
	}
	if len(out.Tasks) != 1 {
		l.stopAll(out.Tasks, "unexpected task count")
		return nil, ferrors.LaunchError("task launcher started an unexpected number of tasks").
			WithContext("project_id", spec.ProjectID).
			WithContext("tasks", len(out.Tasks)).
			Build()
	}

	arn := aws.ToString(out.Tasks[0].TaskArn)
	slog.Info("Launched ECS task", logfields.ProjectID(spec.ProjectID), logfields.TaskID(arn))
	return &ecsHandle{launcher: l, arn: arn}, nil
}

// stopAll stops tasks that must not keep running after a failed launch.
func (l *ECSLauncher) stopAll(tasks []types.Task, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, t := range tasks {
		_, err := l.client.StopTask(ctx, &ecs.StopTaskInput{
			Cluster: aws.String(l.cfg.Cluster),
			Task:    t.TaskArn,
			Reason:  aws.String(reason),
		})
		if err != nil {
			slog.Warn("Failed to stop task after launch failure", logfields.TaskID(aws.ToString(t.TaskArn)), logfields.Error(err))
		}
	}
}

type ecsHandle struct {
	launcher *ECSLauncher
	arn      string
}

func (h *ecsHandle) ID() string       { return h.arn }
func (h *ecsHandle) Provider() string { return "ecs" }

func (h *ecsHandle) Wait(ctx context.Context) error {
	l := h.launcher
	input := &ecs.DescribeTasksInput{Cluster: aws.String(l.cfg.Cluster), Tasks: []string{h.arn}}

	waiter := ecs.NewTasksStoppedWaiter(l.client)
	out, err := waiter.WaitForOutput(ctx, input, l.maxWait)
	if err != nil {
		return ferrors.LaunchError("waiting for task to stop failed").
			WithCause(err).WithContext("task_id", h.arn).Build()
	}
	return taskOutcome(out, l.cfg.ContainerName, h.arn)
}

// taskOutcome inspects the build container's exit code.
func taskOutcome(out *ecs.DescribeTasksOutput, container, arn string) error {
	for _, t := range out.Tasks {
		for _, c := range t.Containers {
			if aws.ToString(c.Name) != container {
				continue
			}
			if c.ExitCode == nil {
				return ferrors.BuildError("build container stopped without an exit code").
					WithContext("task_id", arn).
					WithContext("reason", aws.ToString(t.StoppedReason)).
					Build()
			}
			if code := aws.ToInt32(c.ExitCode); code != 0 {
				return ferrors.BuildError(fmt.Sprintf("build container exited with status %d", code)).
					WithContext("task_id", arn).
					WithContext("exit_code", int(code)).
					Build()
			}
			return nil
		}
	}
	return ferrors.BuildError("build container not found in stopped task").
		WithContext("task_id", arn).Build()
}

// classifyLaunchError maps submission errors onto the launch taxonomy.
func classifyLaunchError(err error, provider, projectID string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ferrors.NetworkError("task launcher did not respond in time").
			WithCause(err).
			WithContext("launcher", provider).
			WithContext("project_id", projectID).
			Build()
	}
	return ferrors.LaunchError("task launch failed").
		WithCause(err).
		WithContext("launcher", provider).
		WithContext("project_id", projectID).
		Build()
}
