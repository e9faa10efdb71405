package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-costing/jobs"
)

type recordingClient struct {
	tasks []*asynq.Task
}

func (c *recordingClient) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	c.tasks = append(c.tasks, task)
	return &asynq.TaskInfo{ID: "t1", Type: task.Type(), Queue: jobs.QueueDefault}, nil
}

type stubInspector struct {
	infos map[string]*asynq.QueueInfo
	err   error
}

func (s stubInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.infos[queue], nil
}

func (s stubInspector) ListScheduledTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error) {
	return []*asynq.TaskInfo{{ID: "s1", Queue: queue, Type: jobs.TaskLedgerIntegrity}}, nil
}

func TestTriggerBuildsPayloads(t *testing.T) {
	client := &recordingClient{}
	c := NewJobsCLIWith(client, nil)
	ctx := context.Background()

	info, err := c.Trigger(ctx, jobs.TaskInventoryReconcile, TriggerOptions{ItemID: 3, WarehouseID: 1})
	require.NoError(t, err)
	require.Equal(t, jobs.TaskInventoryReconcile, info.Type)

	var payload jobs.ReconcilePayload
	require.NoError(t, json.Unmarshal(client.tasks[0].Payload(), &payload))
	require.EqualValues(t, 3, payload.ItemID)
	require.EqualValues(t, 1, payload.WarehouseID)

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err = c.Trigger(ctx, jobs.TaskLedgerIntegrity, TriggerOptions{From: &from})
	require.NoError(t, err)
	var integrity jobs.LedgerIntegrityPayload
	require.NoError(t, json.Unmarshal(client.tasks[1].Payload(), &integrity))
	require.NotNil(t, integrity.From)
	require.True(t, integrity.From.Equal(from))
	require.Nil(t, integrity.To)

	_, err = c.Trigger(ctx, jobs.TaskIdempotencyPurge, TriggerOptions{Retention: time.Hour})
	require.NoError(t, err)
	require.Len(t, client.tasks, 3)
}

func TestTriggerRejectsBadInput(t *testing.T) {
	c := NewJobsCLIWith(&recordingClient{}, nil)
	_, err := c.Trigger(context.Background(), "analytics:warmup", TriggerOptions{})
	require.ErrorContains(t, err, "unsupported job")

	_, err = c.Trigger(context.Background(), jobs.TaskInventoryReconcile, TriggerOptions{ItemID: 3})
	require.Error(t, err)

	var nilCLI *JobsCLI
	_, err = nilCLI.Trigger(context.Background(), jobs.TaskLedgerIntegrity, TriggerOptions{})
	require.Error(t, err)
}

func TestInspectQueuesAndWriteStats(t *testing.T) {
	c := NewJobsCLIWith(nil, stubInspector{infos: map[string]*asynq.QueueInfo{
		jobs.QueueDefault:     {Pending: 2, Retry: 1},
		jobs.QueueMaintenance: {Scheduled: 1},
	}})
	stats, err := c.InspectQueues(context.Background())
	require.NoError(t, err)
	require.Len(t, stats, 2)
	require.Equal(t, 2, stats[0].Pending)
	require.Equal(t, 1, stats[1].Scheduled)

	var table bytes.Buffer
	require.NoError(t, WriteStats(&table, stats, false))
	lines := strings.Split(strings.TrimSpace(table.String()), "\n")
	require.Len(t, lines, 3)
	require.True(t, strings.HasPrefix(lines[0], "QUEUE"))
	require.Contains(t, lines[2], jobs.QueueMaintenance)

	var out bytes.Buffer
	require.NoError(t, WriteStats(&out, stats, true))
	var decoded []QueueStats
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	require.Equal(t, stats, decoded)

	scheduled, err := c.ListScheduled(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, scheduled, 1)
}

func TestInspectQueuesPropagatesErrors(t *testing.T) {
	c := NewJobsCLIWith(nil, stubInspector{err: errors.New("redis down")})
	_, err := c.InspectQueues(context.Background())
	require.ErrorContains(t, err, "redis down")
}
