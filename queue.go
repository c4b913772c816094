/*
Copyright 2024 Talaka Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package disburse

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log"

	"github.com/talaka/disburse/config"
	redis_db "github.com/talaka/disburse/internal/redis-db"

	"github.com/talaka/disburse/model"

	"github.com/hibiken/asynq"
)

// Queue carries the engine's three message legs over asynq: outcome requests
// to the provider, status messages back from it, and notification events to
// the sink.
type Queue struct {
	Client    *asynq.Client
	Inspector *asynq.Inspector
}

// NewQueue initializes a new Queue instance with the provided configuration.
func NewQueue(conf *config.Configuration) *Queue {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		log.Fatalf("Error parsing Redis URL: %v", err)
	}

	queueOptions := asynq.RedisClientOpt{Addr: redisOption.Addr, Password: redisOption.Password, DB: redisOption.DB, TLSConfig: redisOption.TLSConfig}
	client := asynq.NewClient(queueOptions)
	inspector := asynq.NewInspector(queueOptions)
	return &Queue{
		Client:    client,
		Inspector: inspector,
	}
}

// EnqueueOutcomeRequest publishes one outcome request to the provider's
// instruction queues. The task ID is the instruction ID, so re-submitting the
// same instruction cannot double-publish it. Requests are spread across the
// sharded instruction queues by hashing the instruction ID.
func (q *Queue) EnqueueOutcomeRequest(ctx context.Context, req *model.OutcomeRequest) error {
	ctx, span := tracer.Start(ctx, "Adding outcome request to redis queue")
	defer span.End()

	cfg, err := config.Fetch()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}

	queueIndex := hashShardKey(req.InstructionID) % cfg.Queue.NumberOfQueues
	queueName := fmt.Sprintf("%s_%d", cfg.Queue.InstructionQueue, queueIndex+1)

	taskOptions := []asynq.Option{
		asynq.TaskID(req.InstructionID),
		asynq.Queue(queueName),
		asynq.MaxRetry(cfg.Queue.MaxRetryAttempts),
	}
	task := asynq.NewTask(queueName, payload, taskOptions...)
	info, err := q.Client.EnqueueContext(ctx, task)
	if err != nil {
		log.Println(err, info)
		return err
	}
	log.Printf(" [*] Successfully enqueued outcome request: %+v", req.InstructionID)
	return nil
}

// EnqueueStatusMessage publishes a provider status message onto the status
// queue. No task ID is set here: the channel is at-least-once by contract and
// the ingestion handler owns deduplication.
func (q *Queue) EnqueueStatusMessage(ctx context.Context, msg *model.StatusMessage) error {
	ctx, span := tracer.Start(ctx, "Adding status message to redis queue")
	defer span.End()

	cfg, err := config.Fetch()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	taskOptions := []asynq.Option{
		asynq.Queue(cfg.Queue.StatusQueue),
		asynq.MaxRetry(cfg.Queue.MaxRetryAttempts),
	}
	task := asynq.NewTask(cfg.Queue.StatusQueue, payload, taskOptions...)
	info, err := q.Client.EnqueueContext(ctx, task)
	if err != nil {
		log.Println(err, info)
		return err
	}
	log.Printf(" [*] Successfully enqueued status message: %+v", msg.InstructionID)
	return nil
}

// hashShardKey returns a consistent hash value for a shard key.
func hashShardKey(key string) int {
	hasher := fnv.New32a()
	_, _ = hasher.Write([]byte(key))
	return int(hasher.Sum32())
}

// GetOutcomeRequestFromQueue retrieves a pending outcome request by its
// instruction ID, scanning each instruction queue shard.
func (q *Queue) GetOutcomeRequestFromQueue(instructionID string) (*model.OutcomeRequest, error) {
	cfg, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	for i := 1; i <= cfg.Queue.NumberOfQueues; i++ {
		queueName := fmt.Sprintf("%s_%d", cfg.Queue.InstructionQueue, i)
		task, err := q.Inspector.GetTaskInfo(queueName, instructionID)
		if err == nil && task != nil {
			var req model.OutcomeRequest
			if err := json.Unmarshal(task.Payload, &req); err != nil {
				return nil, err
			}
			return &req, nil
		}
	}
	return nil, nil // Return nil if the request is not found in any queue
}
