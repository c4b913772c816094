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
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/talaka/disburse/config"
	redis_db "github.com/talaka/disburse/internal/redis-db"
	"github.com/talaka/disburse/internal/request"
	"github.com/talaka/disburse/model"
)

const (
	// EventPaymentSucceeded fires once per instruction that transitions
	// PENDING -> SUCCESS.
	EventPaymentSucceeded = "payment.succeeded"
	// EventBatchCompleted fires once per batch when its last instruction
	// reaches a terminal status.
	EventBatchCompleted = "payment.batch.completed"
)

// NewNotification is the envelope delivered to the downstream sink.
type NewNotification struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"data"`
}

// PaymentSucceededPayload is the data attached to a payment.succeeded event.
// It carries the batch's program and cycle alongside the instruction so the
// sink can route the event without a lookup.
type PaymentSucceededPayload struct {
	InstructionID string  `json:"instructionId"`
	BatchID       string  `json:"batchId"`
	ProgramID     string  `json:"programId"`
	CycleID       string  `json:"cycleId"`
	BeneficiaryID string  `json:"beneficiaryId"`
	Amount        string  `json:"amount"`
	Currency      string  `json:"currency"`
	ProviderRef   *string `json:"providerRef"`
}

// BatchCompletedPayload is the data attached to a payment.batch.completed
// event.
type BatchCompletedPayload struct {
	BatchID      string `json:"batchId"`
	ProgramID    string `json:"programId"`
	CycleID      string `json:"cycleId"`
	TotalCount   int    `json:"totalCount"`
	SuccessCount int    `json:"successCount"`
	FailedCount  int    `json:"failedCount"`
}

// NotificationEmitter publishes the engine's business events. Emission is
// best-effort from the caller's point of view: reconciliation logs emitter
// errors but never lets them undo or block a persisted transition.
type NotificationEmitter interface {
	PaymentSucceeded(ctx context.Context, instruction *model.PaymentInstruction, batch *model.PaymentBatch) error
	BatchCompleted(ctx context.Context, batch *model.PaymentBatch) error
}

// Emitter queues notification events on the notification queue for async
// delivery by the workers. Each event carries a deterministic task ID, so a
// redelivered status message that re-triggers the same event collapses into
// the already-queued task instead of producing a duplicate.
type Emitter struct {
	client *asynq.Client
}

// NewEmitter initializes an Emitter from the loaded configuration.
func NewEmitter(conf *config.Configuration) *Emitter {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		log.Fatalf("Error parsing Redis URL: %v", err)
	}
	client := asynq.NewClient(asynq.RedisClientOpt{Addr: redisOption.Addr, Password: redisOption.Password, DB: redisOption.DB, TLSConfig: redisOption.TLSConfig})
	return &Emitter{client: client}
}

// PaymentSucceeded publishes a payment.succeeded event for the instruction.
func (e *Emitter) PaymentSucceeded(ctx context.Context, instruction *model.PaymentInstruction, batch *model.PaymentBatch) error {
	payload := PaymentSucceededPayload{
		InstructionID: instruction.InstructionID,
		BatchID:       instruction.BatchID,
		ProgramID:     batch.ProgramID,
		CycleID:       batch.CycleID,
		BeneficiaryID: instruction.BeneficiaryID,
		Amount:        instruction.Amount.String(),
		Currency:      instruction.Currency,
		ProviderRef:   instruction.ProviderRef,
	}
	taskID := fmt.Sprintf("%s:%s", EventPaymentSucceeded, instruction.InstructionID)
	return e.emit(ctx, taskID, NewNotification{Event: EventPaymentSucceeded, Payload: payload})
}

// BatchCompleted publishes a payment.batch.completed event for the batch.
func (e *Emitter) BatchCompleted(ctx context.Context, batch *model.PaymentBatch) error {
	payload := BatchCompletedPayload{
		BatchID:      batch.BatchID,
		ProgramID:    batch.ProgramID,
		CycleID:      batch.CycleID,
		TotalCount:   batch.TotalCount,
		SuccessCount: batch.SuccessCount,
		FailedCount:  batch.FailedCount,
	}
	taskID := fmt.Sprintf("%s:%s", EventBatchCompleted, batch.BatchID)
	return e.emit(ctx, taskID, NewNotification{Event: EventBatchCompleted, Payload: payload})
}

func (e *Emitter) emit(ctx context.Context, taskID string, event NewNotification) error {
	conf, err := config.Fetch()
	if err != nil {
		return err
	}
	if conf.Notification.Sink.Url == "" {
		logrus.Debugf("notification sink not configured, dropping %s", event.Event)
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	taskOptions := []asynq.Option{
		asynq.TaskID(taskID),
		asynq.Queue(conf.Queue.NotificationQueue),
		asynq.MaxRetry(conf.Queue.MaxRetryAttempts),
	}
	task := asynq.NewTask(conf.Queue.NotificationQueue, payload, taskOptions...)
	info, err := e.client.EnqueueContext(ctx, task)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			logrus.Debugf("notification %s already queued", taskID)
			return nil
		}
		return err
	}
	logrus.Infof("queued notification %s on %s", event.Event, info.Queue)
	return nil
}

// ProcessNotification is the asynq handler draining the notification queue.
// Delivery failures return an error so asynq redelivers with backoff.
func ProcessNotification(ctx context.Context, task *asynq.Task) error {
	var event NewNotification
	if err := json.Unmarshal(task.Payload(), &event); err != nil {
		logrus.Errorf("unable to decode notification payload: %v", err)
		return err
	}
	if err := processHTTP(ctx, event); err != nil {
		logrus.Errorf("failed to deliver %s notification: %v", event.Event, err)
		return err
	}
	return nil
}

func processHTTP(ctx context.Context, event NewNotification) error {
	conf, err := config.Fetch()
	if err != nil {
		return err
	}

	body, err := request.ToJsonReq(&event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, conf.Notification.Sink.Url, body)
	if err != nil {
		return err
	}
	for key, value := range conf.Notification.Sink.Headers {
		req.Header.Set(key, value)
	}

	var response map[string]interface{}
	resp, err := request.Call(req, &response)
	if err != nil && resp == nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("notification sink returned %d for %s", resp.StatusCode, event.Event)
	}
	logrus.Infof("delivered %s notification, sink responded %d", event.Event, resp.StatusCode)
	return nil
}
