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
	"net/http"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/jarcoal/httpmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/talaka/disburse/config"
	"github.com/talaka/disburse/model"
)

func newEmitterTestConfig(redisAddr, sinkURL string) *config.Configuration {
	conf := newTestConfig(redisAddr)
	conf.Notification.Sink.Url = sinkURL
	conf.Notification.Sink.Headers = map[string]string{"X-Api-Key": "test-key"}
	return conf
}

func TestEmitterQueuesPaymentSucceeded(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("an error '%s' occurred when starting miniredis", err)
	}
	defer mr.Close()

	conf := newEmitterTestConfig(mr.Addr(), "http://sink.local/events")
	config.MockConfig(conf)
	emitter := NewEmitter(conf)

	ref := "BK-42"
	instruction := &model.PaymentInstruction{
		InstructionID: "pin_1",
		BatchID:       "bch_1",
		BeneficiaryID: "ben_1",
		Amount:        decimal.NewFromInt(900),
		Currency:      "KES",
		Status:        model.StatusSuccess,
		ProviderRef:   &ref,
	}
	batch := &model.PaymentBatch{BatchID: "bch_1", ProgramID: "prg_1", CycleID: "cyc_1", TotalCount: 2, SuccessCount: 1}

	err = emitter.PaymentSucceeded(context.Background(), instruction, batch)
	assert.NoError(t, err)
	assert.NotEmpty(t, mr.Keys())

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: mr.Addr()})
	info, err := inspector.GetTaskInfo(conf.Queue.NotificationQueue, "payment.succeeded:pin_1")
	assert.NoError(t, err)

	var event NewNotification
	assert.NoError(t, json.Unmarshal(info.Payload, &event))
	assert.Equal(t, EventPaymentSucceeded, event.Event)

	queued, err := json.Marshal(event.Payload)
	assert.NoError(t, err)
	var payload PaymentSucceededPayload
	assert.NoError(t, json.Unmarshal(queued, &payload))
	assert.Equal(t, "pin_1", payload.InstructionID)
	assert.Equal(t, "bch_1", payload.BatchID)
	assert.Equal(t, "prg_1", payload.ProgramID)
	assert.Equal(t, "cyc_1", payload.CycleID)
	assert.Equal(t, "ben_1", payload.BeneficiaryID)
	assert.Equal(t, "900", payload.Amount)
	assert.Equal(t, "KES", payload.Currency)

	// Re-emitting from a redelivered status message collapses into the
	// already-queued task.
	err = emitter.PaymentSucceeded(context.Background(), instruction, batch)
	assert.NoError(t, err)
}

func TestEmitterSkipsWithoutSink(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("an error '%s' occurred when starting miniredis", err)
	}
	defer mr.Close()

	conf := newTestConfig(mr.Addr())
	config.MockConfig(conf)
	emitter := NewEmitter(conf)

	batch := &model.PaymentBatch{BatchID: "bch_1", TotalCount: 2, SuccessCount: 1, FailedCount: 1, Status: model.BatchStatusCompleted}
	err = emitter.BatchCompleted(context.Background(), batch)
	assert.NoError(t, err)
	assert.Empty(t, mr.Keys())
}

func TestProcessNotificationDeliversToSink(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	config.MockConfig(newEmitterTestConfig("localhost:6379", "http://sink.local/events"))

	var received NewNotification
	httpmock.RegisterResponder("POST", "http://sink.local/events",
		func(req *http.Request) (*http.Response, error) {
			if err := json.NewDecoder(req.Body).Decode(&received); err != nil {
				return httpmock.NewStringResponse(400, `{}`), nil
			}
			return httpmock.NewStringResponse(200, `{"ok":true}`), nil
		})

	event := NewNotification{
		Event: EventBatchCompleted,
		Payload: BatchCompletedPayload{
			BatchID:      "bch_1",
			ProgramID:    "prg_1",
			CycleID:      "cyc_1",
			TotalCount:   2,
			SuccessCount: 1,
			FailedCount:  1,
		},
	}
	payload, err := json.Marshal(event)
	assert.NoError(t, err)

	task := asynq.NewTask("new:notification", payload)
	err = ProcessNotification(context.Background(), task)
	assert.NoError(t, err)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
	assert.Equal(t, EventBatchCompleted, received.Event)
}

func TestProcessNotificationSinkFailure(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	config.MockConfig(newEmitterTestConfig("localhost:6379", "http://sink.local/events"))
	httpmock.RegisterResponder("POST", "http://sink.local/events",
		httpmock.NewStringResponder(500, `{"error":"boom"}`))

	event := NewNotification{Event: EventPaymentSucceeded, Payload: PaymentSucceededPayload{InstructionID: "pin_1"}}
	payload, err := json.Marshal(event)
	assert.NoError(t, err)

	task := asynq.NewTask("new:notification", payload)
	err = ProcessNotification(context.Background(), task)
	assert.Error(t, err)
}
