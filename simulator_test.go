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
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/talaka/disburse/model"
)

func outcomeRequestMock() *model.OutcomeRequest {
	return &model.OutcomeRequest{
		InstructionID: "pin_sim_1",
		ProgramID:     "prg_1",
		BeneficiaryID: "ben_1",
		Amount:        decimal.NewFromInt(1500),
		CurrencyCode:  "KES",
	}
}

func TestSimulatorDecideAlwaysSucceeds(t *testing.T) {
	sim := NewSimulator(nil, 1.0, 0, 0)

	for i := 0; i < 20; i++ {
		msg := sim.decide(outcomeRequestMock())
		assert.Equal(t, model.StatusSuccess, msg.Status)
		assert.Contains(t, msg.ProviderRef, "BK-")
		assert.Nil(t, msg.Reason)
	}
}

func TestSimulatorDecideAlwaysFails(t *testing.T) {
	sim := NewSimulator(nil, 0, 0, 0)

	for i := 0; i < 20; i++ {
		msg := sim.decide(outcomeRequestMock())
		assert.Equal(t, model.StatusFailed, msg.Status)
		assert.Contains(t, msg.ProviderRef, "BK-")
		assert.NotNil(t, msg.Reason)
		assert.Equal(t, FailReasonInsufficientFunds, *msg.Reason)
	}
}

func TestSimulatorDelayBounds(t *testing.T) {
	sim := NewSimulator(nil, 1.0, 50*time.Millisecond, 200*time.Millisecond)

	for i := 0; i < 50; i++ {
		d := sim.delay()
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.Less(t, d, 200*time.Millisecond)
	}
}

func TestSimulatorHandleOutcomeRequest(t *testing.T) {
	d, _, _, mr := newTestDisburse(t)
	sim := NewSimulator(d.queue, 1.0, 0, 0)

	payload, err := json.Marshal(outcomeRequestMock())
	assert.NoError(t, err)

	task := asynq.NewTask("new:instruction_1", payload)
	err = sim.HandleOutcomeRequest(context.Background(), task)
	assert.NoError(t, err)

	// A status message for the instruction landed on the status queue.
	assert.NotEmpty(t, mr.Keys())
}

func TestSimulatorHandleOutcomeRequestBadPayload(t *testing.T) {
	sim := NewSimulator(nil, 1.0, 0, 0)

	task := asynq.NewTask("new:instruction_1", []byte("not json"))
	err := sim.HandleOutcomeRequest(context.Background(), task)
	assert.Error(t, err)
}
