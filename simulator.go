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
	"math/rand"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/talaka/disburse/model"
)

// FailReasonInsufficientFunds is the failure reason the simulator attaches to
// every declined instruction.
const FailReasonInsufficientFunds = "INSUFFICIENT_FUNDS"

// Simulator is a stand-in disbursement provider. It consumes outcome
// requests, waits a configured delay, then reports SUCCESS or FAILED back on
// the status queue. Rate and delay come from the simulator configuration; a
// rate of 1 or 0 makes outcomes deterministic.
type Simulator struct {
	queue *Queue
	rate  float64
	min   time.Duration
	max   time.Duration
	rng   *rand.Rand
}

// NewSimulator builds a Simulator publishing its statuses through the given
// queue.
func NewSimulator(queue *Queue, successRate float64, minDelay, maxDelay time.Duration) *Simulator {
	return &Simulator{
		queue: queue,
		rate:  successRate,
		min:   minDelay,
		max:   maxDelay,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// HandleOutcomeRequest is the asynq handler for the instruction queues. Each
// request produces exactly one status message; enqueue failures propagate so
// asynq retries the request rather than losing the outcome.
func (s *Simulator) HandleOutcomeRequest(ctx context.Context, task *asynq.Task) error {
	var req model.OutcomeRequest
	if err := json.Unmarshal(task.Payload(), &req); err != nil {
		logrus.Errorf("unable to decode outcome request payload: %v", err)
		return err
	}

	select {
	case <-time.After(s.delay()):
	case <-ctx.Done():
		return ctx.Err()
	}

	msg := s.decide(&req)
	if err := s.queue.EnqueueStatusMessage(ctx, msg); err != nil {
		return err
	}
	logrus.Infof("simulated %s for instruction %s", msg.Status, req.InstructionID)
	return nil
}

func (s *Simulator) decide(req *model.OutcomeRequest) *model.StatusMessage {
	// The bank assigns a reference to every attempt it processed, declined
	// ones included.
	msg := &model.StatusMessage{
		InstructionID: req.InstructionID,
		ProviderRef:   fmt.Sprintf("BK-%d", s.rng.Intn(1000000)),
	}
	if s.rng.Float64() < s.rate {
		msg.Status = model.StatusSuccess
	} else {
		msg.Status = model.StatusFailed
		reason := FailReasonInsufficientFunds
		msg.Reason = &reason
	}
	return msg
}

func (s *Simulator) delay() time.Duration {
	if s.max <= s.min {
		return s.min
	}
	return s.min + time.Duration(s.rng.Int63n(int64(s.max-s.min)))
}
