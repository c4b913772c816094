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
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/talaka/disburse/internal/apierror"
	redlock "github.com/talaka/disburse/internal/lock"
	"github.com/talaka/disburse/model"
)

var tracer = otel.Tracer("Reconcile payment status")

const (
	batchLockDuration = 30 * time.Second
	batchLockTimeout  = 10 * time.Second
)

// ApplyPaymentStatus ingests one provider status message. The channel is
// at-least-once and unordered, so every guard lives here rather than in the
// transport: unknown instructions and repeated terminal statuses are
// discarded without error, and only infrastructure failures propagate up to
// trigger redelivery.
func (d *Disburse) ApplyPaymentStatus(ctx context.Context, msg *model.StatusMessage) error {
	ctx, span := tracer.Start(ctx, "Applying payment status")
	defer span.End()

	if msg.Status != model.StatusSuccess && msg.Status != model.StatusFailed {
		logrus.Warnf("discarding status message for %s with unknown status %q", msg.InstructionID, msg.Status)
		return nil
	}

	instruction, err := d.datasource.GetInstruction(ctx, msg.InstructionID)
	if err != nil {
		if apierror.IsNotFound(err) {
			logrus.Warnf("discarding status message for unknown instruction %s", msg.InstructionID)
			return nil
		}
		span.RecordError(err)
		return err
	}
	if instruction.IsTerminal() {
		logrus.Debugf("instruction %s already %s, ignoring %s", instruction.InstructionID, instruction.Status, msg.Status)
		return nil
	}

	// Serialize concurrent status messages for instructions of the same
	// batch: the row locks inside ApplyInstructionStatus are the
	// authoritative guard, the lock keeps the workers from piling up on
	// them.
	locker := redlock.NewLocker(d.redis, fmt.Sprintf("batch:%s", instruction.BatchID), model.GenerateUUIDWithSuffix("loc"))
	if err := locker.WaitLock(ctx, batchLockDuration, batchLockTimeout); err != nil {
		span.RecordError(err)
		return err
	}
	defer func() {
		if err := locker.Unlock(ctx); err != nil {
			logrus.Errorf("failed to release batch lock for %s: %v", instruction.BatchID, err)
		}
	}()

	result, err := d.datasource.ApplyInstructionStatus(ctx, msg)
	if err != nil {
		if apierror.IsNotFound(err) {
			logrus.Warnf("discarding status message for unknown instruction %s", msg.InstructionID)
			return nil
		}
		span.RecordError(err)
		return err
	}
	if !result.Applied {
		logrus.Debugf("instruction %s already terminal, ignoring %s", msg.InstructionID, msg.Status)
		return nil
	}

	logrus.Infof("instruction %s -> %s (batch %s: %d/%d terminal)",
		result.Instruction.InstructionID, result.Instruction.Status,
		result.Batch.BatchID, result.Batch.SuccessCount+result.Batch.FailedCount, result.Batch.TotalCount)

	if result.TransitionedToSuccess() {
		if err := d.emitter.PaymentSucceeded(ctx, result.Instruction, result.Batch); err != nil {
			// The transition is committed; a lost event is preferable to
			// redelivering the status and double-counting it downstream.
			logrus.Errorf("failed to emit payment.succeeded for %s: %v", result.Instruction.InstructionID, err)
		}
	}
	if result.BatchCompleted {
		if err := d.emitter.BatchCompleted(ctx, result.Batch); err != nil {
			logrus.Errorf("failed to emit payment.batch.completed for %s: %v", result.Batch.BatchID, err)
		}
	}
	return nil
}

// ProcessStatusMessage is the asynq handler draining the status queue.
func (d *Disburse) ProcessStatusMessage(ctx context.Context, task *asynq.Task) error {
	var msg model.StatusMessage
	if err := json.Unmarshal(task.Payload(), &msg); err != nil {
		logrus.Errorf("unable to decode status message payload: %v", err)
		return err
	}
	return d.ApplyPaymentStatus(ctx, &msg)
}
