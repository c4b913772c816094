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
	"testing"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/talaka/disburse/internal/apierror"
	"github.com/talaka/disburse/model"
)

func pendingInstructionMock(instructionID, batchID string) *model.PaymentInstruction {
	return &model.PaymentInstruction{
		InstructionID: instructionID,
		BatchID:       batchID,
		BeneficiaryID: "ben_001",
		Amount:        decimal.NewFromInt(2500),
		Currency:      "KES",
		Status:        model.StatusPending,
	}
}

func TestApplyPaymentStatusSuccess(t *testing.T) {
	d, mockDS, emitter, _ := newTestDisburse(t)
	ctx := context.Background()

	instruction := pendingInstructionMock("pin_1", "bch_1")
	ref := "BK-1234"
	msg := &model.StatusMessage{InstructionID: "pin_1", Status: model.StatusSuccess, ProviderRef: ref}

	applied := pendingInstructionMock("pin_1", "bch_1")
	applied.Status = model.StatusSuccess
	applied.ProviderRef = &ref
	batch := &model.PaymentBatch{BatchID: "bch_1", TotalCount: 3, SuccessCount: 1, FailedCount: 0, Status: model.BatchStatusOpen}

	mockDS.On("GetInstruction", mock.Anything, "pin_1").Return(instruction, nil)
	mockDS.On("ApplyInstructionStatus", mock.Anything, msg).
		Return(&model.ReconciliationResult{Applied: true, Instruction: applied, Batch: batch}, nil)
	emitter.On("PaymentSucceeded", mock.Anything, applied, batch).Return(nil)

	err := d.ApplyPaymentStatus(ctx, msg)
	assert.NoError(t, err)

	mockDS.AssertExpectations(t)
	emitter.AssertExpectations(t)
	emitter.AssertNotCalled(t, "BatchCompleted", mock.Anything, mock.Anything)
}

func TestApplyPaymentStatusCompletesBatch(t *testing.T) {
	d, mockDS, emitter, _ := newTestDisburse(t)
	ctx := context.Background()

	instruction := pendingInstructionMock("pin_9", "bch_1")
	reason := FailReasonInsufficientFunds
	msg := &model.StatusMessage{InstructionID: "pin_9", Status: model.StatusFailed, Reason: &reason}

	applied := pendingInstructionMock("pin_9", "bch_1")
	applied.Status = model.StatusFailed
	applied.FailReason = &reason
	batch := &model.PaymentBatch{BatchID: "bch_1", TotalCount: 3, SuccessCount: 2, FailedCount: 1, Status: model.BatchStatusCompleted}

	mockDS.On("GetInstruction", mock.Anything, "pin_9").Return(instruction, nil)
	mockDS.On("ApplyInstructionStatus", mock.Anything, msg).
		Return(&model.ReconciliationResult{Applied: true, Instruction: applied, Batch: batch, BatchCompleted: true}, nil)
	emitter.On("BatchCompleted", mock.Anything, batch).Return(nil)

	err := d.ApplyPaymentStatus(ctx, msg)
	assert.NoError(t, err)

	mockDS.AssertExpectations(t)
	emitter.AssertExpectations(t)
	emitter.AssertNotCalled(t, "PaymentSucceeded", mock.Anything, mock.Anything, mock.Anything)
}

func TestApplyPaymentStatusDuplicateIsDiscarded(t *testing.T) {
	d, mockDS, emitter, _ := newTestDisburse(t)
	ctx := context.Background()

	terminal := pendingInstructionMock("pin_1", "bch_1")
	terminal.Status = model.StatusSuccess
	msg := &model.StatusMessage{InstructionID: "pin_1", Status: model.StatusSuccess}

	mockDS.On("GetInstruction", mock.Anything, "pin_1").Return(terminal, nil)

	err := d.ApplyPaymentStatus(ctx, msg)
	assert.NoError(t, err)

	mockDS.AssertExpectations(t)
	mockDS.AssertNotCalled(t, "ApplyInstructionStatus", mock.Anything, mock.Anything)
	emitter.AssertNotCalled(t, "PaymentSucceeded", mock.Anything, mock.Anything, mock.Anything)
}

func TestApplyPaymentStatusUnknownInstruction(t *testing.T) {
	d, mockDS, emitter, _ := newTestDisburse(t)
	ctx := context.Background()

	msg := &model.StatusMessage{InstructionID: "pin_missing", Status: model.StatusSuccess}
	mockDS.On("GetInstruction", mock.Anything, "pin_missing").
		Return(nil, apierror.NewAPIError(apierror.ErrNotFound, "Instruction with ID 'pin_missing' not found", nil))

	err := d.ApplyPaymentStatus(ctx, msg)
	assert.NoError(t, err)

	mockDS.AssertNotCalled(t, "ApplyInstructionStatus", mock.Anything, mock.Anything)
	emitter.AssertNotCalled(t, "PaymentSucceeded", mock.Anything, mock.Anything, mock.Anything)
}

func TestApplyPaymentStatusUnknownStatusValue(t *testing.T) {
	d, mockDS, _, _ := newTestDisburse(t)

	msg := &model.StatusMessage{InstructionID: "pin_1", Status: "REVERSED"}
	err := d.ApplyPaymentStatus(context.Background(), msg)
	assert.NoError(t, err)

	mockDS.AssertNotCalled(t, "GetInstruction", mock.Anything, mock.Anything)
}

func TestApplyPaymentStatusPersistenceFailurePropagates(t *testing.T) {
	d, mockDS, emitter, _ := newTestDisburse(t)
	ctx := context.Background()

	msg := &model.StatusMessage{InstructionID: "pin_1", Status: model.StatusSuccess}
	mockDS.On("GetInstruction", mock.Anything, "pin_1").Return(pendingInstructionMock("pin_1", "bch_1"), nil)
	mockDS.On("ApplyInstructionStatus", mock.Anything, msg).
		Return(nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit status application", errors.New("connection reset")))

	err := d.ApplyPaymentStatus(ctx, msg)
	assert.Error(t, err)

	emitter.AssertNotCalled(t, "PaymentSucceeded", mock.Anything, mock.Anything, mock.Anything)
}

func TestApplyPaymentStatusEmitterFailureIsNotPropagated(t *testing.T) {
	d, mockDS, emitter, _ := newTestDisburse(t)
	ctx := context.Background()

	ref := "BK-77"
	msg := &model.StatusMessage{InstructionID: "pin_1", Status: model.StatusSuccess, ProviderRef: ref}
	applied := pendingInstructionMock("pin_1", "bch_1")
	applied.Status = model.StatusSuccess
	applied.ProviderRef = &ref
	batch := &model.PaymentBatch{BatchID: "bch_1", TotalCount: 2, SuccessCount: 2, FailedCount: 0, Status: model.BatchStatusCompleted}

	mockDS.On("GetInstruction", mock.Anything, "pin_1").Return(pendingInstructionMock("pin_1", "bch_1"), nil)
	mockDS.On("ApplyInstructionStatus", mock.Anything, msg).
		Return(&model.ReconciliationResult{Applied: true, Instruction: applied, Batch: batch, BatchCompleted: true}, nil)
	emitter.On("PaymentSucceeded", mock.Anything, applied, batch).Return(errors.New("sink unreachable"))
	emitter.On("BatchCompleted", mock.Anything, batch).Return(errors.New("sink unreachable"))

	// The transition is already durable, so notification failures must not
	// bounce the message back onto the queue.
	err := d.ApplyPaymentStatus(ctx, msg)
	assert.NoError(t, err)
	emitter.AssertExpectations(t)
}

func TestProcessStatusMessage(t *testing.T) {
	d, mockDS, emitter, _ := newTestDisburse(t)

	ref := "BK-500"
	msg := &model.StatusMessage{InstructionID: "pin_task", Status: model.StatusSuccess, ProviderRef: ref}
	payload, err := json.Marshal(msg)
	assert.NoError(t, err)

	applied := pendingInstructionMock("pin_task", "bch_2")
	applied.Status = model.StatusSuccess
	applied.ProviderRef = &ref
	batch := &model.PaymentBatch{BatchID: "bch_2", TotalCount: 5, SuccessCount: 1, Status: model.BatchStatusOpen}

	mockDS.On("GetInstruction", mock.Anything, "pin_task").Return(pendingInstructionMock("pin_task", "bch_2"), nil)
	mockDS.On("ApplyInstructionStatus", mock.Anything, mock.MatchedBy(func(m *model.StatusMessage) bool {
		return m.InstructionID == "pin_task" && m.Status == model.StatusSuccess
	})).Return(&model.ReconciliationResult{Applied: true, Instruction: applied, Batch: batch}, nil)
	emitter.On("PaymentSucceeded", mock.Anything, applied, batch).Return(nil)

	task := asynq.NewTask("new:status", payload)
	err = d.ProcessStatusMessage(context.Background(), task)
	assert.NoError(t, err)
	mockDS.AssertExpectations(t)
}
