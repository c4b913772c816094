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
	"time"

	"github.com/sirupsen/logrus"

	"github.com/talaka/disburse/internal/notification"
	"github.com/talaka/disburse/model"
)

// SubmitBatch creates a batch and its instructions, all PENDING, in one
// durable write, then publishes one outcome request per instruction to the
// provider. Publishing happens strictly after the commit: a provider status
// can never reference an instruction that does not exist yet. The caller gets
// the created batch back; outcomes surface later through the read model and
// notifications.
func (d *Disburse) SubmitBatch(ctx context.Context, batch *model.PaymentBatch, instructions []*model.PaymentInstruction) (*model.PaymentBatch, error) {
	batch.BatchID = model.GenerateUUIDWithSuffix("bch")
	batch.Status = model.BatchStatusOpen
	batch.TotalCount = len(instructions)
	batch.SuccessCount = 0
	batch.FailedCount = 0
	batch.CreatedAt = time.Now()

	for _, instruction := range instructions {
		instruction.InstructionID = model.GenerateUUIDWithSuffix("pin")
		instruction.BatchID = batch.BatchID
		instruction.Status = model.StatusPending
		instruction.CreatedAt = batch.CreatedAt
	}

	batch, err := d.datasource.CreateBatchWithInstructions(ctx, batch, instructions)
	if err != nil {
		logrus.Errorf("ERROR saving batch to db. %s", err)
		return nil, err
	}

	for _, instruction := range instructions {
		req := &model.OutcomeRequest{
			InstructionID: instruction.InstructionID,
			ProgramID:     batch.ProgramID,
			BeneficiaryID: instruction.BeneficiaryID,
			Amount:        instruction.Amount,
			CurrencyCode:  instruction.Currency,
		}
		if err := d.queue.EnqueueOutcomeRequest(ctx, req); err != nil {
			// The batch is already durable; a failed publish leaves this
			// instruction PENDING, which the read model surfaces.
			logrus.Errorf("failed to publish outcome request for %s: %v", instruction.InstructionID, err)
			notification.NotifyError(err)
		}
	}

	return batch, nil
}

// GetBatch returns a batch with its current derived counts.
func (d *Disburse) GetBatch(ctx context.Context, id string) (*model.PaymentBatch, error) {
	return d.datasource.GetBatch(ctx, id)
}

// GetAllBatches returns batches, newest first.
func (d *Disburse) GetAllBatches(ctx context.Context, limit, offset int) ([]model.PaymentBatch, error) {
	return d.datasource.GetAllBatches(ctx, limit, offset)
}

// GetBatchInstructions returns every instruction of a batch.
func (d *Disburse) GetBatchInstructions(ctx context.Context, batchID string) ([]*model.PaymentInstruction, error) {
	if _, err := d.datasource.GetBatch(ctx, batchID); err != nil {
		return nil, err
	}
	return d.datasource.GetInstructionsByBatch(ctx, batchID)
}

// GetInstruction returns a single instruction by ID.
func (d *Disburse) GetInstruction(ctx context.Context, id string) (*model.PaymentInstruction, error) {
	return d.datasource.GetInstruction(ctx, id)
}
