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

package database

import (
	"context"

	"github.com/talaka/disburse/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	batch       // Interface for batch-related operations
	instruction // Interface for instruction-related operations
}

// batch defines methods for handling payment batches.
type batch interface {
	CreateBatchWithInstructions(ctx context.Context, batch *model.PaymentBatch, instructions []*model.PaymentInstruction) (*model.PaymentBatch, error) // Creates a batch and its instructions atomically
	GetBatch(ctx context.Context, id string) (*model.PaymentBatch, error)                                                                              // Retrieves a batch by ID
	GetAllBatches(ctx context.Context, limit, offset int) ([]model.PaymentBatch, error)                                                                // Retrieves batches, newest first
}

// instruction defines methods for handling payment instructions.
type instruction interface {
	GetInstruction(ctx context.Context, id string) (*model.PaymentInstruction, error)                           // Retrieves an instruction by ID
	GetInstructionsByBatch(ctx context.Context, batchID string) ([]*model.PaymentInstruction, error)            // Retrieves all instructions of a batch
	ApplyInstructionStatus(ctx context.Context, msg *model.StatusMessage) (*model.ReconciliationResult, error)  // Applies a provider status message as one atomic unit
}
