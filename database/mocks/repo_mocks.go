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
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/talaka/disburse/model"
)

// MockDataSource is a mock implementation of the IDataSource interface
type MockDataSource struct {
	mock.Mock
}

// Batch methods

func (m *MockDataSource) CreateBatchWithInstructions(ctx context.Context, batch *model.PaymentBatch, instructions []*model.PaymentInstruction) (*model.PaymentBatch, error) {
	args := m.Called(ctx, batch, instructions)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PaymentBatch), args.Error(1)
}

func (m *MockDataSource) GetBatch(ctx context.Context, id string) (*model.PaymentBatch, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PaymentBatch), args.Error(1)
}

func (m *MockDataSource) GetAllBatches(ctx context.Context, limit, offset int) ([]model.PaymentBatch, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]model.PaymentBatch), args.Error(1)
}

// Instruction methods

func (m *MockDataSource) GetInstruction(ctx context.Context, id string) (*model.PaymentInstruction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PaymentInstruction), args.Error(1)
}

func (m *MockDataSource) GetInstructionsByBatch(ctx context.Context, batchID string) ([]*model.PaymentInstruction, error) {
	args := m.Called(ctx, batchID)
	return args.Get(0).([]*model.PaymentInstruction), args.Error(1)
}

func (m *MockDataSource) ApplyInstructionStatus(ctx context.Context, msg *model.StatusMessage) (*model.ReconciliationResult, error) {
	args := m.Called(ctx, msg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ReconciliationResult), args.Error(1)
}
