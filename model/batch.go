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

package model

import (
	"encoding/json"
	"time"
)

const (
	BatchStatusOpen      = "OPEN"
	BatchStatusCompleted = "COMPLETED"
)

// PaymentBatch is a fixed-size group of instructions submitted together for
// one program cycle. TotalCount is fixed at creation. SuccessCount and
// FailedCount are derived values: they are always recomputed from the batch's
// instructions, never incremented in place, so concurrent and duplicate
// status deliveries cannot skew them.
type PaymentBatch struct {
	ID           int64     `json:"-"`
	BatchID      string    `json:"batch_id"`
	ProgramID    string    `json:"program_id"`
	CycleID      string    `json:"cycle_id"`
	TotalCount   int       `json:"total_count"`
	SuccessCount int       `json:"success_count"`
	FailedCount  int       `json:"failed_count"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsCompleted reports whether the batch has reached its terminal state.
// A completed batch accepts no further count or status mutation.
func (b *PaymentBatch) IsCompleted() bool {
	return b.Status == BatchStatusCompleted
}

func (b *PaymentBatch) ToJSON() ([]byte, error) {
	return json.Marshal(b)
}
