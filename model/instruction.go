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

	"github.com/shopspring/decimal"
)

const (
	StatusPending = "PENDING"
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

// PaymentInstruction is one disbursement attempt for one beneficiary within a
// batch. It is created PENDING and moves to exactly one of SUCCESS or FAILED
// when the provider reports an outcome; both are terminal.
type PaymentInstruction struct {
	ID            int64           `json:"-"`
	InstructionID string          `json:"instruction_id"`
	BatchID       string          `json:"batch_id"`
	BeneficiaryID string          `json:"beneficiary_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Status        string          `json:"status"`
	ProviderRef   *string         `json:"provider_ref"`
	FailReason    *string         `json:"fail_reason"`
	CreatedAt     time.Time       `json:"created_at"`
}

// IsTerminal reports whether the instruction has resolved. A terminal
// instruction never transitions again, no matter what the provider resends.
func (i *PaymentInstruction) IsTerminal() bool {
	return i.Status == StatusSuccess || i.Status == StatusFailed
}

func (i *PaymentInstruction) ToJSON() ([]byte, error) {
	return json.Marshal(i)
}
