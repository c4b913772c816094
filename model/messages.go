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

	"github.com/shopspring/decimal"
)

// OutcomeRequest is the message published to the disbursement provider for
// every instruction in a submitted batch. Field names and casing are the wire
// contract shared with the provider; the amount travels as a decimal string.
type OutcomeRequest struct {
	InstructionID string          `json:"instructionId"`
	ProgramID     string          `json:"programId"`
	BeneficiaryID string          `json:"beneficiaryId"`
	Amount        decimal.Decimal `json:"amount"`
	CurrencyCode  string          `json:"currencyCode"`
}

func (r *OutcomeRequest) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

// StatusMessage is the provider's asynchronous answer to an OutcomeRequest.
// Delivery is at-least-once and unordered: the same message can arrive any
// number of times, and messages for sibling instructions arrive in any order.
// Status carries the literal "SUCCESS" or "FAILED"; Reason is set on failure.
type StatusMessage struct {
	InstructionID string  `json:"instructionId"`
	Status        string  `json:"status"`
	ProviderRef   string  `json:"providerRef"`
	Reason        *string `json:"reason"`
}

// ReconciliationResult describes what a single status message changed once
// the ingestion transaction committed. Applied is false for duplicates:
// messages whose instruction was already terminal.
type ReconciliationResult struct {
	Applied        bool
	Instruction    *PaymentInstruction
	Batch          *PaymentBatch
	BatchCompleted bool
}

// TransitionedToSuccess reports whether this message moved the instruction
// from PENDING into SUCCESS, the one transition that triggers a
// payment.succeeded notification.
func (r *ReconciliationResult) TransitionedToSuccess() bool {
	return r.Applied && r.Instruction != nil && r.Instruction.Status == StatusSuccess
}
