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
	"github.com/shopspring/decimal"
)

type SubmitBatch struct {
	ProgramID    string              `json:"programId"`
	CycleID      string              `json:"cycleId"`
	Instructions []SubmitInstruction `json:"instructions"`
}

type SubmitInstruction struct {
	BeneficiaryID string          `json:"beneficiaryId"`
	Amount        decimal.Decimal `json:"amount"`
	CurrencyCode  string          `json:"currencyCode"`
}
