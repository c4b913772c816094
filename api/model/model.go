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
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"

	"github.com/talaka/disburse/model"
)

func positiveAmountValidation(value interface{}) error {
	amount, ok := value.(decimal.Decimal)
	if !ok {
		return errors.New("invalid amount type")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return errors.New("amount must be greater than zero")
	}
	return nil
}

func (i *SubmitInstruction) ValidateSubmitInstruction() error {
	return validation.ValidateStruct(i,
		validation.Field(&i.BeneficiaryID, validation.Required),
		validation.Field(&i.Amount, validation.By(positiveAmountValidation)),
		validation.Field(&i.CurrencyCode, validation.Required, validation.Length(3, 3)),
	)
}

func (b *SubmitBatch) ValidateSubmitBatch() error {
	err := validation.ValidateStruct(b,
		validation.Field(&b.ProgramID, validation.Required),
		validation.Field(&b.CycleID, validation.Required),
		validation.Field(&b.Instructions, validation.Required),
	)
	if err != nil {
		return err
	}
	for _, instruction := range b.Instructions {
		if err := instruction.ValidateSubmitInstruction(); err != nil {
			return err
		}
	}
	return nil
}

// ToBatch converts the request into the engine's batch and instruction
// records.
func (b *SubmitBatch) ToBatch() (*model.PaymentBatch, []*model.PaymentInstruction) {
	batch := &model.PaymentBatch{
		ProgramID: b.ProgramID,
		CycleID:   b.CycleID,
	}
	instructions := make([]*model.PaymentInstruction, 0, len(b.Instructions))
	for _, i := range b.Instructions {
		instructions = append(instructions, &model.PaymentInstruction{
			BeneficiaryID: i.BeneficiaryID,
			Amount:        i.Amount,
			Currency:      i.CurrencyCode,
		})
	}
	return batch, instructions
}
