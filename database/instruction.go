package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/talaka/disburse/internal/apierror"
	"github.com/talaka/disburse/model"
)

func (d *Datasource) GetInstruction(ctx context.Context, id string) (*model.PaymentInstruction, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT instruction_id, batch_id, beneficiary_id, amount, currency, status, provider_ref, fail_reason, created_at
		FROM payment_instructions
		WHERE instruction_id = $1
	`, id)

	instruction, err := scanInstruction(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Instruction with ID '%s' not found", id), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve instruction", err)
	}

	return instruction, nil
}

func (d *Datasource) GetInstructionsByBatch(ctx context.Context, batchID string) ([]*model.PaymentInstruction, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT instruction_id, batch_id, beneficiary_id, amount, currency, status, provider_ref, fail_reason, created_at
		FROM payment_instructions
		WHERE batch_id = $1
		ORDER BY created_at ASC
	`, batchID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve instructions", err)
	}
	defer rows.Close()

	var instructions []*model.PaymentInstruction

	for rows.Next() {
		instruction, err := scanInstruction(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan instruction data", err)
		}
		instructions = append(instructions, instruction)
	}

	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over instructions", err)
	}

	return instructions, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInstruction(row rowScanner) (*model.PaymentInstruction, error) {
	instruction := &model.PaymentInstruction{}
	var providerRef, failReason sql.NullString
	err := row.Scan(
		&instruction.InstructionID,
		&instruction.BatchID,
		&instruction.BeneficiaryID,
		&instruction.Amount,
		&instruction.Currency,
		&instruction.Status,
		&providerRef,
		&failReason,
		&instruction.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if providerRef.Valid {
		instruction.ProviderRef = &providerRef.String
	}
	if failReason.Valid {
		instruction.FailReason = &failReason.String
	}
	return instruction, nil
}
