package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/talaka/disburse/internal/apierror"
	"github.com/talaka/disburse/model"
)

// CreateBatchWithInstructions persists the batch row and every instruction
// row in one transaction. Submission publishes outcome requests only after
// this commits, so a provider status can never reference a missing row.
func (d *Datasource) CreateBatchWithInstructions(ctx context.Context, batch *model.PaymentBatch, instructions []*model.PaymentInstruction) (*model.PaymentBatch, error) {
	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO payment_batches(batch_id,program_id,cycle_id,total_count,success_count,failed_count,status,created_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		batch.BatchID, batch.ProgramID, batch.CycleID, batch.TotalCount, batch.SuccessCount, batch.FailedCount, batch.Status, batch.CreatedAt,
	)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create batch", err)
	}

	for _, instruction := range instructions {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO payment_instructions(instruction_id,batch_id,beneficiary_id,amount,currency,status,created_at) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			instruction.InstructionID, instruction.BatchID, instruction.BeneficiaryID, instruction.Amount, instruction.Currency, instruction.Status, instruction.CreatedAt,
		)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create instruction", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit batch creation", err)
	}

	return batch, nil
}

func (d *Datasource) GetBatch(ctx context.Context, id string) (*model.PaymentBatch, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT batch_id, program_id, cycle_id, total_count, success_count, failed_count, status, created_at
		FROM payment_batches
		WHERE batch_id = $1
	`, id)

	batch := &model.PaymentBatch{}
	err := row.Scan(&batch.BatchID, &batch.ProgramID, &batch.CycleID, &batch.TotalCount, &batch.SuccessCount, &batch.FailedCount, &batch.Status, &batch.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Batch with ID '%s' not found", id), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve batch", err)
	}

	return batch, nil
}

func (d *Datasource) GetAllBatches(ctx context.Context, limit, offset int) ([]model.PaymentBatch, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT batch_id, program_id, cycle_id, total_count, success_count, failed_count, status, created_at
		FROM payment_batches
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve batches", err)
	}
	defer rows.Close()

	var batches []model.PaymentBatch

	for rows.Next() {
		batch := model.PaymentBatch{}
		err = rows.Scan(
			&batch.BatchID,
			&batch.ProgramID,
			&batch.CycleID,
			&batch.TotalCount,
			&batch.SuccessCount,
			&batch.FailedCount,
			&batch.Status,
			&batch.CreatedAt,
		)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan batch data", err)
		}

		batches = append(batches, batch)
	}

	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over batches", err)
	}

	return batches, nil
}
