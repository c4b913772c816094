package database

import (
	"context"
	"database/sql"
	"fmt"

	"go.opentelemetry.io/otel"

	"github.com/talaka/disburse/internal/apierror"
	"github.com/talaka/disburse/model"
)

// ApplyInstructionStatus applies one provider status message as a single
// atomic unit of work. The instruction row is locked first; the terminal
// guard runs inside the same transaction as the write, so two concurrent
// deliveries of the same message can never both apply. The batch row is then
// locked, its counters recomputed from the full instruction set, and the
// OPEN to COMPLETED flip performed at most once. Any error rolls the whole
// unit back and surfaces to the queue for redelivery.
func (d *Datasource) ApplyInstructionStatus(ctx context.Context, msg *model.StatusMessage) (*model.ReconciliationResult, error) {
	ctx, span := otel.Tracer("Reconciliation").Start(ctx, "Applying instruction status to db")
	defer span.End()

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	row := tx.QueryRowContext(ctx, `
		SELECT instruction_id, batch_id, beneficiary_id, amount, currency, status, provider_ref, fail_reason, created_at
		FROM payment_instructions
		WHERE instruction_id = $1
		FOR UPDATE
	`, msg.InstructionID)

	instruction, err := scanInstruction(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Instruction with ID '%s' not found", msg.InstructionID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to lock instruction", err)
	}

	// Duplicate-suppression guard. A terminal instruction never moves again,
	// whatever the redelivered message says.
	if instruction.IsTerminal() {
		return &model.ReconciliationResult{Applied: false, Instruction: instruction}, nil
	}

	instruction.Status = msg.Status
	var providerRef sql.NullString
	if msg.ProviderRef != "" {
		ref := msg.ProviderRef
		instruction.ProviderRef = &ref
		providerRef = sql.NullString{String: ref, Valid: true}
	} else {
		instruction.ProviderRef = nil
	}
	if msg.Status == model.StatusFailed {
		instruction.FailReason = msg.Reason
	} else {
		instruction.FailReason = nil
	}

	var failReason sql.NullString
	if instruction.FailReason != nil {
		failReason = sql.NullString{String: *instruction.FailReason, Valid: true}
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE payment_instructions
		SET status = $2, provider_ref = $3, fail_reason = $4
		WHERE instruction_id = $1
	`, instruction.InstructionID, instruction.Status, providerRef, failReason)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update instruction status", err)
	}

	// The batch row lock serializes the recompute-and-maybe-complete sequence
	// across sibling instructions resolving concurrently.
	batchRow := tx.QueryRowContext(ctx, `
		SELECT batch_id, program_id, cycle_id, total_count, success_count, failed_count, status, created_at
		FROM payment_batches
		WHERE batch_id = $1
		FOR UPDATE
	`, instruction.BatchID)

	batch := &model.PaymentBatch{}
	err = batchRow.Scan(&batch.BatchID, &batch.ProgramID, &batch.CycleID, &batch.TotalCount, &batch.SuccessCount, &batch.FailedCount, &batch.Status, &batch.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Batch with ID '%s' not found", instruction.BatchID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to lock batch", err)
	}

	// Counters are recomputed from the full instruction set, never
	// incremented, so arrival order and duplicates cannot skew them.
	var successCount, failedCount int
	err = tx.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'SUCCESS'),
			COUNT(*) FILTER (WHERE status = 'FAILED')
		FROM payment_instructions
		WHERE batch_id = $1
	`, instruction.BatchID).Scan(&successCount, &failedCount)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to recompute batch counts", err)
	}

	batch.SuccessCount = successCount
	batch.FailedCount = failedCount

	completed := false
	if !batch.IsCompleted() && successCount+failedCount == batch.TotalCount {
		batch.Status = model.BatchStatusCompleted
		completed = true
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE payment_batches
		SET success_count = $2, failed_count = $3, status = $4
		WHERE batch_id = $1
	`, batch.BatchID, batch.SuccessCount, batch.FailedCount, batch.Status)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update batch", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit status application", err)
	}

	return &model.ReconciliationResult{
		Applied:        true,
		Instruction:    instruction,
		Batch:          batch,
		BatchCompleted: completed,
	}, nil
}
