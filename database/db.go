package database

import (
	"database/sql"
	"log"

	_ "github.com/lib/pq"

	"github.com/talaka/disburse/config"
)

// Datasource wraps the Postgres connection used by the engine. It is built
// once at startup and passed to the service explicitly; there is no package
// level instance.
type Datasource struct {
	Conn *sql.DB
}

func NewDataSource(configuration *config.Configuration) (IDataSource, error) {
	con, err := ConnectDB(configuration.DataSource.Dns)
	if err != nil {
		return nil, err
	}
	return &Datasource{Conn: con}, nil
}

func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dns)
	if err != nil {
		return nil, err
	}
	err = db.Ping()
	if err != nil {
		log.Printf("database Connection error ❌: %v", err)
		return nil, err
	}
	err = createBatchTable(db)
	if err != nil {
		return nil, err
	}
	err = createInstructionTable(db)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// createBatchTable creates a PostgreSQL table for the PaymentBatch struct
func createBatchTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS payment_batches (
			id SERIAL PRIMARY KEY,
			batch_id TEXT NOT NULL UNIQUE,
			program_id TEXT NOT NULL,
			cycle_id TEXT NOT NULL,
			total_count INT NOT NULL,
			success_count INT NOT NULL DEFAULT 0,
			failed_count INT NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			CHECK (success_count >= 0),
			CHECK (failed_count >= 0),
			CHECK (success_count + failed_count <= total_count)
		)
	`)
	if err != nil {
		log.Printf("Error creating payment_batches table: %v", err)
	}
	return err
}

// createInstructionTable creates a PostgreSQL table for the PaymentInstruction struct
func createInstructionTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS payment_instructions (
			id SERIAL PRIMARY KEY,
			instruction_id TEXT NOT NULL UNIQUE,
			batch_id TEXT NOT NULL REFERENCES payment_batches(batch_id),
			beneficiary_id TEXT NOT NULL,
			amount NUMERIC NOT NULL,
			currency TEXT NOT NULL,
			status TEXT NOT NULL,
			provider_ref TEXT,
			fail_reason TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		log.Printf("Error creating payment_instructions table: %v", err)
	}
	return err
}
