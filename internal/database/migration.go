package database

import (
	"database/sql"
	"fmt"
	"time"

	"exchangeflow/pkg/logger"
)

type Migration struct {
	Name string
	Func func(tx *sql.Tx, d Dialect) error
}

type MigrationService struct {
	db      *sql.DB
	dialect Dialect
	logger  logger.Logger
}

func NewMigrationService(db *sql.DB, dialect Dialect, logger logger.Logger) *MigrationService {
	return &MigrationService{
		db:      db,
		dialect: dialect,
		logger:  logger,
	}
}

// Migrations lists the schema steps in application order.
func Migrations() []Migration {
	return []Migration{
		{"create_users_table", CreateUsersTable},
		{"create_students_table", CreateStudentsTable},
		{"create_programs_table", CreateProgramsTable},
		{"create_offers_table", CreateOffersTable},
		{"create_applications_table", CreateApplicationsTable},
		{"create_interactions_table", CreateInteractionsTable},
	}
}

func (m *MigrationService) InitMigrationTable() error {
	query := fmt.Sprintf(`
    CREATE TABLE IF NOT EXISTS migrations (
        id %s,
        name TEXT NOT NULL UNIQUE,
        applied_at TIMESTAMP NOT NULL
    )
    `, m.dialect.serialKey())

	if _, err := m.db.Exec(query); err != nil {
		m.logger.Error("Could not create migrations table", map[string]interface{}{"error": err.Error()})
		return err
	}

	return nil
}

func (m *MigrationService) IsMigrationApplied(name string) (bool, error) {
	var count int
	err := m.db.QueryRow("SELECT COUNT(*) FROM migrations WHERE name = $1", name).Scan(&count)
	if err != nil {
		m.logger.Error("Could not check migration state", map[string]interface{}{"name": name, "error": err.Error()})
		return false, err
	}

	return count > 0, nil
}

func (m *MigrationService) ApplyMigration(migration Migration) (err error) {
	applied, err := m.IsMigrationApplied(migration.Name)
	if err != nil {
		return err
	}

	if applied {
		m.logger.Debug("Migration already applied", map[string]interface{}{"name": migration.Name})
		return nil
	}

	m.logger.Info("Applying migration", map[string]interface{}{"name": migration.Name})

	tx, err := m.db.Begin()
	if err != nil {
		m.logger.Error("Could not begin transaction", map[string]interface{}{"error": err.Error()})
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			m.logger.Error("Migration rolled back", map[string]interface{}{"name": migration.Name, "error": err.Error()})
		}
	}()

	if err = migration.Func(tx, m.dialect); err != nil {
		return err
	}

	if _, err = tx.Exec("INSERT INTO migrations (name, applied_at) VALUES ($1, $2)", migration.Name, time.Now().UTC()); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return err
	}

	m.logger.Info("Migration applied", map[string]interface{}{"name": migration.Name})
	return nil
}

func (m *MigrationService) RunMigrations() error {
	if err := m.InitMigrationTable(); err != nil {
		return fmt.Errorf("could not create migrations table: %w", err)
	}

	for _, migration := range Migrations() {
		if err := m.ApplyMigration(migration); err != nil {
			return fmt.Errorf("could not apply migration %s: %w", migration.Name, err)
		}
	}

	return nil
}

func CreateUsersTable(tx *sql.Tx, _ Dialect) error {
	_, err := tx.Exec(`
    CREATE TABLE IF NOT EXISTS users (
        id TEXT PRIMARY KEY,
        name TEXT NOT NULL,
        email TEXT NOT NULL,
        password TEXT NOT NULL,
        role TEXT NOT NULL,
        blocked BOOLEAN NOT NULL DEFAULT FALSE,
        failed_attempts INTEGER NOT NULL DEFAULT 0,
        created_at TIMESTAMP NOT NULL
    )
    `)
	return err
}

func CreateStudentsTable(tx *sql.Tx, _ Dialect) error {
	_, err := tx.Exec(`
    CREATE TABLE IF NOT EXISTS students (
        user_id TEXT PRIMARY KEY,
        major TEXT NOT NULL,
        gpa REAL NOT NULL,
        semesters INTEGER NOT NULL,
        FOREIGN KEY (user_id) REFERENCES users (id)
    )
    `)
	return err
}

func CreateProgramsTable(tx *sql.Tx, d Dialect) error {
	_, err := tx.Exec(fmt.Sprintf(`
    CREATE TABLE IF NOT EXISTS programs (
        id %s,
        name TEXT NOT NULL,
        start_date TIMESTAMP NOT NULL,
        end_date TIMESTAMP NOT NULL,
        status TEXT NOT NULL
    )
    `, d.serialKey()))
	return err
}

func CreateOffersTable(tx *sql.Tx, d Dialect) error {
	if _, err := tx.Exec(fmt.Sprintf(`
    CREATE TABLE IF NOT EXISTS offers (
        id %s,
        university TEXT NOT NULL,
        country TEXT NOT NULL,
        area TEXT NOT NULL,
        academic_requirements TEXT NOT NULL,
        economic_requirements TEXT NOT NULL,
        program_id INTEGER NOT NULL,
        deleted_at TIMESTAMP,
        FOREIGN KEY (program_id) REFERENCES programs (id)
    )
    `, d.serialKey())); err != nil {
		return err
	}

	_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS offers_program_id_idx ON offers (program_id)`)
	return err
}

func CreateApplicationsTable(tx *sql.Tx, d Dialect) error {
	if _, err := tx.Exec(fmt.Sprintf(`
    CREATE TABLE IF NOT EXISTS applications (
        id %s,
        student_id TEXT NOT NULL,
        offer_id INTEGER NOT NULL,
        application_date TIMESTAMP NOT NULL,
        status TEXT NOT NULL,
        FOREIGN KEY (student_id) REFERENCES users (id),
        FOREIGN KEY (offer_id) REFERENCES offers (id)
    )
    `, d.serialKey())); err != nil {
		return err
	}

	_, err := tx.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS applications_student_offer_idx ON applications (student_id, offer_id)`)
	return err
}

func CreateInteractionsTable(tx *sql.Tx, d Dialect) error {
	if _, err := tx.Exec(fmt.Sprintf(`
    CREATE TABLE IF NOT EXISTS interactions (
        id %s,
        application_id INTEGER NOT NULL,
        author_id TEXT NOT NULL,
        kind TEXT NOT NULL,
        title TEXT NOT NULL,
        content TEXT,
        timestamp TIMESTAMP NOT NULL,
        FOREIGN KEY (application_id) REFERENCES applications (id),
        FOREIGN KEY (author_id) REFERENCES users (id)
    )
    `, d.serialKey())); err != nil {
		return err
	}

	_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS interactions_application_id_idx ON interactions (application_id)`)
	return err
}
