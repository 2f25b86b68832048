package scenario

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/liamcoop/dewater/dewater"
	_ "github.com/lib/pq"
)

// PostgresStore implements Store backed by PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed Store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const scenarioColumns = `id, name, wells, total_q, k, bedrock_elevation, initial_water_table_elevation,
	target_elevation, allocation_expression, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScenario(row rowScanner) (*Scenario, error) {
	var sc Scenario
	var wellsJSON []byte
	var target sql.NullFloat64

	err := row.Scan(
		&sc.ID,
		&sc.Name,
		&wellsJSON,
		&sc.TotalQ,
		&sc.Aquifer.K,
		&sc.Aquifer.BedrockElevation,
		&sc.Aquifer.InitialWaterTableElevation,
		&target,
		&sc.AllocationExpression,
		&sc.CreatedAt,
		&sc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(wellsJSON, &sc.Wells); err != nil {
		return nil, fmt.Errorf("invalid wells for scenario %s: %w", sc.ID, err)
	}
	if target.Valid {
		t := target.Float64
		sc.TargetElevation = &t
	}
	return &sc, nil
}

func nullableTarget(t *float64) sql.NullFloat64 {
	if t == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *t, Valid: true}
}

// Add inserts a new scenario into the database
func (s *PostgresStore) Add(sc *Scenario) error {
	wellsJSON, err := json.Marshal(wellsOrEmpty(sc.Wells))
	if err != nil {
		return fmt.Errorf("failed to marshal wells: %w", err)
	}

	now := time.Now().UTC()
	sc.CreatedAt = now
	sc.UpdatedAt = now

	result, err := s.db.Exec(`
		INSERT INTO scenarios (`+scenarioColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`, sc.ID, sc.Name, wellsJSON, sc.TotalQ, sc.Aquifer.K, sc.Aquifer.BedrockElevation,
		sc.Aquifer.InitialWaterTableElevation, nullableTarget(sc.TargetElevation),
		sc.AllocationExpression, sc.CreatedAt, sc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert scenario: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("scenario %s: %w", sc.ID, ErrExists)
	}

	return nil
}

// Get retrieves a scenario by ID
func (s *PostgresStore) Get(id string) (*Scenario, error) {
	sc, err := scanScenario(s.db.QueryRow(`
		SELECT `+scenarioColumns+`
		FROM scenarios
		WHERE id = $1
	`, id))

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("scenario %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scenario: %w", err)
	}

	return sc, nil
}

// List returns all scenarios, newest first
func (s *PostgresStore) List() ([]*Scenario, error) {
	rows, err := s.db.Query(`
		SELECT ` + scenarioColumns + `
		FROM scenarios
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list scenarios: %w", err)
	}
	defer rows.Close()

	list := []*Scenario{}
	for rows.Next() {
		sc, err := scanScenario(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scenario: %w", err)
		}
		list = append(list, sc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scenarios: %w", err)
	}

	return list, nil
}

// Update modifies an existing scenario, preserving CreatedAt
func (s *PostgresStore) Update(sc *Scenario) error {
	existing, err := s.Get(sc.ID)
	if err != nil {
		return err
	}

	wellsJSON, err := json.Marshal(wellsOrEmpty(sc.Wells))
	if err != nil {
		return fmt.Errorf("failed to marshal wells: %w", err)
	}

	sc.CreatedAt = existing.CreatedAt
	sc.UpdatedAt = time.Now().UTC()

	result, err := s.db.Exec(`
		UPDATE scenarios
		SET name = $1, wells = $2, total_q = $3, k = $4, bedrock_elevation = $5,
			initial_water_table_elevation = $6, target_elevation = $7,
			allocation_expression = $8, updated_at = $9
		WHERE id = $10
	`, sc.Name, wellsJSON, sc.TotalQ, sc.Aquifer.K, sc.Aquifer.BedrockElevation,
		sc.Aquifer.InitialWaterTableElevation, nullableTarget(sc.TargetElevation),
		sc.AllocationExpression, sc.UpdatedAt, sc.ID)
	if err != nil {
		return fmt.Errorf("failed to update scenario: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("scenario %s: %w", sc.ID, ErrNotFound)
	}

	return nil
}

// Delete removes a scenario from the database
func (s *PostgresStore) Delete(id string) error {
	result, err := s.db.Exec(`
		DELETE FROM scenarios
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("failed to delete scenario: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("scenario %s: %w", id, ErrNotFound)
	}

	return nil
}

// Ping checks the database connection
func (s *PostgresStore) Ping() error {
	return s.db.Ping()
}

func wellsOrEmpty(wells []dewater.Well) []dewater.Well {
	if wells == nil {
		return []dewater.Well{}
	}
	return wells
}
