package service

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sort"
	"strings"

	"coding-agreement/internal/models"
	"coding-agreement/internal/state"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// SQLSourceConfig holds connection details
type SQLSourceConfig struct {
	Driver string // "postgres", "sqlite"
	DSN    string
}

// SQLSource reads coding results and precomputed coder-pair kappas from a
// relational database.
type SQLSource struct {
	db     *sql.DB
	driver string
}

// OpenSQLSource opens and pings the database described by config
func OpenSQLSource(ctx context.Context, config SQLSourceConfig) (*SQLSource, error) {
	if config.Driver != DriverPostgres && config.Driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported driver %q", config.Driver)
	}
	db, err := sql.Open(config.Driver, config.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", config.Driver, err)
	}
	if config.Driver == DriverSQLite {
		// every pooled connection to :memory: would see its own empty database
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", config.Driver, err)
	}
	log.Printf("[SQLSource] Connected using driver %s", config.Driver)
	return &SQLSource{db: db, driver: config.Driver}, nil
}

// NewSQLSource wraps an already opened database
func NewSQLSource(db *sql.DB, driver string) *SQLSource {
	return &SQLSource{db: db, driver: driver}
}

func (s *SQLSource) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS training_codes (
		workspace_id INTEGER NOT NULL,
		training_id INTEGER NOT NULL,
		training_label TEXT NOT NULL,
		unit_name TEXT NOT NULL,
		variable_id TEXT NOT NULL,
		test_person TEXT,
		code TEXT,
		score DOUBLE PRECISION
	)`,
	`CREATE TABLE IF NOT EXISTS coder_codes (
		workspace_id INTEGER NOT NULL,
		training_id INTEGER NOT NULL,
		coder_job_id INTEGER NOT NULL,
		coder_name TEXT NOT NULL,
		unit_name TEXT NOT NULL,
		variable_id TEXT NOT NULL,
		test_person TEXT,
		person_login TEXT,
		person_code TEXT,
		person_group TEXT,
		code TEXT,
		score DOUBLE PRECISION
	)`,
	`CREATE TABLE IF NOT EXISTS kappa_pairs (
		workspace_id INTEGER NOT NULL,
		training_id INTEGER NOT NULL,
		level TEXT NOT NULL,
		unit_name TEXT NOT NULL,
		variable_id TEXT NOT NULL,
		coder1_id INTEGER NOT NULL,
		coder1_name TEXT NOT NULL,
		coder2_id INTEGER NOT NULL,
		coder2_name TEXT NOT NULL,
		kappa DOUBLE PRECISION,
		agreement DOUBLE PRECISION NOT NULL,
		total_items INTEGER NOT NULL,
		valid_pairs INTEGER NOT NULL
	)`,
}

// EnsureSchema creates the tables read by the source if they are missing
func (s *SQLSource) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// placeholder returns the n-th (1-based) bind parameter for the driver
func (s *SQLSource) placeholder(n int) string {
	if s.driver == DriverPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

type itemKey struct {
	unit, variable, person, login string
	hasPerson, hasLogin           bool
}

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func nullableFloat(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	v := nf.Float64
	return &v
}

// FetchCrossTrainingComparisons returns one row per item scored by any of the
// requested trainings, with one entry per training in request order.
func (s *SQLSource) FetchCrossTrainingComparisons(ctx context.Context, workspaceID int, trainingIDs []int) ([]models.CrossSourceComparison, error) {
	if len(trainingIDs) < 2 {
		return nil, fmt.Errorf("at least two trainings are required, got %d", len(trainingIDs))
	}

	args := []interface{}{workspaceID}
	marks := make([]string, len(trainingIDs))
	for i, id := range trainingIDs {
		args = append(args, id)
		marks[i] = s.placeholder(i + 2)
	}
	query := fmt.Sprintf(`
		SELECT training_id, training_label, unit_name, variable_id, test_person, code, score
		FROM training_codes
		WHERE workspace_id = %s AND training_id IN (%s)
		ORDER BY unit_name, variable_id, test_person, training_id`,
		s.placeholder(1), strings.Join(marks, ", "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query training codes: %w", err)
	}
	defer rows.Close()

	type item struct {
		rec     models.CrossSourceComparison
		entries map[int]models.SourceEntry
	}
	labels := make(map[int]string)
	index := make(map[itemKey]*item)
	var order []*item

	for rows.Next() {
		var (
			trainingID         int
			label, unit, varID string
			person, code       sql.NullString
			score              sql.NullFloat64
		)
		if err := rows.Scan(&trainingID, &label, &unit, &varID, &person, &code, &score); err != nil {
			return nil, fmt.Errorf("scan training code: %w", err)
		}
		labels[trainingID] = label

		key := itemKey{unit: unit, variable: varID, person: person.String, hasPerson: person.Valid}
		it, ok := index[key]
		if !ok {
			it = &item{
				rec:     models.CrossSourceComparison{UnitName: unit, VariableID: varID, TestPerson: nullableString(person)},
				entries: make(map[int]models.SourceEntry),
			}
			index[key] = it
			order = append(order, it)
		}
		it.entries[trainingID] = models.SourceEntry{
			SourceID:    trainingID,
			SourceLabel: label,
			Code:        nullableString(code),
			Score:       nullableFloat(score),
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate training codes: %w", err)
	}

	result := make([]models.CrossSourceComparison, 0, len(order))
	for _, it := range order {
		rec := it.rec
		rec.Sources = make([]models.SourceEntry, len(trainingIDs))
		for i, id := range trainingIDs {
			entry, ok := it.entries[id]
			if !ok {
				entry = models.SourceEntry{SourceID: id, SourceLabel: labels[id]}
			}
			rec.Sources[i] = entry
		}
		result = append(result, rec)
	}
	return result, nil
}

// FetchWithinTrainingComparisons returns one row per item of the training with
// an entry for every coder of the training, ordered by coder job id.
func (s *SQLSource) FetchWithinTrainingComparisons(ctx context.Context, workspaceID, trainingID int) ([]models.WithinTrainingComparison, error) {
	query := fmt.Sprintf(`
		SELECT coder_job_id, coder_name, unit_name, variable_id, test_person,
			person_login, person_code, person_group, code, score
		FROM coder_codes
		WHERE workspace_id = %s AND training_id = %s
		ORDER BY unit_name, variable_id, test_person, person_login, coder_job_id`,
		s.placeholder(1), s.placeholder(2))

	rows, err := s.db.QueryContext(ctx, query, workspaceID, trainingID)
	if err != nil {
		return nil, fmt.Errorf("query coder codes: %w", err)
	}
	defer rows.Close()

	type item struct {
		rec     models.WithinTrainingComparison
		entries map[int]models.CoderEntry
	}
	coderNames := make(map[int]string)
	var coderIDs []int
	index := make(map[itemKey]*item)
	var order []*item

	for rows.Next() {
		var (
			coderID                    int
			coderName, unit, varID     string
			person, login, pcode, pgrp sql.NullString
			code                       sql.NullString
			score                      sql.NullFloat64
		)
		if err := rows.Scan(&coderID, &coderName, &unit, &varID, &person, &login, &pcode, &pgrp, &code, &score); err != nil {
			return nil, fmt.Errorf("scan coder code: %w", err)
		}
		if _, seen := coderNames[coderID]; !seen {
			coderIDs = append(coderIDs, coderID)
		}
		coderNames[coderID] = coderName

		key := itemKey{unit: unit, variable: varID, person: person.String, hasPerson: person.Valid, login: login.String, hasLogin: login.Valid}
		it, ok := index[key]
		if !ok {
			it = &item{
				rec: models.WithinTrainingComparison{
					UnitName:    unit,
					VariableID:  varID,
					TestPerson:  nullableString(person),
					PersonLogin: nullableString(login),
					PersonCode:  nullableString(pcode),
					PersonGroup: nullableString(pgrp),
				},
				entries: make(map[int]models.CoderEntry),
			}
			index[key] = it
			order = append(order, it)
		}
		it.entries[coderID] = models.CoderEntry{
			CoderJobID: coderID,
			CoderName:  coderName,
			Code:       nullableString(code),
			Score:      nullableFloat(score),
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate coder codes: %w", err)
	}

	sort.Ints(coderIDs)
	result := make([]models.WithinTrainingComparison, 0, len(order))
	for _, it := range order {
		rec := it.rec
		rec.Coders = make([]models.CoderEntry, len(coderIDs))
		for i, id := range coderIDs {
			entry, ok := it.entries[id]
			if !ok {
				entry = models.CoderEntry{CoderJobID: id, CoderName: coderNames[id]}
			}
			rec.Coders[i] = entry
		}
		result = append(result, rec)
	}
	return result, nil
}

// FetchKappaStatistics loads the precomputed coder pairs for the training and
// level and summarises them over every coder of the training.
func (s *SQLSource) FetchKappaStatistics(ctx context.Context, workspaceID, trainingID int, weighted bool, level models.Level) (*models.KappaStatistics, error) {
	variables, err := s.kappaVariables(ctx, workspaceID, trainingID, level)
	if err != nil {
		return nil, err
	}
	rows, err := s.FetchWithinTrainingComparisons(ctx, workspaceID, trainingID)
	if err != nil {
		return nil, err
	}
	comparisons := BuildWithinTrainingComparisons(rows)
	all := state.NewSourceSelection(DiscoverCoders(comparisons)...)

	return &models.KappaStatistics{
		Variables:        variables,
		WorkspaceSummary: SummarizeKappa(variables, comparisons, all, models.WeightingFor(weighted)),
	}, nil
}

func (s *SQLSource) kappaVariables(ctx context.Context, workspaceID, trainingID int, level models.Level) ([]models.KappaVariable, error) {
	query := fmt.Sprintf(`
		SELECT unit_name, variable_id, coder1_id, coder1_name, coder2_id, coder2_name,
			kappa, agreement, total_items, valid_pairs
		FROM kappa_pairs
		WHERE workspace_id = %s AND training_id = %s AND level = %s
		ORDER BY unit_name, variable_id, coder1_id, coder2_id`,
		s.placeholder(1), s.placeholder(2), s.placeholder(3))

	rows, err := s.db.QueryContext(ctx, query, workspaceID, trainingID, string(level))
	if err != nil {
		return nil, fmt.Errorf("query kappa pairs: %w", err)
	}
	defer rows.Close()

	variables := []models.KappaVariable{}
	for rows.Next() {
		var (
			unit, varID string
			p           models.KappaCoderPair
			kappa       sql.NullFloat64
		)
		if err := rows.Scan(&unit, &varID, &p.Coder1ID, &p.Coder1Name, &p.Coder2ID, &p.Coder2Name,
			&kappa, &p.Agreement, &p.TotalItems, &p.ValidPairs); err != nil {
			return nil, fmt.Errorf("scan kappa pair: %w", err)
		}
		p.Kappa = nullableFloat(kappa)

		last := len(variables) - 1
		if last < 0 || variables[last].UnitName != unit || variables[last].VariableID != varID {
			variables = append(variables, models.KappaVariable{UnitName: unit, VariableID: varID})
			last++
		}
		variables[last].CoderPairs = append(variables[last].CoderPairs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate kappa pairs: %w", err)
	}
	return variables, nil
}
