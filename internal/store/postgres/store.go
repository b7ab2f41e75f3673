// Package postgres implements the pathway store on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/compath-server/internal/domain"
	store "github.com/compath-server/internal/store/model"
)

// Store implements domain.Store on a pgx connection pool.
type Store struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// New creates a PostgreSQL-backed pathway store. The schema must already
// exist (created via migrations).
func New(db *pgxpool.Pool, logger *logrus.Logger) *Store {
	return &Store{
		db:  db,
		log: logger,
	}
}

const pathwayColumns = `
	w.resource_id, w.name, w.url,
	COALESCE(array_agg(DISTINCT p.hgnc_symbol) FILTER (WHERE p.hgnc_symbol IS NOT NULL), '{}')`

const pathwayJoins = `
	LEFT JOIN pathway_proteins pp ON pp.pathway_id = w.resource_id
	LEFT JOIN proteins p ON p.id = pp.protein_id`

func scanPathway(row pgx.Row) (*store.Pathway, error) {
	var pathway store.Pathway
	var symbols []string

	if err := row.Scan(&pathway.ID, &pathway.Title, &pathway.Link, &symbols); err != nil {
		return nil, err
	}
	pathway.Genes = domain.NewGeneSet(symbols...)
	return &pathway, nil
}

// PathwayByID fetches a pathway and its gene set by resource identifier.
func (s *Store) PathwayByID(ctx context.Context, resourceID string) (domain.Pathway, error) {
	query := `
		SELECT` + pathwayColumns + `
		FROM pathways w` + pathwayJoins + `
		WHERE w.resource_id = $1
		GROUP BY w.resource_id, w.name, w.url`

	pathway, err := scanPathway(s.db.QueryRow(ctx, query, resourceID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("pathway %q: %w", resourceID, domain.ErrNotFound)
		}
		s.log.WithFields(logrus.Fields{
			"pathway_id": resourceID,
			"error":      err,
		}).Error("Failed to get pathway by ID")
		return nil, fmt.Errorf("getting pathway by ID: %w", err)
	}
	return pathway, nil
}

// PathwayByName fetches the first pathway with the given name. Names are
// not guaranteed unique.
func (s *Store) PathwayByName(ctx context.Context, name string) (domain.Pathway, error) {
	query := `
		SELECT` + pathwayColumns + `
		FROM pathways w` + pathwayJoins + `
		WHERE w.name = $1
		GROUP BY w.resource_id, w.name, w.url
		ORDER BY w.resource_id
		LIMIT 1`

	pathway, err := scanPathway(s.db.QueryRow(ctx, query, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("pathway named %q: %w", name, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("getting pathway by name: %w", err)
	}
	return pathway, nil
}

// AllPathways returns every pathway with its gene set.
func (s *Store) AllPathways(ctx context.Context) ([]domain.Pathway, error) {
	query := `
		SELECT` + pathwayColumns + `
		FROM pathways w` + pathwayJoins + `
		GROUP BY w.resource_id, w.name, w.url`

	return s.queryPathways(ctx, query)
}

// SearchPathways returns pathways whose name contains the query string,
// case-insensitively. limit <= 0 returns all matches.
func (s *Store) SearchPathways(ctx context.Context, match string, limit int) ([]domain.Pathway, error) {
	query := `
		SELECT` + pathwayColumns + `
		FROM pathways w` + pathwayJoins + `
		WHERE w.name ILIKE '%' || $1 || '%'
		GROUP BY w.resource_id, w.name, w.url`
	args := []any{match}

	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	return s.queryPathways(ctx, query, args...)
}

func (s *Store) queryPathways(ctx context.Context, query string, args ...any) ([]domain.Pathway, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying pathways: %w", err)
	}
	defer rows.Close()

	var pathways []domain.Pathway
	for rows.Next() {
		pathway, err := scanPathway(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning pathway row: %w", err)
		}
		pathways = append(pathways, pathway)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pathway rows: %w", err)
	}
	return pathways, nil
}

// CountPathways counts the pathways in the database.
func (s *Store) CountPathways(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM pathways`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting pathways: %w", err)
	}
	return count, nil
}

const proteinSelect = `
	SELECT p.id, p.hgnc_symbol,
	       COALESCE(array_agg(pp.pathway_id) FILTER (WHERE pp.pathway_id IS NOT NULL), '{}')
	FROM proteins p
	LEFT JOIN pathway_proteins pp ON pp.protein_id = p.id`

func scanProtein(row pgx.Row) (*store.Protein, error) {
	var protein store.Protein
	if err := row.Scan(&protein.RowID, &protein.Symbol, &protein.Pathways); err != nil {
		return nil, err
	}
	return &protein, nil
}

// ProteinsBySymbols resolves a set of HGNC symbols to protein rows with
// their pathway memberships in a single query.
func (s *Store) ProteinsBySymbols(ctx context.Context, symbols []string) ([]domain.Protein, error) {
	if len(symbols) == 0 {
		return nil, nil
	}

	query := proteinSelect + `
		WHERE p.hgnc_symbol = ANY($1)
		GROUP BY p.id, p.hgnc_symbol`

	rows, err := s.db.Query(ctx, query, symbols)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"symbols": len(symbols),
			"error":   err,
		}).Error("Failed bulk protein lookup")
		return nil, fmt.Errorf("querying proteins by symbols: %w", err)
	}
	defer rows.Close()

	var proteins []domain.Protein
	for rows.Next() {
		protein, err := scanProtein(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning protein row: %w", err)
		}
		proteins = append(proteins, protein)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating protein rows: %w", err)
	}
	return proteins, nil
}

// ProteinBySymbol fetches the first protein row with the given symbol.
func (s *Store) ProteinBySymbol(ctx context.Context, symbol string) (domain.Protein, error) {
	query := proteinSelect + `
		WHERE p.hgnc_symbol = $1
		GROUP BY p.id, p.hgnc_symbol
		ORDER BY p.id
		LIMIT 1`

	protein, err := scanProtein(s.db.QueryRow(ctx, query, symbol))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("protein %q: %w", symbol, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("getting protein by symbol: %w", err)
	}
	return protein, nil
}

// SearchProteins returns proteins whose symbol contains the query string,
// case-insensitively. limit <= 0 returns all matches.
func (s *Store) SearchProteins(ctx context.Context, match string, limit int) ([]domain.Protein, error) {
	query := proteinSelect + `
		WHERE p.hgnc_symbol ILIKE '%' || $1 || '%'
		GROUP BY p.id, p.hgnc_symbol`
	args := []any{match}

	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("searching proteins: %w", err)
	}
	defer rows.Close()

	var proteins []domain.Protein
	for rows.Next() {
		protein, err := scanProtein(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning protein row: %w", err)
		}
		proteins = append(proteins, protein)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating protein rows: %w", err)
	}
	return proteins, nil
}

// CountProteins counts the protein rows in the database.
func (s *Store) CountProteins(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM proteins`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting proteins: %w", err)
	}
	return count, nil
}

// LoadGeneSets bulk-loads pathway records and their memberships in one
// transaction. Pathways are upserted by resource identifier; protein rows
// are created for symbols not seen before; memberships for the loaded
// pathways are replaced.
func (s *Store) LoadGeneSets(ctx context.Context, records []domain.PathwayRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning load transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, record := range records {
		_, err := tx.Exec(ctx, `
			INSERT INTO pathways (resource_id, name, url)
			VALUES ($1, $2, $3)
			ON CONFLICT (resource_id) DO UPDATE SET name = EXCLUDED.name, url = EXCLUDED.url`,
			record.ResourceID, record.Name, record.URL,
		)
		if err != nil {
			return fmt.Errorf("upserting pathway %q: %w", record.ResourceID, err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM pathway_proteins WHERE pathway_id = $1`, record.ResourceID); err != nil {
			return fmt.Errorf("clearing memberships for %q: %w", record.ResourceID, err)
		}
	}

	symbolIDs, err := s.ensureProteins(ctx, tx, records)
	if err != nil {
		return err
	}

	memberships := make([][]any, 0)
	for _, record := range records {
		for symbol := range domain.NewGeneSet(record.Genes...) {
			memberships = append(memberships, []any{record.ResourceID, symbolIDs[symbol]})
		}
	}

	if len(memberships) > 0 {
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"pathway_proteins"},
			[]string{"pathway_id", "protein_id"},
			pgx.CopyFromRows(memberships),
		)
		if err != nil {
			return fmt.Errorf("copying memberships: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing load transaction: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"pathways":    len(records),
		"memberships": len(memberships),
	}).Info("Gene sets loaded")

	return nil
}

// ensureProteins returns a symbol-to-row-id map covering every gene in the
// records, creating rows for unknown symbols.
func (s *Store) ensureProteins(ctx context.Context, tx pgx.Tx, records []domain.PathwayRecord) (map[string]int64, error) {
	var all []string
	for _, record := range records {
		all = append(all, record.Genes...)
	}
	wanted := domain.NewGeneSet(all...)

	symbolIDs := make(map[string]int64, len(wanted))

	rows, err := tx.Query(ctx, `SELECT id, hgnc_symbol FROM proteins WHERE hgnc_symbol = ANY($1)`, wanted.Symbols())
	if err != nil {
		return nil, fmt.Errorf("querying existing proteins: %w", err)
	}
	for rows.Next() {
		var id int64
		var symbol string
		if err := rows.Scan(&id, &symbol); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning existing protein: %w", err)
		}
		// Keep the first row per symbol; duplicate-symbol rows are legal
		// but the loader links memberships through one of them.
		if _, ok := symbolIDs[symbol]; !ok {
			symbolIDs[symbol] = id
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating existing proteins: %w", err)
	}

	for symbol := range wanted {
		if _, ok := symbolIDs[symbol]; ok {
			continue
		}
		var id int64
		if err := tx.QueryRow(ctx, `INSERT INTO proteins (hgnc_symbol) VALUES ($1) RETURNING id`, symbol).Scan(&id); err != nil {
			return nil, fmt.Errorf("inserting protein %q: %w", symbol, err)
		}
		symbolIDs[symbol] = id
	}

	return symbolIDs, nil
}

// Close releases the underlying pool.
func (s *Store) Close() error {
	s.db.Close()
	return nil
}
