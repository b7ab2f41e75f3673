// Package sqlite implements the pathway store on a single SQLite file,
// for adapters that do not need a database server.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/compath-server/internal/domain"
	store "github.com/compath-server/internal/store/model"
)

// Store implements domain.Store on database/sql with the sqlite driver.
type Store struct {
	db  *sql.DB
	log *logrus.Logger
}

// New creates a SQLite-backed pathway store, creating the database file
// and schema if they do not exist.
func New(dbPath string, logger *logrus.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return NewWithDB(db, logger), nil
}

// NewWithDB wraps an existing database handle. The schema is assumed to
// exist; used by tests that inject a mock or shared handle.
func NewWithDB(db *sql.DB, logger *logrus.Logger) *Store {
	if logger == nil {
		logger = logrus.New()
	}
	return &Store{db: db, log: logger}
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS pathways (
		resource_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		url TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_pathways_name ON pathways (name);

	CREATE TABLE IF NOT EXISTS proteins (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		hgnc_symbol TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_proteins_hgnc_symbol ON proteins (hgnc_symbol);

	CREATE TABLE IF NOT EXISTS pathway_proteins (
		pathway_id TEXT NOT NULL REFERENCES pathways (resource_id) ON DELETE CASCADE,
		protein_id INTEGER NOT NULL REFERENCES proteins (id) ON DELETE CASCADE,
		PRIMARY KEY (pathway_id, protein_id)
	);
	CREATE INDEX IF NOT EXISTS idx_pathway_proteins_protein ON pathway_proteins (protein_id);
	`

	_, err := db.Exec(schema)
	return err
}

// placeholders renders n comma-separated "?" markers.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// PathwayByID fetches a pathway and its gene set by resource identifier.
func (s *Store) PathwayByID(ctx context.Context, resourceID string) (domain.Pathway, error) {
	var pathway store.Pathway
	err := s.db.QueryRowContext(ctx,
		`SELECT resource_id, name, url FROM pathways WHERE resource_id = ?`, resourceID,
	).Scan(&pathway.ID, &pathway.Title, &pathway.Link)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("pathway %q: %w", resourceID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting pathway by ID: %w", err)
	}

	pathway.Genes, err = s.geneSetFor(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	return &pathway, nil
}

// PathwayByName fetches the first pathway with the given name.
func (s *Store) PathwayByName(ctx context.Context, name string) (domain.Pathway, error) {
	var pathway store.Pathway
	err := s.db.QueryRowContext(ctx,
		`SELECT resource_id, name, url FROM pathways WHERE name = ? ORDER BY resource_id LIMIT 1`, name,
	).Scan(&pathway.ID, &pathway.Title, &pathway.Link)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("pathway named %q: %w", name, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting pathway by name: %w", err)
	}

	pathway.Genes, err = s.geneSetFor(ctx, pathway.ID)
	if err != nil {
		return nil, err
	}
	return &pathway, nil
}

func (s *Store) geneSetFor(ctx context.Context, resourceID string) (domain.GeneSet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT p.hgnc_symbol
		FROM proteins p
		JOIN pathway_proteins pp ON pp.protein_id = p.id
		WHERE pp.pathway_id = ?`, resourceID)
	if err != nil {
		return nil, fmt.Errorf("querying gene set: %w", err)
	}
	defer rows.Close()

	genes := make(domain.GeneSet)
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, fmt.Errorf("scanning gene symbol: %w", err)
		}
		genes[symbol] = struct{}{}
	}
	return genes, rows.Err()
}

// membershipIndex loads every pathway-to-symbol edge, keyed by pathway.
func (s *Store) membershipIndex(ctx context.Context) (map[string]domain.GeneSet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pp.pathway_id, p.hgnc_symbol
		FROM pathway_proteins pp
		JOIN proteins p ON p.id = pp.protein_id`)
	if err != nil {
		return nil, fmt.Errorf("querying memberships: %w", err)
	}
	defer rows.Close()

	index := make(map[string]domain.GeneSet)
	for rows.Next() {
		var pathwayID, symbol string
		if err := rows.Scan(&pathwayID, &symbol); err != nil {
			return nil, fmt.Errorf("scanning membership: %w", err)
		}
		if index[pathwayID] == nil {
			index[pathwayID] = make(domain.GeneSet)
		}
		index[pathwayID][symbol] = struct{}{}
	}
	return index, rows.Err()
}

// AllPathways returns every pathway with its gene set.
func (s *Store) AllPathways(ctx context.Context) ([]domain.Pathway, error) {
	index, err := s.membershipIndex(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT resource_id, name, url FROM pathways`)
	if err != nil {
		return nil, fmt.Errorf("querying pathways: %w", err)
	}
	defer rows.Close()

	var pathways []domain.Pathway
	for rows.Next() {
		var pathway store.Pathway
		if err := rows.Scan(&pathway.ID, &pathway.Title, &pathway.Link); err != nil {
			return nil, fmt.Errorf("scanning pathway row: %w", err)
		}
		pathway.Genes = index[pathway.ID]
		if pathway.Genes == nil {
			pathway.Genes = make(domain.GeneSet)
		}
		pathways = append(pathways, &pathway)
	}
	return pathways, rows.Err()
}

// SearchPathways returns pathways whose name contains the query string.
// limit <= 0 returns all matches.
func (s *Store) SearchPathways(ctx context.Context, match string, limit int) ([]domain.Pathway, error) {
	query := `SELECT resource_id, name, url FROM pathways WHERE name LIKE '%' || ? || '%'`
	args := []any{match}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("searching pathways: %w", err)
	}
	defer rows.Close()

	var pathways []*store.Pathway
	for rows.Next() {
		var pathway store.Pathway
		if err := rows.Scan(&pathway.ID, &pathway.Title, &pathway.Link); err != nil {
			return nil, fmt.Errorf("scanning pathway row: %w", err)
		}
		pathways = append(pathways, &pathway)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	results := make([]domain.Pathway, 0, len(pathways))
	for _, pathway := range pathways {
		pathway.Genes, err = s.geneSetFor(ctx, pathway.ID)
		if err != nil {
			return nil, err
		}
		results = append(results, pathway)
	}
	return results, nil
}

// CountPathways counts the pathways in the database.
func (s *Store) CountPathways(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pathways`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting pathways: %w", err)
	}
	return count, nil
}

// ProteinsBySymbols resolves a set of HGNC symbols to protein rows with
// their pathway memberships in a single query.
func (s *Store) ProteinsBySymbols(ctx context.Context, symbols []string) ([]domain.Protein, error) {
	if len(symbols) == 0 {
		return nil, nil
	}

	args := make([]any, len(symbols))
	for i, symbol := range symbols {
		args[i] = symbol
	}

	query := fmt.Sprintf(`
		SELECT p.id, p.hgnc_symbol, pp.pathway_id
		FROM proteins p
		LEFT JOIN pathway_proteins pp ON pp.protein_id = p.id
		WHERE p.hgnc_symbol IN (%s)
		ORDER BY p.id`, placeholders(len(symbols)))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"symbols": len(symbols),
			"error":   err,
		}).Error("Failed bulk protein lookup")
		return nil, fmt.Errorf("querying proteins by symbols: %w", err)
	}
	defer rows.Close()

	return foldProteinRows(rows)
}

// foldProteinRows groups (protein, pathway) join rows by protein.
func foldProteinRows(rows *sql.Rows) ([]domain.Protein, error) {
	var proteins []domain.Protein
	byID := make(map[int64]*store.Protein)

	for rows.Next() {
		var id int64
		var symbol string
		var pathwayID sql.NullString
		if err := rows.Scan(&id, &symbol, &pathwayID); err != nil {
			return nil, fmt.Errorf("scanning protein row: %w", err)
		}

		protein, ok := byID[id]
		if !ok {
			protein = &store.Protein{RowID: id, Symbol: symbol}
			byID[id] = protein
			proteins = append(proteins, protein)
		}
		if pathwayID.Valid {
			protein.Pathways = append(protein.Pathways, pathwayID.String)
		}
	}
	return proteins, rows.Err()
}

// ProteinBySymbol fetches the first protein row with the given symbol.
func (s *Store) ProteinBySymbol(ctx context.Context, symbol string) (domain.Protein, error) {
	proteins, err := s.ProteinsBySymbols(ctx, []string{symbol})
	if err != nil {
		return nil, err
	}
	if len(proteins) == 0 {
		return nil, fmt.Errorf("protein %q: %w", symbol, domain.ErrNotFound)
	}
	return proteins[0], nil
}

// SearchProteins returns proteins whose symbol contains the query string.
// limit <= 0 returns all matches.
func (s *Store) SearchProteins(ctx context.Context, match string, limit int) ([]domain.Protein, error) {
	query := `
		SELECT p.id, p.hgnc_symbol, pp.pathway_id
		FROM proteins p
		LEFT JOIN pathway_proteins pp ON pp.protein_id = p.id
		WHERE p.id IN (
			SELECT id FROM proteins WHERE hgnc_symbol LIKE '%' || ? || '%'`
	args := []any{match}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	query += `)
		ORDER BY p.id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("searching proteins: %w", err)
	}
	defer rows.Close()

	return foldProteinRows(rows)
}

// CountProteins counts the protein rows in the database.
func (s *Store) CountProteins(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM proteins`).Scan(&count); err != nil {
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning load transaction: %w", err)
	}
	defer tx.Rollback()

	for _, record := range records {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO pathways (resource_id, name, url) VALUES (?, ?, ?)
			ON CONFLICT (resource_id) DO UPDATE SET name = excluded.name, url = excluded.url`,
			record.ResourceID, record.Name, record.URL,
		)
		if err != nil {
			return fmt.Errorf("upserting pathway %q: %w", record.ResourceID, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM pathway_proteins WHERE pathway_id = ?`, record.ResourceID); err != nil {
			return fmt.Errorf("clearing memberships for %q: %w", record.ResourceID, err)
		}
	}

	symbolIDs, err := ensureProteins(ctx, tx, records)
	if err != nil {
		return err
	}

	insert, err := tx.PrepareContext(ctx, `INSERT INTO pathway_proteins (pathway_id, protein_id) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing membership insert: %w", err)
	}
	defer insert.Close()

	memberships := 0
	for _, record := range records {
		for symbol := range domain.NewGeneSet(record.Genes...) {
			if _, err := insert.ExecContext(ctx, record.ResourceID, symbolIDs[symbol]); err != nil {
				return fmt.Errorf("inserting membership %s/%s: %w", record.ResourceID, symbol, err)
			}
			memberships++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing load transaction: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"pathways":    len(records),
		"memberships": memberships,
	}).Info("Gene sets loaded")

	return nil
}

func ensureProteins(ctx context.Context, tx *sql.Tx, records []domain.PathwayRecord) (map[string]int64, error) {
	var all []string
	for _, record := range records {
		all = append(all, record.Genes...)
	}
	wanted := domain.NewGeneSet(all...)
	symbols := wanted.Symbols()

	args := make([]any, len(symbols))
	for i, symbol := range symbols {
		args[i] = symbol
	}

	symbolIDs := make(map[string]int64, len(wanted))

	query := fmt.Sprintf(`SELECT id, hgnc_symbol FROM proteins WHERE hgnc_symbol IN (%s)`, placeholders(len(symbols)))
	rows, err := tx.QueryContext(ctx, query, args...)
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
		result, err := tx.ExecContext(ctx, `INSERT INTO proteins (hgnc_symbol) VALUES (?)`, symbol)
		if err != nil {
			return nil, fmt.Errorf("inserting protein %q: %w", symbol, err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("reading protein insert ID: %w", err)
		}
		symbolIDs[symbol] = id
	}

	return symbolIDs, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
