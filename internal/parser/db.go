package parser

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	"github.com/jmoiron/sqlx"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

var tableNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// DatabaseProvider reads mixed mapping entries from a SQL table with the
// columns id, map_type, name, address and tag.
type DatabaseProvider struct {
	db    *sqlx.DB
	table string
}

type mappingRow struct {
	Type    string         `db:"map_type"`
	Name    string         `db:"name"`
	Address string         `db:"address"`
	Tag     sql.NullString `db:"tag"`
}

func NewDatabaseProvider(driver, dsn, table string) (*DatabaseProvider, error) {
	if !tableNameRegex.MatchString(table) {
		return nil, fmt.Errorf("invalid mapping table name %q", table)
	}
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s database: %w", driver, err)
	}
	return &DatabaseProvider{db: db, table: table}, nil
}

func (p *DatabaseProvider) Close() error {
	return p.db.Close()
}

// Load returns the table rows as mixed entries in id order.
func (p *DatabaseProvider) Load(ctx context.Context) ([]MixedEntry, error) {
	query := fmt.Sprintf("SELECT map_type, name, address, tag FROM %s ORDER BY id ASC", p.table)
	var rows []mappingRow
	if err := p.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to load mappings from %s: %w", p.table, err)
	}

	entries := make([]MixedEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, MixedEntry{
			Type:    row.Type,
			Name:    row.Name,
			Address: row.Address,
			Tag:     row.Tag.String,
		})
	}
	return entries, nil
}

// LoadDatabase connects, loads every row and converts it into records.
func LoadDatabase(ctx context.Context, driver, dsn, table string) (*Result, error) {
	p, err := NewDatabaseProvider(driver, dsn, table)
	if err != nil {
		return nil, err
	}
	defer p.Close()

	entries, err := p.Load(ctx)
	if err != nil {
		return nil, err
	}
	return ParseMixedEntries(entries, driver+":"+table), nil
}
