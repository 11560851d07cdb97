package topology

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// keyedTable describes a table whose rows are addressed by a natural key and
// which owns the rows of a child table through a foreign key column.
//
// Table and column names are compile-time constants; only values are bound.
type keyedTable struct {
	table        string
	keyColumn    string
	parentColumn string // empty for the root table
	columns      []string
	childTable   string
	childColumn  string
	notFound     error
	exists       error
}

var (
	networkTable = keyedTable{
		table:       "networks",
		keyColumn:   "code",
		columns:     []string{"name", "description"},
		childTable:  "gateways",
		childColumn: "network_id",
		notFound:    ErrNetworkNotFound,
		exists:      ErrNetworkExists,
	}

	gatewayTable = keyedTable{
		table:        "gateways",
		keyColumn:    "mac_address",
		parentColumn: "network_id",
		columns:      []string{"name", "description"},
		childTable:   "sensors",
		childColumn:  "gateway_id",
		notFound:     ErrGatewayNotFound,
		exists:       ErrGatewayExists,
	}

	sensorTable = keyedTable{
		table:        "sensors",
		keyColumn:    "mac_address",
		parentColumn: "gateway_id",
		columns:      []string{"name", "description", "variable", "unit"},
		childTable:   "measurements",
		childColumn:  "sensor_id",
		notFound:     ErrSensorNotFound,
		exists:       ErrSensorExists,
	}
)

// keyedRow identifies an existing row of a keyedTable.
type keyedRow struct {
	id       int64
	parentID int64
	key      string
}

// rekey writes values onto row, renaming it to newKey when newKey is set.
//
// Without a new key the row is updated in place and its children are not
// touched. With a new key the steps are, in this order:
//
//  1. fail with the table's conflict error if newKey is taken anywhere
//  2. insert a replacement row under the same parent
//  3. move every child of the old row to the replacement
//  4. delete the old row
//
// The old row must only be deleted once it has no children left, otherwise
// ON DELETE CASCADE would take them with it. tx must be the caller's open
// transaction so that the whole sequence commits or rolls back together.
// It returns the id of the row now holding the payload.
func (t keyedTable) rekey(ctx context.Context, tx *sql.Tx, row keyedRow, newKey string, values []any) (int64, error) {
	if newKey == "" || newKey == row.key {
		return row.id, t.updateInPlace(ctx, tx, row.id, values)
	}

	if err := t.ensureKeyFree(ctx, tx, newKey); err != nil {
		return 0, err
	}

	newID, err := t.insert(ctx, tx, row.parentID, newKey, values)
	if err != nil {
		return 0, err
	}

	if _, err := t.reparentChildren(ctx, tx, row.id, newID); err != nil {
		return 0, err
	}

	if err := t.deleteByID(ctx, tx, row.id); err != nil {
		return 0, err
	}
	return newID, nil
}

// ensureKeyFree reports the table's conflict error when key is in use.
func (t keyedTable) ensureKeyFree(ctx context.Context, q querier, key string) error {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = ?", t.table, t.keyColumn)

	var n int
	if err := q.QueryRowContext(ctx, query, key).Scan(&n); err != nil {
		return fmt.Errorf("checking %s %s: %w", t.table, key, err)
	}
	if n > 0 {
		return t.exists
	}
	return nil
}

func (t keyedTable) insert(ctx context.Context, q querier, parentID int64, key string, values []any) (int64, error) {
	cols := make([]string, 0, len(t.columns)+2)
	args := make([]any, 0, len(t.columns)+2)
	if t.parentColumn != "" {
		cols = append(cols, t.parentColumn)
		args = append(args, parentID)
	}
	cols = append(cols, t.keyColumn)
	args = append(args, key)
	cols = append(cols, t.columns...)
	args = append(args, values...)

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		t.table, strings.Join(cols, ", "), placeholders(len(cols)))

	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueConstraintError(err) {
			return 0, t.exists
		}
		return 0, fmt.Errorf("inserting into %s %s: %w", t.table, key, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading id for %s %s: %w", t.table, key, err)
	}
	return id, nil
}

func (t keyedTable) updateInPlace(ctx context.Context, q querier, id int64, values []any) error {
	sets := make([]string, 0, len(t.columns)+1)
	for _, c := range t.columns {
		sets = append(sets, c+" = ?")
	}
	sets = append(sets, "updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')")

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", t.table, strings.Join(sets, ", "))

	args := append(append(make([]any, 0, len(values)+1), values...), id)
	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating %s %d: %w", t.table, id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return t.notFound
	}
	return nil
}

// reparentChildren points every child of fromID at toID and returns how many
// rows moved.
func (t keyedTable) reparentChildren(ctx context.Context, q querier, fromID, toID int64) (int64, error) {
	query := fmt.Sprintf("UPDATE %s SET %s = ? WHERE %s = ?", t.childTable, t.childColumn, t.childColumn)

	result, err := q.ExecContext(ctx, query, toID, fromID)
	if err != nil {
		return 0, fmt.Errorf("moving %s from %s %d to %d: %w", t.childTable, t.table, fromID, toID, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	return n, nil
}

func (t keyedTable) deleteByID(ctx context.Context, q querier, id int64) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", t.table)

	result, err := q.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deleting from %s %d: %w", t.table, id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return t.notFound
	}
	return nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
