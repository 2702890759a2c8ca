package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/resource-api/internal/schema"
)

// Filter is a substring match on one column.
type Filter struct {
	Field string
	Value string
}

// ListParams selects one page of a resource.  Sort must already be a
// sortable column of the schema.
type ListParams struct {
	Filters []Filter
	Sort    string
	Desc    bool
	Limit   int
	Offset  int
}

// ResourceRepo is the table gateway for one schema.  Records it returns
// still carry the password column; stripping it is the caller's job.
type ResourceRepo struct {
	db     *sql.DB
	schema *schema.Schema
	cols   string
}

func NewResourceRepo(db *sql.DB, s *schema.Schema) *ResourceRepo {
	quoted := make([]string, 0, len(s.Columns()))
	for _, c := range s.Columns() {
		quoted = append(quoted, schema.QuoteIdent(c))
	}
	return &ResourceRepo{db: db, schema: s, cols: strings.Join(quoted, ", ")}
}

func (r *ResourceRepo) table() string { return schema.QuoteIdent(r.schema.Table()) }

// escapeLike neutralises LIKE wildcards in user input.
func escapeLike(v string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(v)
}

func (r *ResourceRepo) where(filters []Filter) (string, []any) {
	if len(filters) == 0 {
		return "", nil
	}
	conds := make([]string, 0, len(filters))
	args := make([]any, 0, len(filters))
	for _, f := range filters {
		conds = append(conds, schema.QuoteIdent(f.Field)+" LIKE ?")
		args = append(args, "%"+escapeLike(f.Value)+"%")
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns one page of matching rows and the number of rows matching
// the filters regardless of paging.
func (r *ResourceRepo) List(ctx context.Context, p ListParams) ([]schema.Record, int64, error) {
	where, args := r.where(p.Filters)

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+r.table()+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	dir := "ASC"
	if p.Desc {
		dir = "DESC"
	}
	order := schema.QuoteIdent(p.Sort) + " " + dir
	if p.Sort != schema.IDField {
		order += ", `id` ASC" // stable pages on ties
	}
	q := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s LIMIT ? OFFSET ?", r.cols, r.table(), where, order)
	rows, err := r.db.QueryContext(ctx, q, append(args, p.Limit, p.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]schema.Record, 0, p.Limit)
	for rows.Next() {
		rec, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

type scanner interface{ Scan(dest ...any) error }

func (r *ResourceRepo) scan(sc scanner) (schema.Record, error) {
	vals := make([]any, len(r.schema.Columns()))
	ptrs := make([]any, len(vals))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := sc.Scan(ptrs...); err != nil {
		return nil, err
	}
	return r.schema.DecodeRow(vals)
}

// Get fetches a row by id.
func (r *ResourceRepo) Get(ctx context.Context, id int64) (schema.Record, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE `id` = ?", r.cols, r.table())
	rec, err := r.scan(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// FindBy fetches the first row whose field equals value.
func (r *ResourceRepo) FindBy(ctx context.Context, field string, value any) (schema.Record, error) {
	if _, ok := r.schema.Field(field); !ok {
		return nil, fmt.Errorf("%s: unknown field %q", r.schema.Name(), field)
	}
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ? LIMIT 1", r.cols, r.table(), schema.QuoteIdent(field))
	rec, err := r.scan(r.db.QueryRowContext(ctx, q, value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// assignments returns declared columns present in values, in schema order.
func (r *ResourceRepo) assignments(values schema.Record) ([]string, []any) {
	var cols []string
	var args []any
	for _, f := range r.schema.Fields() {
		if v, ok := values[f.Name]; ok {
			cols = append(cols, schema.QuoteIdent(f.Name))
			args = append(args, v)
		}
	}
	return cols, args
}

// Insert writes a new row and returns its id.
func (r *ResourceRepo) Insert(ctx context.Context, values schema.Record) (int64, error) {
	cols, args := r.assignments(values)
	var q string
	if len(cols) == 0 {
		q = "INSERT INTO " + r.table() + " () VALUES ()"
	} else {
		q = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", r.table(),
			strings.Join(cols, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "))
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, translate(r.schema, err)
	}
	return res.LastInsertId()
}

// Update writes changes to the row with the given id.  The pool runs with
// clientFoundRows, so zero affected rows means the id does not exist.
func (r *ResourceRepo) Update(ctx context.Context, id int64, changes schema.Record) error {
	cols, args := r.assignments(changes)
	if len(cols) == 0 {
		return nil
	}
	for i := range cols {
		cols[i] += " = ?"
	}
	q := fmt.Sprintf("UPDATE %s SET %s WHERE `id` = ?", r.table(), strings.Join(cols, ", "))
	res, err := r.db.ExecContext(ctx, q, append(args, id)...)
	if err != nil {
		return translate(r.schema, err)
	}
	return requireRow(res, ErrNotFound)
}

// Delete removes the row with the given id.
func (r *ResourceRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM "+r.table()+" WHERE `id` = ?", id)
	if err != nil {
		return err
	}
	return requireRow(res, ErrNotFound)
}

func requireRow(res sql.Result, none error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return none
	}
	return nil
}
