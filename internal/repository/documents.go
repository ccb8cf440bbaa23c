package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when a document does not exist
var ErrNotFound = errors.New("document not found")

// HighSentinel is appended to a prefix to form the upper bound of a prefix range
const HighSentinel = "\uf8ff"

// Querier is the subset of *pgxpool.Pool used by the document store.
// pgxmock pools satisfy it as well.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Documents is the remote document store contract
type Documents interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	Query(ctx context.Context, collection string, q Query) ([]Document, error)
	Create(ctx context.Context, collection string, data any) (string, error)
	Set(ctx context.Context, collection, id string, data any) error
	Update(ctx context.Context, collection, id string, updates ...FieldUpdate) error
}

// Document is a stored JSON document with its id
type Document struct {
	ID   string
	Data json.RawMessage
}

// Decode unmarshals the document into v and overlays the document id on its "id" field
func (d Document) Decode(v any) error {
	if err := json.Unmarshal(d.Data, v); err != nil {
		return fmt.Errorf("failed to decode document %s: %w", d.ID, err)
	}
	idOnly, err := json.Marshal(map[string]string{"id": d.ID})
	if err != nil {
		return fmt.Errorf("failed to encode document id: %w", err)
	}
	if err := json.Unmarshal(idOnly, v); err != nil {
		return fmt.Errorf("failed to decode document id %s: %w", d.ID, err)
	}
	return nil
}

// FilterOp is a comparison in a query filter
type FilterOp string

const (
	OpEqual   FilterOp = "="
	OpAtLeast FilterOp = ">="
	OpAtMost  FilterOp = "<="
)

// Filter compares a document field, read as text, against a value
type Filter struct {
	Field string
	Op    FilterOp
	Value string
}

// Equal matches documents whose field equals value
func Equal(field, value string) Filter {
	return Filter{Field: field, Op: OpEqual, Value: value}
}

// Range matches documents whose field lies in [lower, upper]
func Range(field, lower, upper string) []Filter {
	return []Filter{
		{Field: field, Op: OpAtLeast, Value: lower},
		{Field: field, Op: OpAtMost, Value: upper},
	}
}

// PrefixRange matches documents whose field starts with prefix
func PrefixRange(field, prefix string) []Filter {
	return Range(field, prefix, prefix+HighSentinel)
}

// Query selects documents in a collection
type Query struct {
	Filters    []Filter
	OrderBy    string
	Descending bool
	Limit      int
}

type updateOp int

const (
	opSet updateOp = iota
	opIncrement
	opArrayUnion
	opArrayRemove
)

// FieldUpdate is one atomic change to a document field. Path segments are separated by dots.
type FieldUpdate struct {
	Path   string
	op     updateOp
	value  any
	values []any
	delta  int64
}

// SetField replaces the value at path
func SetField(path string, value any) FieldUpdate {
	return FieldUpdate{Path: path, op: opSet, value: value}
}

// Increment adds n to the numeric value at path, treating a missing value as zero
func Increment(path string, n int64) FieldUpdate {
	return FieldUpdate{Path: path, op: opIncrement, delta: n}
}

// ArrayUnion appends each value not already present in the array at path
func ArrayUnion(path string, values ...any) FieldUpdate {
	return FieldUpdate{Path: path, op: opArrayUnion, values: values}
}

// ArrayRemove removes every occurrence of the given values from the array at path
func ArrayRemove(path string, values ...any) FieldUpdate {
	return FieldUpdate{Path: path, op: opArrayRemove, values: values}
}

// PostgresDocuments stores documents in a single JSONB table
type PostgresDocuments struct {
	db Querier
}

// NewPostgresDocuments creates a new document store
func NewPostgresDocuments(db Querier) *PostgresDocuments {
	return &PostgresDocuments{db: db}
}

// Migrate creates the documents table if it does not exist
func (r *PostgresDocuments) Migrate(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			data JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (collection, id)
		)
	`
	if _, err := r.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}
	return nil
}

// Get retrieves a document by collection and id
func (r *PostgresDocuments) Get(ctx context.Context, collection, id string) (Document, error) {
	query := `
		SELECT id, data
		FROM documents
		WHERE collection = $1 AND id = $2
	`
	var doc Document
	var data []byte
	err := r.db.QueryRow(ctx, query, collection, id).Scan(&doc.ID, &data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
		}
		return Document{}, fmt.Errorf("failed to get document: %w", err)
	}
	doc.Data = data
	return doc, nil
}

// Query retrieves documents matching all filters
func (r *PostgresDocuments) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	var sb strings.Builder
	args := []any{collection}
	sb.WriteString("SELECT id, data FROM documents WHERE collection = $1")

	for _, f := range q.Filters {
		switch f.Op {
		case OpEqual, OpAtLeast, OpAtMost:
		default:
			return nil, fmt.Errorf("unsupported filter operator %q", f.Op)
		}
		args = append(args, fieldPath(f.Field), f.Value)
		fmt.Fprintf(&sb, ` AND (data #>> $%d::text[]) COLLATE "C" %s $%d`, len(args)-1, f.Op, len(args))
	}

	if q.OrderBy != "" {
		args = append(args, fieldPath(q.OrderBy))
		direction := "ASC"
		if q.Descending {
			direction = "DESC"
		}
		fmt.Fprintf(&sb, ` ORDER BY (data #>> $%d::text[]) COLLATE "C" %s`, len(args), direction)
	}

	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}

	rows, err := r.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		var data []byte
		if err := rows.Scan(&doc.ID, &data); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		doc.Data = data
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}

	return docs, nil
}

// Create stores a new document under a generated id
func (r *PostgresDocuments) Create(ctx context.Context, collection string, data any) (string, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to encode document: %w", err)
	}

	id := uuid.NewString()
	query := `
		INSERT INTO documents (collection, id, data)
		VALUES ($1, $2, $3::jsonb)
	`
	if _, err := r.db.Exec(ctx, query, collection, id, string(payload)); err != nil {
		return "", fmt.Errorf("failed to create document: %w", err)
	}
	return id, nil
}

// Set writes a whole document under a known id, replacing any existing one
func (r *PostgresDocuments) Set(ctx context.Context, collection, id string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	query := `
		INSERT INTO documents (collection, id, data)
		VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data
	`
	if _, err := r.db.Exec(ctx, query, collection, id, string(payload)); err != nil {
		return fmt.Errorf("failed to set document: %w", err)
	}
	return nil
}

// Update applies all field updates to one document in a single statement
func (r *PostgresDocuments) Update(ctx context.Context, collection, id string, updates ...FieldUpdate) error {
	if len(updates) == 0 {
		return fmt.Errorf("no field updates for %s/%s", collection, id)
	}

	expr := "data"
	args := []any{collection, id}
	for _, u := range updates {
		args = append(args, fieldPath(u.Path))
		p := len(args)
		current := fmt.Sprintf("COALESCE(data #> $%d::text[], '[]'::jsonb)", p)

		switch u.op {
		case opSet:
			payload, err := json.Marshal(u.value)
			if err != nil {
				return fmt.Errorf("failed to encode field %s: %w", u.Path, err)
			}
			args = append(args, string(payload))
			expr = fmt.Sprintf("jsonb_set(%s, $%d::text[], $%d::jsonb, true)", expr, p, len(args))
		case opIncrement:
			args = append(args, u.delta)
			expr = fmt.Sprintf("jsonb_set(%s, $%d::text[], to_jsonb(COALESCE((data #>> $%d::text[])::numeric, 0) + $%d::numeric), true)",
				expr, p, p, len(args))
		case opArrayUnion:
			payload, err := json.Marshal(u.values)
			if err != nil {
				return fmt.Errorf("failed to encode field %s: %w", u.Path, err)
			}
			args = append(args, string(payload))
			expr = fmt.Sprintf(
				"jsonb_set(%s, $%d::text[], %s || COALESCE((SELECT jsonb_agg(n.v ORDER BY n.i) FROM jsonb_array_elements($%d::jsonb) WITH ORDINALITY AS n(v, i) WHERE NOT EXISTS (SELECT 1 FROM jsonb_array_elements(%s) AS o(x) WHERE o.x = n.v)), '[]'::jsonb), true)",
				expr, p, current, len(args), current)
		case opArrayRemove:
			payload, err := json.Marshal(u.values)
			if err != nil {
				return fmt.Errorf("failed to encode field %s: %w", u.Path, err)
			}
			args = append(args, string(payload))
			expr = fmt.Sprintf(
				"jsonb_set(%s, $%d::text[], COALESCE((SELECT jsonb_agg(o.x ORDER BY o.i) FROM jsonb_array_elements(%s) WITH ORDINALITY AS o(x, i) WHERE NOT EXISTS (SELECT 1 FROM jsonb_array_elements($%d::jsonb) AS r(y) WHERE r.y = o.x)), '[]'::jsonb), true)",
				expr, p, current, len(args))
		}
	}

	query := fmt.Sprintf("UPDATE documents SET data = %s WHERE collection = $1 AND id = $2", expr)
	result, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	return nil
}

func fieldPath(field string) []string {
	return strings.Split(field, ".")
}
