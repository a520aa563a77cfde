package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"docexchange/internal/requests/models"
	"docexchange/pkg/platform/sentinel"
	"docexchange/pkg/platform/tx"
)

const requestColumns = `id, civil_id, requested_documents, note, requested_by, status, created_at, expires_at, last_updated_at`

// PostgresStore persists document requests in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) execer(ctx context.Context) tx.Execer {
	return tx.ExecerFrom(ctx, s.db)
}

func (s *PostgresStore) Create(ctx context.Context, req *models.DocumentRequest) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO document_requests (`+requestColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.UUID(req.ID), req.CivilID, pq.Array(req.RequestedDocuments), req.Note, req.RequestedBy,
		string(req.Status), req.CreatedAt, req.ExpiresAt, req.LastUpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return sentinel.ErrInvalidState
		}
		return fmt.Errorf("insert document request: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id models.RequestID) (*models.DocumentRequest, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM document_requests WHERE id = $1`, uuid.UUID(id))
	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find document request: %w", err)
	}
	return req, nil
}

func (s *PostgresStore) List(ctx context.Context, filter models.ListFilter) ([]*models.DocumentRequest, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.CivilID != "" {
		args = append(args, filter.CivilID)
		where = append(where, fmt.Sprintf("civil_id = $%d", len(args)))
	}
	query := `SELECT ` + requestColumns + ` FROM document_requests`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list document requests: %w", err)
	}
	defer rows.Close()

	out := []*models.DocumentRequest{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document request: %w", err)
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate document requests: %w", err)
	}
	return out, nil
}

// Execute locks the row with SELECT ... FOR UPDATE, runs validate and mutate,
// and writes the result in the same transaction.
func (s *PostgresStore) Execute(ctx context.Context, id models.RequestID, validate func(*models.DocumentRequest) error, mutate func(*models.DocumentRequest)) (*models.DocumentRequest, error) {
	var result *models.DocumentRequest
	err := tx.Run(ctx, s.db, func(ctx context.Context) error {
		row := s.execer(ctx).QueryRowContext(ctx,
			`SELECT `+requestColumns+` FROM document_requests WHERE id = $1 FOR UPDATE`, uuid.UUID(id))
		req, err := scanRequest(row)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return sentinel.ErrNotFound
			}
			return fmt.Errorf("lock document request: %w", err)
		}
		if err := validate(req); err != nil {
			return err
		}
		mutate(req)
		_, err = s.execer(ctx).ExecContext(ctx, `
			UPDATE document_requests
			SET status = $2, last_updated_at = $3
			WHERE id = $1`,
			uuid.UUID(req.ID), string(req.Status), req.LastUpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("update document request: %w", err)
		}
		result = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id models.RequestID) (bool, error) {
	res, err := s.execer(ctx).ExecContext(ctx, `DELETE FROM document_requests WHERE id = $1`, uuid.UUID(id))
	if err != nil {
		return false, fmt.Errorf("delete document request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete document request: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*models.DocumentRequest, error) {
	var (
		id     uuid.UUID
		status string
		req    models.DocumentRequest
		docs   pq.StringArray
	)
	if err := row.Scan(&id, &req.CivilID, &docs, &req.Note, &req.RequestedBy, &status,
		&req.CreatedAt, &req.ExpiresAt, &req.LastUpdatedAt); err != nil {
		return nil, err
	}
	req.ID = models.RequestID(id)
	req.RequestedDocuments = []string(docs)
	req.Status = models.Status(status)
	if !req.Status.IsValid() {
		return nil, fmt.Errorf("stored status %q: %w", status, sentinel.ErrMalformed)
	}
	return &req, nil
}
