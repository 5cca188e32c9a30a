// Package store is the relational catalog: document and chunk rows keyed by
// content checksum, plus committed bookings.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/docassist/docassist/models"
)

type Store struct {
	DB *sql.DB
}

// NewWithDSN constructs the Store using an explicit Postgres DSN.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// DocumentIDByChecksum resolves the document created for the given content
// hash. Returns models.ErrDocumentNotFound when no such document exists.
func (s *Store) DocumentIDByChecksum(ctx context.Context, checksum string) (string, error) {
	var id string
	err := s.DB.QueryRowContext(ctx, `SELECT id FROM documents WHERE checksum=$1 LIMIT 1`, checksum).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", models.ErrDocumentNotFound
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

// CountChunks returns the number of chunk rows stored for a document.
func (s *Store) CountChunks(ctx context.Context, docID string) (int, error) {
	var n int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks WHERE doc_id=$1`, docID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// SaveDocumentWithChunks inserts the document row and all of its chunk rows
// in one transaction. Either everything commits or nothing does.
func (s *Store) SaveDocumentWithChunks(ctx context.Context, doc models.Document, chunks []models.Chunk) (err error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
INSERT INTO documents (id, title, source_uri, mime_type, checksum)
VALUES ($1,$2,$3,$4,$5)`,
		doc.ID, nullableString(doc.Title), nullableString(doc.SourceURI), nullableString(doc.MimeType), doc.Checksum)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}

	for _, ch := range chunks {
		_, err = tx.ExecContext(ctx, `
INSERT INTO chunks (id, doc_id, chunk_index, page_start, page_end, heading, token_count, vector_id)
VALUES ($1,$2,$3,NULL,NULL,NULL,$4,$5)`,
			ch.ID, ch.DocID, ch.ChunkIndex, ch.TokenCount, ch.VectorID)
		if err != nil {
			return fmt.Errorf("insert chunk %d: %w", ch.ChunkIndex, err)
		}
	}

	return tx.Commit()
}

// HasBookingOverlap reports whether any committed booking overlaps the
// half-open interval [start, end).
func (s *Store) HasBookingOverlap(ctx context.Context, start, end time.Time) (bool, error) {
	var one int
	err := s.DB.QueryRowContext(ctx, `
SELECT 1 FROM bookings WHERE $1 < end_time_utc AND $2 > start_time_utc LIMIT 1`, start, end).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// SaveBooking inserts a booking row in one transaction.
func (s *Store) SaveBooking(ctx context.Context, b models.Booking) (err error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
INSERT INTO bookings (id, name, email, start_time_utc, end_time_utc, source_conversation_id)
VALUES ($1,$2,$3,$4,$5,$6)`,
		b.ID, b.Name, b.Email, b.StartTimeUTC, b.EndTimeUTC, nullableString(b.SourceConversationID))
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}

	return tx.Commit()
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
