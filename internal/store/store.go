package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

type SQLStore struct {
	db *sql.DB
}

func New(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) DB() *sql.DB {
	return s.db
}

// ErrCorruptLayout signals a block row whose position columns are
// partially null. That state indicates a data-integrity bug, so it is
// surfaced instead of silently repaired.
var ErrCorruptLayout = errors.New("corrupted block layout: partial position fields")

// QueryError carries the conventional relation-missing codes other
// tooling recognizes ("42P01"/"PGRST205") alongside sqlite's message.
type QueryError struct {
	Code    string
	Message string
}

func (e *QueryError) Error() string {
	return e.Message
}

// WrapQueryError classifies a database error; sqlite's "no such table"
// maps onto the relation-missing code.
func WrapQueryError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(strings.ToLower(msg), "no such table") {
		return &QueryError{Code: "42P01", Message: msg}
	}
	return err
}

// IsMissingRelation reports whether err signals a table that does not
// exist yet, the one failure callers may try to recover from by running
// migrations.
func IsMissingRelation(err error) bool {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Code == "42P01" || qe.Code == "PGRST205"
	}
	return strings.Contains(strings.ToLower(err.Error()), "no such table")
}

func parseTime(raw string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, raw)
}

func parseNullableTime(raw sql.NullString) (*time.Time, error) {
	if !raw.Valid {
		return nil, nil
	}
	t, err := parseTime(raw.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func boolToSQLiteInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
