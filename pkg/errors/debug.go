package errors

import (
	stdErrors "errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// ErrorDump is a log-friendly flattening of an error chain. Postgres
// diagnostics are pulled out of the chain when a driver error is
// present, from either pgx or lib/pq.
type ErrorDump struct {
	TopMessage string   `json:"top_message"`
	Code       Code     `json:"code"`
	Chain      []string `json:"chain"`

	PGCode       string `json:"pg_code,omitempty"`
	PGConstraint string `json:"pg_constraint,omitempty"`
	PGTable      string `json:"pg_table,omitempty"`
	PGColumn     string `json:"pg_column,omitempty"`
	PGDetail     string `json:"pg_detail,omitempty"`
	PGMessage    string `json:"pg_message,omitempty"`
}

// Dump walks the chain and assembles an ErrorDump. A nil error yields
// the zero dump with an internal code.
func Dump(err error) ErrorDump {
	dump := ErrorDump{Code: CodeInternal}
	if err == nil {
		return dump
	}

	dump.TopMessage = err.Error()
	if typed := As(err); typed != nil {
		dump.Code = typed.Code()
	}
	for cur := err; cur != nil; cur = stdErrors.Unwrap(cur) {
		dump.Chain = append(dump.Chain, cur.Error())
	}
	dump.fillPGDiagnostics(err)
	return dump
}

func (d *ErrorDump) fillPGDiagnostics(err error) {
	var pgxErr *pgconn.PgError
	if stdErrors.As(err, &pgxErr) {
		d.PGCode = pgxErr.Code
		d.PGConstraint = pgxErr.ConstraintName
		d.PGTable = pgxErr.TableName
		d.PGColumn = pgxErr.ColumnName
		d.PGDetail = pgxErr.Detail
		d.PGMessage = pgxErr.Message
		return
	}

	var pqErr *pq.Error
	if stdErrors.As(err, &pqErr) {
		d.PGCode = string(pqErr.Code)
		d.PGConstraint = pqErr.Constraint
		d.PGTable = pqErr.Table
		d.PGColumn = pqErr.Column
		d.PGDetail = pqErr.Detail
		d.PGMessage = pqErr.Message
	}
}
