package odbcscan

import (
	"database/sql/driver"
)

// Result implements driver.Result for INSERT, UPDATE, DELETE operations
type Result struct {
	rowsAffected int64
}

// LastInsertId is not available through ODBC.
func (r *Result) LastInsertId() (int64, error) {
	return 0, errNoLastInsertID
}

// RowsAffected returns the number of rows affected by the query, or -1
// when the driver could not tell.
func (r *Result) RowsAffected() (int64, error) {
	return r.rowsAffected, nil
}

var errNoLastInsertID = protocolError(KindSequence, "LastInsertId is not supported; use the vendor's identity query")

// Ensure Result implements driver.Result
var _ driver.Result = (*Result)(nil)
