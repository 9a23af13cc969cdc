package sqlstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
	pkgerrors "github.com/pkg/errors"

	"focussync/internal/models"
)

// classify tags a driver error as unavailable (transport) or rejected
// (the database answered with an error).
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	kind := models.ErrRemoteRejected
	if unavailable(err) {
		kind = models.ErrRemoteUnavailable
	}
	return pkgerrors.WithStack(fmt.Errorf("%w: %s: %w", kind, op, err))
}

func unavailable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func malformed(table, rowID string, err error) error {
	return pkgerrors.WithStack(fmt.Errorf("%w: %s row %s: %w", models.ErrMalformedRecord, table, rowID, err))
}
