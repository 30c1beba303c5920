/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package sqlstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	stderrors "errors"
	"net"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"

	"github.com/suparena/docstore/errors"
)

// isDuplicateKey reports whether err is a primary key violation on any of
// the supported dialects.
func isDuplicateKey(err error) bool {
	var mysqlErr *mysql.MySQLError
	if stderrors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "unique constraint failed") ||
		strings.Contains(s, "duplicate key")
}

func kindOf(err error) errors.Kind {
	var mysqlErr *mysql.MySQLError
	if stderrors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case 1040, 1205, 1213:
			return errors.KindThrottled
		case 1044, 1045:
			return errors.KindUnauthorized
		}
		return errors.KindUnknown
	}
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "53", "40":
			return errors.KindThrottled
		case "08", "57":
			return errors.KindUnavailable
		case "28":
			return errors.KindUnauthorized
		}
		return errors.KindUnknown
	}
	if stderrors.Is(err, driver.ErrBadConn) || stderrors.Is(err, sql.ErrConnDone) {
		return errors.KindUnavailable
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) {
		return errors.KindUnavailable
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "database is locked") || strings.Contains(s, "sqlite_busy") {
		return errors.KindThrottled
	}
	if strings.Contains(s, "database is closed") {
		return errors.KindUnavailable
	}
	return errors.KindUnknown
}

// storeError wraps a driver failure in an errors.StoreError. Errors that
// already carry a docstore signal pass through.
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}
	for _, sentinel := range []error{errors.ErrNotFound, errors.ErrConflict, errors.ErrInvalidInput, errors.ErrConditionFailed, errors.ErrStore} {
		if stderrors.Is(err, sentinel) {
			return err
		}
	}
	return errors.NewStoreError(op, kindOf(err), err)
}
