package ingest

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"

	"github.com/railzwaylabs/orderetl/pkg/db"
)

// Kind classifies the outcome of one row-level store operation.
type Kind int

const (
	// KindOK means the row was persisted.
	KindOK Kind = iota
	// KindInvalid means the input could not be turned into a keyed row.
	KindInvalid
	// KindRejected means the store refused the row.
	KindRejected
	// KindUnavailable means the store could not be reached; nothing after this row can succeed.
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindInvalid:
		return "invalid"
	case KindRejected:
		return "rejected"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

var ErrStoreUnavailable = errors.New("store_unavailable")

// Result is returned for every row the engine hands to the store. Payload is the input as it should
// appear in the dead-letter trail.
type Result struct {
	Kind    Kind
	Err     error
	Payload any
}

func invalid(err error, payload any) Result {
	return Result{Kind: KindInvalid, Err: err, Payload: payload}
}

// classify turns a store error into a Result.
func classify(err error, payload any) Result {
	if err == nil {
		return Result{Kind: KindOK, Payload: payload}
	}
	if isUnavailable(err) {
		return Result{Kind: KindUnavailable, Err: err, Payload: payload}
	}
	return Result{Kind: KindRejected, Err: err, Payload: payload}
}

func isUnavailable(err error) bool {
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, db.ErrStoreUnreachable) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
