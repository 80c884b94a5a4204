package store

import (
	"github.com/ValentinKolb/vsdb/lib/common"
	"github.com/ValentinKolb/vsdb/lib/db"
	"github.com/cockroachdb/errors"
)

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

// RetCode is the numeric outcome of an operation, used as the CLI exit code
type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by underlying database.
	RetCInvalidOperation                    // 3: Invalid operation.
	RetCNotFound                            // 4: Branch, version or key does not exist.
	RetCAlreadyExists                       // 5: Branch or version name is taken.
	RetCDiverged                            // 6: Merge target has diverged.
	RetCBusy                                // 7: Exclusive access conflicts with open readers.
	RetCInconsistent                        // 8: Stored state violates an invariant.
	RetCClosed                              // 9: The store is closed.
	RetCEngineError                         // 10: The storage engine failed, the caller may retry.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCNotFound:
		return "NotFound"
	case RetCAlreadyExists:
		return "AlreadyExists"
	case RetCDiverged:
		return "Diverged"
	case RetCBusy:
		return "Busy"
	case RetCInconsistent:
		return "Inconsistent"
	case RetCClosed:
		return "Closed"
	case RetCEngineError:
		return "EngineError"
	default:
		return "Unknown"
	}
}

// ErrUnsupported marks an operation the configured engine can not perform
var ErrUnsupported = errors.New("unsupported operation")

// Code maps an error returned by the store (or any lib package) to its RetCode.
func Code(err error) RetCode {
	switch {
	case err == nil:
		return RetCSuccess
	case errors.Is(err, db.ErrClosed):
		return RetCClosed
	case errors.Is(err, common.ErrInconsistent):
		return RetCInconsistent
	case errors.Is(err, common.ErrNotFound):
		return RetCNotFound
	case errors.Is(err, common.ErrAlreadyExists):
		return RetCAlreadyExists
	case errors.Is(err, common.ErrDiverged):
		return RetCDiverged
	case errors.Is(err, common.ErrBusy):
		return RetCBusy
	case errors.Is(err, common.ErrInvalidOperation):
		return RetCInvalidOperation
	case errors.Is(err, common.ErrEngine):
		return RetCEngineError
	case errors.Is(err, ErrUnsupported):
		return RetCUnsupportedOperation
	default:
		return RetCInternalError
	}
}
