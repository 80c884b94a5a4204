package vs

import "github.com/ValentinKolb/vsdb/lib/common"

// Error taxonomy, see common. Test with errors.Is.
var (
	ErrNotFound         = common.ErrNotFound
	ErrAlreadyExists    = common.ErrAlreadyExists
	ErrDiverged         = common.ErrDiverged
	ErrEngine           = common.ErrEngine
	ErrInconsistent     = common.ErrInconsistent
	ErrInvalidOperation = common.ErrInvalidOperation
	ErrBusy             = common.ErrBusy
)
