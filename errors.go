package sawitdb

import "errors"

// Sentinel errors returned (wrapped with context via fmt.Errorf "%w") from
// the core. Callers of Query never see these directly -- Query converts
// every error into an "Error: ..." string -- but internal helpers compare
// against these (for example ErrNameTaken during WAL replay).
var (
	ErrNameInvalid          = errors.New("NAME_INVALID")
	ErrNameTaken            = errors.New("NAME_TAKEN")
	ErrTableMissing         = errors.New("TABLE_MISSING")
	ErrColumnsValuesMismatch = errors.New("COLUMNS_VALUES_MISMATCH")
	ErrPageZeroFull         = errors.New("PAGE_ZERO_FULL")
	ErrRecordTooLarge       = errors.New("RECORD_TOO_LARGE")
	ErrCorruptRecord        = errors.New("CORRUPT_RECORD")
	ErrWALCorrupt           = errors.New("WAL_CORRUPT")
	ErrHandleClosed         = errors.New("HANDLE_CLOSED")
)
