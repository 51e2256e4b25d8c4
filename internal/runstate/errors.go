package runstate

import "codeberg.org/mutker/sysmon/internal/errors"

const (
	ErrInvalidPath = errors.ErrorCode("runstate_invalid_path")

	ErrSchemaInitFailed       = errors.ErrorCode("runstate_schema_init_failed")
	ErrSchemaValidationFailed = errors.ErrorCode("runstate_schema_validation_failed")
	ErrSchemaMigrationFailed  = errors.ErrorCode("runstate_schema_migration_failed")
	ErrTransactionFailed      = errors.ErrorCode("runstate_transaction_failed")

	ErrStorageInit  = errors.ErrInitFailed
	ErrStorageClose = errors.ErrShutdownFailed

	ErrNoRunToResume = errors.ErrorCode("runstate_no_run_to_resume")
	ErrRunNotFound   = errors.ErrorCode("runstate_run_not_found")
)

func init() {
	errors.RegisterFatal(ErrNoRunToResume)
}
