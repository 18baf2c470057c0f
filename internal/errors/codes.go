// Package errors provides structured error handling for supportkb.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (documents, index artifacts)
//   - 3XX: Embedding model errors
//   - 4XX: Validation errors (queries, parameters)
//   - 5XX: Build and internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates document and index artifact I/O errors.
	CategoryIO Category = "IO"
	// CategoryModel indicates embedding model errors.
	CategoryModel Category = "MODEL"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryBuild indicates build orchestration errors.
	CategoryBuild Category = "BUILD"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but the process can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// IO errors (200-299)
	ErrCodeUnsupportedFormat = "ERR_201_UNSUPPORTED_FORMAT"
	ErrCodeReadError         = "ERR_202_READ_ERROR"
	ErrCodeCorruptSnapshot   = "ERR_203_CORRUPT_SNAPSHOT"
	ErrCodeDiskWrite         = "ERR_204_DISK_WRITE"
	ErrCodeNoSnapshot        = "ERR_205_NO_SNAPSHOT"

	// Embedding model errors (300-399)
	ErrCodeEmbeddingUnavailable = "ERR_301_EMBEDDING_UNAVAILABLE"
	ErrCodeDimensionMismatch    = "ERR_302_DIMENSION_MISMATCH"

	// Validation errors (400-499)
	ErrCodeInvalidLimit     = "ERR_401_INVALID_LIMIT"
	ErrCodeInvalidThreshold = "ERR_402_INVALID_THRESHOLD"
	ErrCodeInvalidMode      = "ERR_403_INVALID_MODE"
	ErrCodeConfirmRequired  = "ERR_404_CONFIRM_REQUIRED"

	// Build and internal errors (500-599)
	ErrCodeBuildInProgress = "ERR_501_BUILD_IN_PROGRESS"
	ErrCodeBuildFailed     = "ERR_502_BUILD_FAILED"
	ErrCodeBuildCancelled  = "ERR_503_BUILD_CANCELLED"
	ErrCodeInternal        = "ERR_504_INTERNAL"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryModel
	case '4':
		return CategoryValidation
	case '5':
		return CategoryBuild
	default:
		return CategoryInternal
	}
}

// severityFromCode derives severity from error code.
// Per-document errors are warnings; everything else is an error.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeUnsupportedFormat, ErrCodeReadError, ErrCodeEmbeddingUnavailable:
		return SeverityWarning
	default:
		return SeverityError
	}
}

// isRetryableCode reports whether operations failing with this code may be retried.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeBuildInProgress, ErrCodeEmbeddingUnavailable, ErrCodeReadError:
		return true
	default:
		return false
	}
}
