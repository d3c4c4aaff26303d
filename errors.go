package protect

import (
	"errors"
	"fmt"
)

var (
	// ErrNoEngine indicates the client was constructed without an Engine.
	ErrNoEngine = errors.New("protect: no engine configured")

	// ErrDecryptionFailed indicates ciphertext authentication failed (wrong key or corrupted data).
	ErrDecryptionFailed = errors.New("protect: decryption failed")

	// ErrKeyNotFound indicates the requested root key ID is not registered.
	ErrKeyNotFound = errors.New("protect: root key not found")

	// ErrInvalidKeySize indicates a root key is not exactly 32 bytes.
	ErrInvalidKeySize = errors.New("protect: root key must be 32 bytes")

	// ErrNoRootKeys indicates no root keys were provided to the development engine.
	ErrNoRootKeys = errors.New("protect: no root keys provided")

	// ErrDefaultKeyNotFound indicates the specified default root key ID was not registered.
	ErrDefaultKeyNotFound = errors.New("protect: default root key not found")

	// ErrInvalidKeyID indicates a root key ID is invalid (empty or too long).
	ErrInvalidKeyID = errors.New("protect: root key ID must be 1-255 bytes")

	// ErrWasNull indicates the record was nil (a stored NULL).
	// Returned by DecryptString when the input is nil; value will be "".
	ErrWasNull = errors.New("protect: value was null")

	// ErrInvalidCiphertext indicates the ciphertext envelope is malformed.
	ErrInvalidCiphertext = errors.New("protect: invalid ciphertext format")

	// ErrDecompressionFailed indicates zstd decompression of a ciphertext payload failed.
	ErrDecompressionFailed = errors.New("protect: decompression failed")
)

// ValidationKind classifies a local validation failure so callers can react
// without parsing messages.
type ValidationKind string

const (
	// ValidationMissingIndex means the column is not configured with the
	// index kind the term requires.
	ValidationMissingIndex ValidationKind = "missing_index"
	// ValidationUnknownQueryOp means the requested index kind or query shape
	// is not one this layer understands.
	ValidationUnknownQueryOp ValidationKind = "unknown_query_op"
	// ValidationInvalidPath means a JSON path or containment shape is malformed.
	ValidationInvalidPath ValidationKind = "invalid_path"
	// ValidationInvalidInput means the value itself is unencryptable
	// (NaN, Infinity, unsupported type).
	ValidationInvalidInput ValidationKind = "invalid_input"
)

// ValidationError reports a local, pre-engine failure: a bad numeric sentinel,
// an index kind the column is not configured for, a malformed path, or an
// inconsistent term shape. It never carries an engine error code; the engine
// was never contacted.
type ValidationError struct {
	Kind    ValidationKind
	Message string
}

func (e *ValidationError) Error() string {
	return "protect: " + e.Message
}

func validationErrorf(kind ValidationKind, format string, args ...any) *ValidationError {
	return &ValidationError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// EngineCode identifies a failure class reported by the cryptographic engine.
// Codes are passed through verbatim; this layer never renumbers or rewrites
// them.
type EngineCode string

const (
	CodeUnknownColumn        EngineCode = "UNKNOWN_COLUMN"
	CodeMissingIndex         EngineCode = "MISSING_INDEX"
	CodeInvalidQueryInput    EngineCode = "INVALID_QUERY_INPUT"
	CodeInvalidJSONPath      EngineCode = "INVALID_JSON_PATH"
	CodeUnknownQueryOp       EngineCode = "UNKNOWN_QUERY_OP"
	CodeInvariantViolation   EngineCode = "INVARIANT_VIOLATION"
	CodeSteVecRequiresCastAs EngineCode = "STE_VEC_REQUIRES_JSON_CAST_AS"
	CodeUnknown              EngineCode = "UNKNOWN"
)

// EngineError is a failure surfaced verbatim from the cryptographic engine.
type EngineError struct {
	Code    EngineCode
	Message string
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("protect: engine: %s: %s", e.Code, e.Message)
}

// ContextError reports an access-context resolution or validation failure
// (denied, expired, or unresolvable token). It is distinct from both
// validation and engine failures so callers can special-case
// re-authentication.
type ContextError struct {
	Message string
	Err     error // underlying cause, if any
}

func (e *ContextError) Error() string {
	if e.Err != nil {
		return "protect: access context: " + e.Message + ": " + e.Err.Error()
	}
	return "protect: access context: " + e.Message
}

func (e *ContextError) Unwrap() error {
	return e.Err
}
