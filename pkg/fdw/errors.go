package fdw

import "errors"

// Error taxonomy surfaced to the host. All errors propagate unrecovered;
// this layer performs no retries. The host maps the kind to the message
// that aborts the originating statement.
var (
	// ErrConstraintViolation marks an insert that conflicts with a
	// backend-enforced uniqueness or key rule.
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrNotFound marks an update or delete whose target row does not
	// exist.
	ErrNotFound = errors.New("row not found")

	// ErrUnsupported marks an operation or option the backend cannot
	// honor.
	ErrUnsupported = errors.New("unsupported")

	// ErrBackendFailure marks any lower-level fault, such as an
	// unavailable resource.
	ErrBackendFailure = errors.New("backend failure")
)

// ErrorKind classifies an adapter error for host-side accounting.
type ErrorKind int

// Error kinds, in the order the taxonomy defines them.
const (
	KindUnknown ErrorKind = iota
	KindConstraintViolation
	KindNotFound
	KindUnsupported
	KindBackendFailure
)

// String returns the kind name used in statement abort messages.
func (k ErrorKind) String() string {
	switch k {
	case KindConstraintViolation:
		return "constraint_violation"
	case KindNotFound:
		return "not_found"
	case KindUnsupported:
		return "unsupported"
	case KindBackendFailure:
		return "backend_failure"
	default:
		return "unknown"
	}
}

// Classify returns the taxonomy kind wrapped anywhere in err's chain.
// Errors outside the taxonomy classify as KindBackendFailure so the
// host never sees an unlabeled adapter fault.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrConstraintViolation):
		return KindConstraintViolation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrUnsupported):
		return KindUnsupported
	default:
		return KindBackendFailure
	}
}
