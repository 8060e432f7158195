package snapshot

// CodedError carries a stable error code string that callers branch on
// without parsing messages.
type CodedError struct {
	Code    string
	Message string
}

func (e *CodedError) Error() string {
	return e.Code + ": " + e.Message
}

var (
	// ErrSegmentNotFound is returned when the segment id resolves to nothing.
	ErrSegmentNotFound = &CodedError{Code: "ERR_SEGMENT_NOT_FOUND", Message: "segment does not exist"}

	// ErrEmptySnapshot is returned when a refresh matches zero contacts
	// and the caller did not allow empty snapshots.
	ErrEmptySnapshot = &CodedError{Code: "ERR_EMPTY_SNAPSHOT", Message: "filter matched zero contacts"}

	// ErrSnapshotTooLarge is returned when the live match count exceeds
	// the contact cap. It is raised before any row is written.
	ErrSnapshotTooLarge = &CodedError{Code: "ERR_SNAPSHOT_TOO_LARGE", Message: "match count exceeds max contacts"}

	// ErrVersionMismatch is returned when an explicit segment version
	// differs from the stored one and Force was not set.
	ErrVersionMismatch = &CodedError{Code: "ERR_VERSION_MISMATCH", Message: "explicit version differs from stored version; set force to override"}

	// ErrSnapshotBusy is returned when another refresh holds the lock
	// for the same (segment, version).
	ErrSnapshotBusy = &CodedError{Code: "ERR_SNAPSHOT_BUSY", Message: "another refresh is in progress for this segment version"}
)
