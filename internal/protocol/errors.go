package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrProtoVersion    = "E_PROTO_VERSION"

	// Registry/admin layer.
	ErrBadRequest     = "E_BAD_REQUEST"
	ErrInvalidBarrier = "E_INVALID_BARRIER"
	ErrNotFound       = "E_NOT_FOUND"
	ErrConflict       = "E_CONFLICT"
	ErrReadOnly       = "E_READ_ONLY"
	ErrBusy           = "E_BUSY"
	ErrInternal       = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrProtoVersion:    {},
	ErrBadRequest:      {},
	ErrInvalidBarrier:  {},
	ErrNotFound:        {},
	ErrConflict:        {},
	ErrReadOnly:        {},
	ErrBusy:            {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
