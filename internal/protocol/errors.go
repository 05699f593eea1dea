package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrBadVersion      = "E_BAD_VERSION"

	// Payload application.
	ErrBadTile    = "E_BAD_TILE"
	ErrBadPayload = "E_BAD_PAYLOAD"
	ErrBadInject  = "E_BAD_INJECT"

	ErrInternal = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrBadVersion:      {},
	ErrBadTile:         {},
	ErrBadPayload:      {},
	ErrBadInject:       {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
