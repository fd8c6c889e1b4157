package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Validation taxonomy. Every failed move request resolves to one of
	// these; the agent holds position.
	ErrOutOfBounds   = "E_OUT_OF_BOUNDS"
	ErrNoGround      = "E_NO_GROUND"
	ErrCollision     = "E_COLLISION"
	ErrUnsafeTerrain = "E_UNSAFE_TERRAIN"
	ErrLiquidBlock   = "E_LIQUID_BLOCKING"
	ErrPathGen       = "E_PATH_GEN_FAILED"
	ErrPathTooLong   = "E_PATH_TOO_LONG"
	ErrUnreachable   = "E_UNREACHABLE"

	// Agent/registry state.
	ErrUnknownAgent = "E_UNKNOWN_AGENT"
	ErrAgentDead    = "E_AGENT_DEAD"
	ErrDisabled     = "E_NAV_DISABLED"

	ErrInternal = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrOutOfBounds:     {},
	ErrNoGround:        {},
	ErrCollision:       {},
	ErrUnsafeTerrain:   {},
	ErrLiquidBlock:     {},
	ErrPathGen:         {},
	ErrPathTooLong:     {},
	ErrUnreachable:     {},
	ErrUnknownAgent:    {},
	ErrAgentDead:       {},
	ErrDisabled:        {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
