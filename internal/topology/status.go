package topology

import "strings"

// SubStatus estado observado de una suscripción.
type SubStatus string

const (
	StatusUp           SubStatus = "up"
	StatusDown         SubStatus = "down"
	StatusInitializing SubStatus = "initializing"
	StatusUnknown      SubStatus = "unknown"
)

// ParseSubStatus mapea el status crudo del engine al enum interno.
// "replicating" es el estado sano; "disabled" se trata como down para
// que la reconciliación repare la suscripción. Cualquier string no
// reconocido es unknown (no dispara repair por sí solo).
func ParseSubStatus(raw string) SubStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "replicating", "up":
		return StatusUp
	case "down", "disabled":
		return StatusDown
	case "initializing", "syncing":
		return StatusInitializing
	default:
		return StatusUnknown
	}
}
