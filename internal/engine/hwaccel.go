package engine

import "fmt"

// HWAccel is the hardware-acceleration policy applied when media is loaded.
// The numeric values are part of the wire protocol.
type HWAccel int

const (
	HWAccelAutomatic HWAccel = 0
	HWAccelDisabled  HWAccel = 1
	HWAccelDecoding  HWAccel = 2
	HWAccelFull      HWAccel = 3
)

func (h HWAccel) String() string {
	switch h {
	case HWAccelAutomatic:
		return "automatic"
	case HWAccelDisabled:
		return "disabled"
	case HWAccelDecoding:
		return "decoding"
	case HWAccelFull:
		return "full"
	default:
		return fmt.Sprintf("HWAccel(%d)", int(h))
	}
}

// Valid reports whether h is one of the four known modes.
func (h HWAccel) Valid() bool {
	return h >= HWAccelAutomatic && h <= HWAccelFull
}

// Directives returns the engine option set for the mode. Exactly one set is
// applied per media load; automatic applies none.
func (h HWAccel) Directives() []string {
	switch h {
	case HWAccelDisabled:
		return []string{"--codec=avcodec"}
	case HWAccelDecoding:
		return []string{"--codec=all", ":no-mediacodec-dr", ":no-omxil-dr"}
	case HWAccelFull:
		return []string{"--codec=all"}
	default:
		return nil
	}
}
