package archive

import "fmt"

// Size units accepted by Container.Size and PublicContainer.Size.
// Multipliers are binary, not decimal.
var unitScales = map[string]float64{
	"bytes": 1,
	"kB":    1 << 10,
	"MB":    1 << 20,
	"GB":    1 << 30,
	"TB":    1 << 40,
}

// scaleBytes converts a byte count into the requested unit.
func scaleBytes(n int64, unit string) (float64, error) {
	scale, ok := unitScales[unit]
	if !ok {
		return 0, fmt.Errorf("unit must be one of bytes, kB, MB, GB, TB, got %q: %w", unit, ErrInvalidArgument)
	}
	return float64(n) / scale, nil
}
