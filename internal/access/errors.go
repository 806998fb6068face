package access

import "github.com/rotisserie/eris"

// Structural errors abort a computation; ErrNoFacilityInRange is only ever
// attached to individual region outcomes.
var (
	ErrEmptyInput        = eris.New("access: empty input")
	ErrCRSMismatch       = eris.New("access: geometries not in a consistent linear CRS")
	ErrNoFacilityInRange = eris.New("access: no facility within catchment")
	ErrInvalidGeometry   = eris.New("access: invalid geometry")
	ErrInvalidInput      = eris.New("access: invalid input")
)

// IsStructural reports whether err is a contract violation that aborts a
// whole request, as opposed to a per-region gap.
func IsStructural(err error) bool {
	return eris.Is(err, ErrEmptyInput) ||
		eris.Is(err, ErrCRSMismatch) ||
		eris.Is(err, ErrInvalidGeometry) ||
		eris.Is(err, ErrInvalidInput)
}
