package output

import (
	"io"

	"github.com/muesli/termenv"
)

// ColorEnabled reports whether w is a terminal that renders color.
// NO_COLOR and a dumb TERM disable color as termenv defines them.
func ColorEnabled(w io.Writer) bool {
	if termenv.EnvNoColor() {
		return false
	}
	return termenv.NewOutput(w).EnvColorProfile() != termenv.Ascii
}
