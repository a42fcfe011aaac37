package output

import (
	"path/filepath"
	"strings"
)

// Ellipsis marks text cut to fit a column.
const Ellipsis = "..."

// TruncateText fits s into a column of width runes. Text that fits is right-padded
// with spaces; longer text keeps its first width-3 runes followed by "...".
// Text that does not fit a width of 3 or less becomes exactly "...". Negative widths count as 0.
func TruncateText(s string, width int) string {
	if width < 0 {
		width = 0
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s + strings.Repeat(" ", width-len(runes))
	}
	keep := width - len(Ellipsis)
	if keep < 0 {
		keep = 0
	}
	return string(runes[:keep]) + Ellipsis
}

// Ellipsize shortens s to at most limit runes, ending in "..." when cut. It never pads.
func Ellipsize(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	keep := limit - len(Ellipsis)
	if keep < 0 {
		keep = 0
	}
	return string(runes[:keep]) + Ellipsis
}

// PathFormatter renders directory paths for display. HomeDir is injected so
// formatting never reads the environment.
type PathFormatter struct {
	HomeDir string
}

// DisplayPath replaces a leading home directory with "~". The home directory must
// end at a separator boundary, so /home/ann2 is not shortened for home /home/ann.
func (f PathFormatter) DisplayPath(path string) string {
	sep := string(filepath.Separator)
	home := strings.TrimRight(f.HomeDir, sep)
	if home == "" {
		return path
	}
	if path == home {
		return "~"
	}
	if strings.HasPrefix(path, home+sep) {
		return "~" + path[len(home):]
	}
	return path
}

// TruncatePath fits a path into width runes. Paths that are too long keep their most
// specific directories: the last width-3 runes, advanced to the first separator in that
// window when there is one, behind "...".
func (f PathFormatter) TruncatePath(path string, width int) string {
	if width < 0 {
		width = 0
	}
	display := f.DisplayPath(path)
	runes := []rune(display)
	if len(runes) <= width {
		return display + strings.Repeat(" ", width-len(runes))
	}

	keep := width - len(Ellipsis)
	if keep <= 0 {
		return Ellipsis
	}

	suffix := runes[len(runes)-keep:]
	for i, r := range suffix {
		if r == filepath.Separator {
			if i > 0 {
				suffix = suffix[i:]
			}
			break
		}
	}

	return TruncateText(Ellipsis+string(suffix), width)
}
