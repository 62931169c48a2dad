package commands

import (
	"regexp"
	"strconv"

	"github.com/charmbracelet/lipgloss"
)

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8BC34A"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
)

// genreBadge renders the genre name on its configured color. Genres without a
// usable color are printed plain.
func genreBadge(name, color string) string {
	if !hexColor.MatchString(color) {
		return name
	}
	return lipgloss.NewStyle().
		Background(lipgloss.Color(color)).
		Foreground(lipgloss.Color(contrastColor(color))).
		Padding(0, 1).
		Render(name)
}

// contrastColor picks black or white text for a hex background.
func contrastColor(hex string) string {
	h := hex[1:]
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	r := hexByte(h[0:2])
	g := hexByte(h[2:4])
	b := hexByte(h[4:6])
	// perceived luminance, ITU-R BT.601
	if (299*r+587*g+114*b)/1000 > 140 {
		return "#000000"
	}
	return "#ffffff"
}

func hexByte(s string) int {
	v, _ := strconv.ParseUint(s, 16, 8)
	return int(v)
}
