package tui

import (
	"github.com/charmbracelet/lipgloss"

	"todoapp/model"
)

type palette struct {
	title    lipgloss.Color
	text     lipgloss.Color
	muted    lipgloss.Color
	border   lipgloss.Color
	accent   lipgloss.Color
	selected lipgloss.Color
	prompt   lipgloss.Color
	ok       lipgloss.Color
	err      lipgloss.Color
	low      lipgloss.Color
	medium   lipgloss.Color
	high     lipgloss.Color
}

var (
	darkPalette = palette{
		title:    lipgloss.Color("255"),
		text:     lipgloss.Color("252"),
		muted:    lipgloss.Color("244"),
		border:   lipgloss.Color("240"),
		accent:   lipgloss.Color("39"),
		selected: lipgloss.Color("229"),
		prompt:   lipgloss.Color("220"),
		ok:       lipgloss.Color("70"),
		err:      lipgloss.Color("9"),
		low:      lipgloss.Color("114"),
		medium:   lipgloss.Color("220"),
		high:     lipgloss.Color("203"),
	}
	lightPalette = palette{
		title:    lipgloss.Color("232"),
		text:     lipgloss.Color("236"),
		muted:    lipgloss.Color("243"),
		border:   lipgloss.Color("250"),
		accent:   lipgloss.Color("25"),
		selected: lipgloss.Color("130"),
		prompt:   lipgloss.Color("94"),
		ok:       lipgloss.Color("28"),
		err:      lipgloss.Color("160"),
		low:      lipgloss.Color("28"),
		medium:   lipgloss.Color("136"),
		high:     lipgloss.Color("160"),
	}
)

func paletteFor(theme model.Theme) palette {
	if theme == model.ThemeDark {
		return darkPalette
	}
	return lightPalette
}
