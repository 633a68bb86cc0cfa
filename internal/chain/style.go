package chain

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Styles colours chain nodes for terminal output.
type Styles struct {
	Tones map[Tone]lipgloss.Style
	Arrow lipgloss.Style
}

func DefaultStyles() Styles {
	return Styles{
		Tones: map[Tone]lipgloss.Style{
			ToneMuted:     lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
			ToneSecondary: lipgloss.NewStyle().Foreground(lipgloss.Color("7")).Strikethrough(true),
			ToneSuccess:   lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
			ToneDanger:    lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
			TonePrimary:   lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		},
		Arrow: lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

var glyphs = map[Icon]string{
	IconBan:     "⊘",
	IconXCircle: "⊗",
	IconCheck:   "✔",
	IconCross:   "✘",
	IconClock:   "◷",
}

// Line renders the chain on a single line, acting → supervising → approval.
func (s Styles) Line(c Chain) string {
	parts := make([]string, 0, len(c.Nodes))
	for _, n := range c.Nodes {
		text := glyphs[n.Icon] + " " + n.DisplayName
		if st, ok := s.Tones[n.Tone]; ok {
			text = st.Render(text)
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, s.Arrow.Render(" → "))
}

// Plain renders the chain without colour, for tests and non-tty output.
func Plain(c Chain) string {
	parts := make([]string, 0, len(c.Nodes))
	for _, n := range c.Nodes {
		parts = append(parts, glyphs[n.Icon]+" "+n.DisplayName)
	}
	return strings.Join(parts, " → ")
}
