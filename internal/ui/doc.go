// Package ui holds the interactive surfaces of rotation.
//
// [TerminalDecider] answers the questions a sync asks (is this the same song under a new id, how many
// stars does this track deserve, which playlist should be mirrored) through charmbracelet/huh forms,
// showing lipgloss cards for context. [NonInteractiveDecider] answers the same questions without a
// terminal so scheduled runs never block.
//
// [Model] is a bubbletea ratings browser: a ranked list of tracked songs where the digit keys set the
// star rating in place. Keyboard navigation uses vim-style bindings (j/k, enter, esc, q) with
// contextual help displayed via charmbracelet/bubbles/help.
package ui
