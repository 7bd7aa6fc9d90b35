package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// formField is one labelled input of a form. Fields with options are cycled
// with left/right instead of typed into.
type formField struct {
	key     string
	label   string
	value   string
	masked  bool
	options []string
}

// form is the inline editor shared by the login, folder, test and result
// screens.
type form struct {
	fields  []formField
	focus   int
	errKey  string // field the last validation message belongs to
	errText string
}

func newForm(fields ...formField) form {
	return form{fields: fields}
}

// Value returns the trimmed value of the field named key.
func (f form) Value(key string) string {
	for _, fld := range f.fields {
		if fld.key == key {
			return strings.TrimSpace(fld.value)
		}
	}
	return ""
}

// Set replaces the value of the field named key.
func (f *form) Set(key, value string) {
	for i := range f.fields {
		if f.fields[i].key == key {
			f.fields[i].value = value
			return
		}
	}
}

// Invalid attaches a validation message to a field and focuses it.
func (f *form) Invalid(key, msg string) {
	f.errKey = key
	f.errText = msg
	for i, fld := range f.fields {
		if fld.key == key {
			f.focus = i
			return
		}
	}
}

func (f *form) clearError() {
	f.errKey = ""
	f.errText = ""
}

// Update handles editing keys. Submission and cancellation are left to the
// owning view.
func (f form) Update(msg tea.KeyMsg) form {
	n := len(f.fields)
	if n == 0 {
		return f
	}
	switch key := msg.String(); key {
	case "tab", "down":
		f.focus = (f.focus + 1) % n
	case "shift+tab", "up":
		f.focus = (f.focus - 1 + n) % n
	case "left", "right":
		fld := &f.fields[f.focus]
		if len(fld.options) > 0 {
			fld.value = cycle(fld.options, fld.value, key == "left")
			f.clearError()
		}
	default:
		fld := &f.fields[f.focus]
		if len(fld.options) > 0 {
			return f
		}
		before := fld.value
		fld.value = editRune(fld.value, key)
		if fld.value != before && fld.key == f.errKey {
			f.clearError()
		}
	}
	return f
}

func (f form) View() string {
	width := 0
	for _, fld := range f.fields {
		if len(fld.label) > width {
			width = len(fld.label)
		}
	}
	var b strings.Builder
	for i, fld := range f.fields {
		cursor := " "
		style := metaStyle
		if i == f.focus {
			cursor = accentStyle.Render(">")
			style = selectedStyle
		}
		value := fld.value
		if fld.masked {
			value = strings.Repeat("•", len([]rune(value)))
		}
		switch {
		case len(fld.options) > 0:
			value = statusStyle(value).Render(value) + dimStyle.Render("  (←/→)")
		case i == f.focus:
			value += "█"
		}
		fmt.Fprintf(&b, " %s %s  %s\n", cursor, style.Render(fmt.Sprintf("%-*s", width, fld.label)), value)
		if fld.key == f.errKey && f.errText != "" {
			fmt.Fprintf(&b, "   %s  %s\n", strings.Repeat(" ", width), errStyle.Render(f.errText))
		}
	}
	return b.String()
}
