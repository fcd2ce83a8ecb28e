package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the concierge ASCII banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.EnvColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{`   ___                _                    `, "#818cf8"},
		{`  / __\___  _ __   ___(_) ___ _ __ __ _  ___ `, "#a78bfa"},
		{` / /  / _ \| '_ \ / __| |/ _ \ '__/ _` + "`" + ` |/ _ \`, "#c084fc"},
		{`/ /__| (_) | | | | (__| |  __/ | | (_| |  __/`, "#e879f9"},
		{`\____/\___/|_| |_|\___|_|\___|_|  \__, |\___|`, "#f472b6"},
		{`                                  |___/      `, "#fb7185"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
