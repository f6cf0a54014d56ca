package output

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/tanq16/droidup/internal/utils"
	"golang.org/x/term"
)

// ProgressLine renders a bar when total is known, otherwise a plain byte count.
func ProgressLine(current, total int64, width int) string {
	if total <= 0 {
		return debugStyle.Render(fmt.Sprintf("%s %s %s ", StyleSymbols["bullet"], utils.FormatBytes(uint64(max(0, current))), StyleSymbols["bullet"]))
	}
	return PrintProgressBar(current, total, width)
}

func PrintProgressBar(current, total int64, width int) string {
	if width <= 0 {
		width = 30
	}
	if total <= 0 {
		total = 1
	}
	current = max(0, min(current, total))
	percent := float64(current) / float64(total)
	filled := max(0, min(int(percent*float64(width)), width))
	bar := StyleSymbols["bullet"]
	bar += strings.Repeat(StyleSymbols["hline"], filled)
	bar += strings.Repeat(" ", width-filled)
	bar += StyleSymbols["bullet"]
	return debugStyle.Render(fmt.Sprintf("%s %.0f%% %s ", bar, percent*100, StyleSymbols["bullet"]))
}

func terminalSize() (int, int) {
	width, height, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 || height <= 0 {
		return 80, 24
	}
	return width, height
}

func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func wrapText(text string, indent int) []string {
	termWidth, _ := terminalSize()
	maxWidth := termWidth - indent - 2
	if maxWidth <= 10 {
		maxWidth = 80
	}
	if utf8.RuneCountInString(text) <= maxWidth {
		return []string{text}
	}
	var lines []string
	var current strings.Builder
	count := 0
	for _, r := range text {
		if count == maxWidth {
			lines = append(lines, current.String())
			current.Reset()
			count = 0
		}
		current.WriteRune(r)
		count++
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return lines
}
