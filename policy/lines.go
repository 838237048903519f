package policy

import (
	"bufio"
	"strings"

	"github.com/spf13/afero"
)

// logicalLine is one sudoers statement after trailing-backslash
// continuations have been joined and comments stripped, with enough
// position information to report a ParseError.
type logicalLine struct {
	text string
	file string
	line int // line number of the FIRST physical line making up this statement
}

// readLogicalLines scans fs for path, joining "\"-continued physical lines
// into one logical line and stripping "#" comments outside of quotes
// ("#include"/"#includedir" are recognized before comment-stripping, per
// §6's note that they are retained for historical compatibility).
func readLogicalLines(fs afero.Fs, path string) ([]logicalLine, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []logicalLine
	var pending strings.Builder
	pendingStart := 0

	s := bufio.NewScanner(f)
	s.Buffer(make([]byte, 64*1024), 1024*1024)

	lineNo := 0
	for s.Scan() {
		lineNo++
		raw := s.Text()

		stripped := stripComment(raw)
		trimmedRight := strings.TrimRight(stripped, " \t\r")

		continued := strings.HasSuffix(trimmedRight, "\\") && !strings.HasSuffix(trimmedRight, "\\\\")

		content := trimmedRight
		if continued {
			content = strings.TrimSuffix(trimmedRight, "\\")
		}

		if pending.Len() == 0 {
			pendingStart = lineNo
		} else {
			pending.WriteString(" ")
		}
		pending.WriteString(content)

		if !continued {
			text := strings.TrimSpace(pending.String())
			if text != "" {
				out = append(out, logicalLine{text: text, file: path, line: pendingStart})
			}
			pending.Reset()
		}
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	if pending.Len() > 0 {
		text := strings.TrimSpace(pending.String())
		if text != "" {
			out = append(out, logicalLine{text: text, file: path, line: pendingStart})
		}
	}

	return out, nil
}

// stripComment removes a "#"-introduced comment, unless the line is an
// "#include"/"#includedir" directive (the historical alias for
// "@include"/"@includedir", per §6) or the "#" sits inside a double-quoted
// string.
func stripComment(line string) string {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "#include ") || strings.HasPrefix(trimmed, "#includedir ") {
		return line
	}

	inQuotes := false
	for i, r := range line {
		switch r {
		case '"':
			inQuotes = !inQuotes
		case '#':
			if !inQuotes {
				return line[:i]
			}
		}
	}
	return line
}
