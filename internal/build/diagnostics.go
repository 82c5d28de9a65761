package build

import (
	"bufio"
	"regexp"
	"strings"
)

var (
	// webpack: "ERROR in ./src/app.ts 12:4-9" or "ERROR in main"
	blockHeader = regexp.MustCompile(`^(ERROR|WARNING) in (\S+)(?:\s+(\d+:\d+(?:-\d+)?))?`)
	// tsc: "src/app.ts(12,4): error TS2322: Type ..."
	tscLine = regexp.MustCompile(`^(.+?)\((\d+),(\d+)\): (error|warning) (TS\d+: .*)$`)
)

// ParseDiagnostics extracts errors and warnings from bundler or type checker
// output. Raw errors carry the whole block; formatted errors are one line each.
func ParseDiagnostics(output string) (raw []RawError, formatted []string, warnings []string) {
	type block struct {
		kind, file, where string
		lines             []string
	}
	var cur *block

	flush := func() {
		if cur == nil {
			return
		}
		body := strings.TrimSpace(strings.Join(cur.lines, "\n"))
		first := body
		if i := strings.IndexByte(body, '\n'); i >= 0 {
			first = body[:i]
		}
		line := cur.where + ": " + first
		if first == "" {
			line = cur.where
		}
		if cur.kind == "ERROR" {
			raw = append(raw, RawError{File: cur.file, Message: body})
			formatted = append(formatted, line)
		} else {
			warnings = append(warnings, line)
		}
		cur = nil
	}

	sc := bufio.NewScanner(strings.NewReader(output))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		text := sc.Text()
		if m := blockHeader.FindStringSubmatch(text); m != nil {
			flush()
			where := strings.TrimPrefix(m[2], "./")
			if m[3] != "" {
				where += " " + m[3]
			}
			cur = &block{kind: m[1], file: attributedFile(m[2]), where: where}
			if rest := strings.TrimSpace(text[len(m[0]):]); rest != "" {
				cur.lines = append(cur.lines, rest)
			}
			continue
		}
		if m := tscLine.FindStringSubmatch(text); m != nil {
			flush()
			where := m[1] + " " + m[2] + ":" + m[3]
			if m[4] == "error" {
				raw = append(raw, RawError{File: m[1], Message: m[5]})
				formatted = append(formatted, where+": "+m[5])
			} else {
				warnings = append(warnings, where+": "+m[5])
			}
			continue
		}
		if cur == nil {
			continue
		}
		if strings.TrimSpace(text) == "" {
			flush()
			continue
		}
		cur.lines = append(cur.lines, text)
	}
	flush()
	if err := sc.Err(); err != nil {
		msg := "diagnostics truncated: " + err.Error()
		raw = append(raw, RawError{Message: msg})
		formatted = append(formatted, msg)
	}
	return raw, formatted, warnings
}

// attributedFile returns token when it looks like a path; chunk names are not files.
func attributedFile(token string) string {
	if strings.ContainsAny(token, "/\\") || strings.Contains(token, ".") {
		return strings.TrimPrefix(token, "./")
	}
	return ""
}
