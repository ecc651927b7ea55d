// ABOUTME: stdout_split/stderr_split post-processing: "delimiter,index" over a captured stream
// ABOUTME: Unknown delimiter keywords or out-of-bounds indices return the original stream unchanged

package executor

import (
	"strconv"
	"strings"
)

var splitDelimiters = map[string]string{
	"space":      " ",
	"whitespace": " ",
	"tab":        "\t",
	"comma":      ",",
	"semicolon":  ";",
	"semi":       ";",
	"colon":      ":",
	"pipe":       "|",
	"newline":    "\n",
}

// applySplit parses spec ("delimiter,index") and applies it to data. An
// empty spec, an unrecognized delimiter keyword, a non-integer index, or an
// out-of-bounds index all return data unchanged.
func applySplit(data, spec string) string {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return data
	}
	parts := strings.SplitN(spec, ",", 2)
	if len(parts) != 2 {
		return data
	}
	delim, ok := splitDelimiters[strings.ToLower(strings.TrimSpace(parts[0]))]
	if !ok {
		return data
	}
	idx, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return data
	}

	var fields []string
	if delim == " " {
		fields = strings.Fields(data)
	} else {
		fields = strings.Split(data, delim)
	}
	if idx < 0 || idx >= len(fields) {
		return data
	}
	return fields[idx]
}
