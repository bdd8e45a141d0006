package tabular

import (
	"regexp"
	"strings"
)

var (
	markdownTablePattern = regexp.MustCompile(`\|(.+)\|`)
	keyValuePattern      = regexp.MustCompile(`([A-Za-z\s]+):\s*([^:\n]+)`)
)

// SmartParse dispatches on the dominant structure of the text: markdown-style
// tables, key-value pairs, then plain delimited parsing.
func (b *Builder) SmartParse(text string) *Table {
	if markdownTablePattern.MatchString(text) {
		return b.parseMarkdownTable(text)
	}
	if keyValuePattern.MatchString(text) {
		return b.parseKeyValue(text)
	}
	return b.ParseTable(text, Options{})
}

// parseMarkdownTable reads `| a | b |` style tables, skipping the separator
// line under the header.
func (b *Builder) parseMarkdownTable(text string) *Table {
	var tableLines []string
	for _, line := range splitLines(text) {
		if strings.Contains(line, "|") {
			tableLines = append(tableLines, line)
		}
	}
	if len(tableLines) < 2 {
		return NewEmpty()
	}

	header := cleanParts(strings.Split(strings.Trim(tableLines[0], "|"), "|"))
	if len(header) == 0 {
		return NewEmpty()
	}

	var data [][]string
	for _, line := range tableLines[2:] {
		row := cleanParts(strings.Split(strings.Trim(line, "|"), "|"))
		if len(row) == 0 {
			continue
		}
		if len(row) < len(header) {
			padded := make([]string, len(header))
			copy(padded, row)
			row = padded
		} else if len(row) > len(header) {
			row = row[:len(header)]
		}
		data = append(data, row)
	}

	data = dropRepeatedHeaders(header, data)
	if len(data) == 0 {
		return NewEmpty()
	}
	return buildTable(header, data)
}

// parseKeyValue flattens `Key: Value` pairs into a two-column table.
func (b *Builder) parseKeyValue(text string) *Table {
	matches := keyValuePattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return NewEmpty()
	}

	header := []string{"Key", "Value"}
	data := make([][]string, len(matches))
	for i, m := range matches {
		data[i] = []string{strings.TrimSpace(m[1]), strings.TrimSpace(m[2])}
	}
	return buildTable(header, data)
}
