// Package iofmt implements the fixed file formats at the boundary of the
// simulator: the seeds CSV, and the output CSV with its literal as_path
// rendering (including the trailing-comma quirk for single-element
// paths).
package iofmt

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/anaximander-rib/interdomain-sim/internal/announce"
	"github.com/anaximander-rib/interdomain-sim/internal/asn"
)

// Seed is one row of the seeds file: an origin ASN announcing a prefix,
// optionally pre-marked ROV-invalid.
type Seed struct {
	Asn        asn.ASN
	Prefix     string
	RovInvalid bool
}

// LoadSeeds parses the CSV seeds file: header `asn,prefix,rov_invalid`,
// CRLF tolerated on the last field of each row. rov_invalid is the
// literal text "True" or "False" (case-insensitive).
func LoadSeeds(r io.Reader) ([]Seed, error) {
	scanner := bufio.NewScanner(r)
	lineNo := 0
	var seeds []Seed
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if lineNo == 1 {
			// header row, not validated beyond being present
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := strings.Split(line, ",")
		if len(fields) != 3 {
			return nil, fmt.Errorf("iofmt: seeds line %d: expected 3 fields, got %d", lineNo, len(fields))
		}

		asnVal, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			return nil, fmt.Errorf("iofmt: seeds line %d: bad asn: %w", lineNo, err)
		}
		prefix := strings.TrimSpace(fields[1])
		invalid, err := parseBool(strings.TrimSpace(fields[2]))
		if err != nil {
			return nil, fmt.Errorf("iofmt: seeds line %d: bad rov_invalid: %w", lineNo, err)
		}

		seeds = append(seeds, Seed{Asn: asn.ASN(asnVal), Prefix: prefix, RovInvalid: invalid})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("iofmt: reading seeds: %w", err)
	}
	return seeds, nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, fmt.Errorf("expected True or False, got %q", s)
	}
}

// OutputRow is one row of the output CSV: the AS that holds the route,
// the prefix, and the installed Announcement.
type OutputRow struct {
	Asn    asn.ASN
	Prefix string
	Route  announce.Announcement
}

// FormatAsPath renders an AS path exactly as the reference output does:
// parentheses, comma-space separated, with a trailing comma for
// single-element paths (e.g. "(42,)") for compatibility with downstream
// consumers.
func FormatAsPath(path []asn.ASN) string {
	var b strings.Builder
	b.WriteByte('(')
	for i, hop := range path {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.Itoa(int(hop)))
	}
	if len(path) == 1 {
		b.WriteByte(',')
	}
	b.WriteByte(')')
	return b.String()
}

// ParseAsPath is the inverse of FormatAsPath, used by the round-trip
// test to recover the original path from a rendered output field.
func ParseAsPath(s string) ([]asn.ASN, error) {
	trimmed := strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	trimmed = strings.TrimSuffix(trimmed, ",")
	if trimmed == "" {
		return nil, nil
	}
	parts := strings.Split(trimmed, ", ")
	path := make([]asn.ASN, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("iofmt: bad as_path element %q: %w", p, err)
		}
		path[i] = asn.ASN(n)
	}
	return path, nil
}

// WriteOutput writes the output CSV: header `asn,prefix,as_path`, one row
// per (asn, prefix) pair, as_path quoted with the literal rendering from
// FormatAsPath.
func WriteOutput(w io.Writer, rows []OutputRow) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString("asn,prefix,as_path\n"); err != nil {
		return fmt.Errorf("iofmt: writing output header: %w", err)
	}
	for _, row := range rows {
		asPath := FormatAsPath(row.Route.AsPath)
		if _, err := fmt.Fprintf(bw, "%d,%s,\"%s\"\n", int(row.Asn), row.Prefix, asPath); err != nil {
			return fmt.Errorf("iofmt: writing output row: %w", err)
		}
	}
	return bw.Flush()
}

// ParsedOutputRow is a row recovered by ReadOutput, used by the
// round-trip test.
type ParsedOutputRow struct {
	Asn    asn.ASN
	Prefix string
	AsPath []asn.ASN
}

// ReadOutput parses a file previously written by WriteOutput back into
// (asn, prefix, as_path) tuples.
func ReadOutput(r io.Reader) ([]ParsedOutputRow, error) {
	scanner := bufio.NewScanner(r)
	lineNo := 0
	var rows []ParsedOutputRow
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if lineNo == 1 || line == "" {
			continue
		}

		fields := splitOutputLine(line)
		if len(fields) != 3 {
			return nil, fmt.Errorf("iofmt: output line %d: expected 3 fields, got %d", lineNo, len(fields))
		}

		asnVal, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("iofmt: output line %d: bad asn: %w", lineNo, err)
		}
		prefix := fields[1]
		path, err := ParseAsPath(strings.Trim(fields[2], `"`))
		if err != nil {
			return nil, fmt.Errorf("iofmt: output line %d: %w", lineNo, err)
		}

		rows = append(rows, ParsedOutputRow{Asn: asn.ASN(asnVal), Prefix: prefix, AsPath: path})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("iofmt: reading output: %w", err)
	}
	return rows, nil
}

// splitOutputLine splits an output row on commas that are not inside the
// quoted as_path field, since as_path itself contains commas.
func splitOutputLine(line string) []string {
	firstComma := strings.IndexByte(line, ',')
	if firstComma < 0 {
		return []string{line}
	}
	rest := line[firstComma+1:]
	secondComma := strings.IndexByte(rest, ',')
	if secondComma < 0 {
		return []string{line[:firstComma], rest}
	}
	return []string{line[:firstComma], rest[:secondComma], rest[secondComma+1:]}
}
