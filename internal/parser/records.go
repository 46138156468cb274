package parser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"segment-filter-generator/internal/model"
	"segment-filter-generator/internal/utils"
)

var ErrMalformedRecord = errors.New("record is not formatted correctly")

// Diagnostic describes a dropped address token or a dropped record.
type Diagnostic struct {
	Source string
	Line   int
	Value  string
	Err    error
}

func (d *Diagnostic) Error() string {
	var b strings.Builder
	if d.Source != "" {
		b.WriteString(d.Source)
		if d.Line > 0 {
			fmt.Fprintf(&b, ":%d", d.Line)
		}
		b.WriteString(": ")
	}
	fmt.Fprintf(&b, "%q: %v", d.Value, d.Err)
	return b.String()
}

func (d *Diagnostic) Unwrap() error {
	return d.Err
}

// Diagnostics is a collection of diagnostics.
type Diagnostics []*Diagnostic

func (d Diagnostics) Error() string {
	if len(d) == 0 {
		return ""
	}
	if len(d) == 1 {
		return d[0].Error()
	}
	return fmt.Sprintf("%s (and %d more)", d[0].Error(), len(d)-1)
}

func (d Diagnostics) withSource(source string, line int) Diagnostics {
	for _, diag := range d {
		diag.Source = source
		diag.Line = line
	}
	return d
}

// Result holds the records and diagnostics collected from one or more inputs.
type Result struct {
	Records     []model.MappingRecord
	Diagnostics Diagnostics
}

func (r *Result) merge(other *Result) {
	if other == nil {
		return
	}
	r.Records = append(r.Records, other.Records...)
	r.Diagnostics = append(r.Diagnostics, other.Diagnostics...)
}

func malformed(line, reason string) *Diagnostic {
	return &Diagnostic{Value: line, Err: fmt.Errorf("%w: %s", ErrMalformedRecord, reason)}
}

func addressParser(kind model.MappingKind) func(string) (model.Address, error) {
	if kind == model.Host {
		return utils.ParseHostAddress
	}
	return utils.ParseSegmentAddress
}

// parseAddresses normalizes a comma-separated address field. Invalid
// tokens are reported and dropped.
func parseAddresses(kind model.MappingKind, field string) ([]model.Address, Diagnostics) {
	parse := addressParser(kind)
	var addrs []model.Address
	var diags Diagnostics
	for _, token := range utils.SplitAddressList(field) {
		addr, err := parse(token)
		if err != nil {
			diags = append(diags, &Diagnostic{Value: token, Err: err})
			continue
		}
		addrs = append(addrs, addr)
	}
	return addrs, diags
}

// ParseMappingLine parses one "addresses|label[|tag]" line. The returned
// record is nil when the line is rejected.
func ParseMappingLine(kind model.MappingKind, line string) (*model.MappingRecord, Diagnostics) {
	values := strings.Split(line, "|")
	for i := range values {
		values[i] = strings.TrimSpace(values[i])
	}
	if len(values) < 2 {
		return nil, Diagnostics{malformed(line, "expected at least address and name fields")}
	}

	addrs, diags := parseAddresses(kind, values[0])
	label := values[1]
	tag := ""
	if len(values) >= 3 {
		tag = values[2]
	}

	switch {
	case label == "":
		return nil, append(diags, malformed(line, "empty name"))
	case len(addrs) == 0:
		return nil, append(diags, malformed(line, "no valid addresses"))
	}

	return &model.MappingRecord{
		Kind:      kind,
		Label:     label,
		Addresses: addrs,
		Tag:       model.Tag(tag),
	}, diags
}

// maxLineLength bounds a single mapping line. Longer lines are dropped
// with a diagnostic.
const maxLineLength = 1024 * 1024

// readLine returns the next line without its terminator. A line longer
// than maxLineLength is consumed whole; only its first bytes are returned
// and tooLong is set.
func readLine(r *bufio.Reader) (line string, tooLong bool, err error) {
	var buf []byte
	for {
		chunk, isPrefix, err := r.ReadLine()
		if err != nil {
			return "", false, err
		}
		if !tooLong {
			if len(buf)+len(chunk) > maxLineLength {
				tooLong = true
				buf = append(buf, chunk...)[:64]
			} else {
				buf = append(buf, chunk...)
			}
		}
		if !isPrefix {
			return string(buf), tooLong, nil
		}
	}
}

// ParseMappingFile parses a line-oriented segment or host mapping file.
// Blank lines and lines starting with "#" are ignored.
func ParseMappingFile(kind model.MappingKind, r io.Reader, source string) (*Result, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	result := &Result{}
	lineNo := 0
	for {
		raw, tooLong, err := readLine(br)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading %s mapping file: %w", kind, err)
		}
		lineNo++
		if tooLong {
			diag := malformed(raw+"...", fmt.Sprintf("line exceeds %d bytes", maxLineLength))
			result.Diagnostics = append(result.Diagnostics, Diagnostics{diag}.withSource(source, lineNo)...)
			continue
		}
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		record, diags := ParseMappingLine(kind, line)
		result.Diagnostics = append(result.Diagnostics, diags.withSource(source, lineNo)...)
		if record != nil {
			result.Records = append(result.Records, *record)
		}
	}
	return result, nil
}

const (
	MixedTypeSegment = "segment"
	MixedTypeHost    = "host"
)

// MixedEntry is one element of a mixed mapping document or database table.
type MixedEntry struct {
	Type    string
	Name    string
	Address string
	Tag     string
}

// Record converts the entry into a mapping record. Entries with an
// unknown type or an empty name or address are not records and yield nil
// without diagnostics.
func (e MixedEntry) Record() (*model.MappingRecord, Diagnostics) {
	var kind model.MappingKind
	switch e.Type {
	case MixedTypeSegment:
		kind = model.Segment
	case MixedTypeHost:
		kind = model.Host
	default:
		return nil, nil
	}
	if e.Name == "" || e.Address == "" {
		return nil, nil
	}

	addrs, diags := parseAddresses(kind, e.Address)
	if len(addrs) == 0 {
		return nil, diags
	}
	return &model.MappingRecord{
		Kind:      kind,
		Label:     e.Name,
		Addresses: addrs,
		Tag:       model.Tag(e.Tag),
	}, diags
}

// ParseMixedEntries converts entries into records, skipping non-records.
func ParseMixedEntries(entries []MixedEntry, source string) *Result {
	result := &Result{}
	for i, entry := range entries {
		record, diags := entry.Record()
		result.Diagnostics = append(result.Diagnostics, diags.withSource(source, i+1)...)
		if record != nil {
			result.Records = append(result.Records, *record)
		}
	}
	return result
}
