package engine

import (
	"fmt"
	"io"
	"strings"

	"segment-filter-generator/internal/model"
	"segment-filter-generator/pkg/wellknown"
)

// Rule kinds, as they appear in generated rule identifiers.
const (
	RuleIPHostname  = "ip_hostname"
	RuleMACHostname = "mac_hostname"
	RuleSegment     = "segment"
	RuleDedup       = "deduplicate"
)

// Emitter writes a Logstash filter document for an Index. An Emitter
// carries the rule id counter and the set of synthetic fields written so
// far, so use a fresh Emitter per document.
type Emitter struct {
	// Generator is named in the header comment.
	Generator string

	w       io.Writer
	err     error
	lastID  int
	touched model.TouchedFields
	counts  map[string]int
}

func NewEmitter(w io.Writer, generator string) *Emitter {
	return &Emitter{
		Generator: generator,
		w:         w,
		touched:   make(model.TouchedFields),
		counts:    make(map[string]int),
	}
}

// Emit writes the complete filter document.
func (e *Emitter) Emit(idx *Index) error {
	e.line(0, "filter {")
	e.blank()
	e.line(1, "# this file was automatically generated by %s", e.Generator)
	e.line(1, "# input fingerprint %s", Fingerprint(idx))

	for _, g := range idx.Groups() {
		e.emitTagGroup(g)
	}
	e.emitDedup()

	e.blank()
	e.line(0, "} # end Filter")
	return e.err
}

// Touched returns the synthetic fields written by the rules emitted so far.
func (e *Emitter) Touched() model.TouchedFields {
	return e.touched
}

// RuleCounts returns the number of emitted rules per rule kind.
func (e *Emitter) RuleCounts() map[string]int {
	return e.counts
}

func (e *Emitter) emitTagGroup(g *TagGroup) {
	depth := 1
	if g.Tag.Present() {
		e.blank()
		e.line(depth, `if (%s in [tags]) {`, quote(g.Tag.Name()))
		depth++
	}

	for _, label := range g.Hosts.Labels() {
		e.emitHost(depth, label, g.Hosts.Addresses(label))
	}
	for _, label := range g.Segments.Labels() {
		e.emitSegment(depth, label, g.Segments.Addresses(label))
	}

	if g.Tag.Present() {
		e.blank()
		e.line(1, `} # end (if %s in [tags])`, quote(g.Tag.Name()))
	}
}

func (e *Emitter) emitHost(depth int, label string, addrs *AddressSet) {
	ips, macs, _ := addrs.Partition()
	if len(ips) > 0 {
		for _, dir := range model.Directions {
			e.emitHostMatch(depth, dir, wellknown.FieldIP, RuleIPHostname, label, ips)
		}
	}
	if len(macs) > 0 {
		for _, dir := range model.Directions {
			e.emitHostMatch(depth, dir, wellknown.FieldMAC, RuleMACHostname, label, macs)
		}
	}
}

func (e *Emitter) emitHostMatch(depth int, dir model.Direction, matchField, rule, label string, addrs []model.Address) {
	field := model.Field{Direction: dir, Kind: model.Hostname}
	match := wellknown.MustField(dir, matchField)
	target := wellknown.SyntheticField(field)
	id := e.ruleID("mutate_add_autogen", dir, rule)

	tests := make([]string, 0, len(addrs))
	for _, a := range addrs {
		tests = append(tests, fmt.Sprintf("(%s == %s)", match, quote(a.Value)))
	}

	e.blank()
	e.line(depth, "if (%s) and (%s) {", match, strings.Join(tests, " or "))
	e.line(depth+1, "mutate { id => %s", quote(id))
	e.line(depth+2, "add_field => { %s => %s }", quote(target), quote(label))
	e.line(depth+1, "}")
	e.line(depth, "}")

	e.touched.Add(field)
	e.counts[rule]++
}

func (e *Emitter) emitSegment(depth int, label string, addrs *AddressSet) {
	networks := make([]string, 0, addrs.Len())
	for _, a := range addrs.Items() {
		networks = append(networks, quote(a.Value))
	}

	for _, dir := range model.Directions {
		field := model.Field{Direction: dir, Kind: model.SegmentName}
		match := wellknown.MustField(dir, wellknown.FieldIP)
		target := wellknown.SyntheticField(field)
		id := e.ruleID("cidr_autogen", dir, RuleSegment)

		e.blank()
		e.line(depth, "if (%s) { cidr {", match)
		e.line(depth+1, "id => %s", quote(id))
		e.line(depth+1, `address => [ "%%{%s}" ]`, match)
		e.line(depth+1, "network => [ %s ]", strings.Join(networks, ", "))
		e.line(depth+1, "add_tag => [ %s ]", quote(label))
		e.line(depth+1, "add_field => { %s => %s }", quote(target), quote(label))
		e.line(depth, "} }")

		e.touched.Add(field)
		e.counts[RuleSegment]++
	}
}

// ruleID returns the next identifier, e.g. cidr_autogen_source_segment_3.
// Numbering is shared by all rule kinds and starts at 1.
func (e *Emitter) ruleID(prefix string, dir model.Direction, rule string) string {
	e.lastID++
	return fmt.Sprintf("%s_%s_%s_%d", prefix, dir, rule, e.lastID)
}

func (e *Emitter) line(depth int, format string, args ...any) {
	if e.err != nil {
		return
	}
	text := strings.Repeat("  ", depth) + fmt.Sprintf(format, args...) + "\n"
	_, e.err = io.WriteString(e.w, text)
}

func (e *Emitter) blank() {
	if e.err != nil {
		return
	}
	_, e.err = io.WriteString(e.w, "\n")
}

func quote(s string) string {
	return `"` + s + `"`
}
