package engine

import (
	"regexp"

	"segment-filter-generator/pkg/wellknown"
)

var nonAlnumRegex = regexp.MustCompile(`[^0-9a-zA-Z]+`)

// dedupID derives a stable identifier from a field reference:
// [source][hostname] becomes ruby_source_hostname_deduplicate.
func dedupID(fieldRef string) string {
	return "ruby" + nonAlnumRegex.ReplaceAllString(fieldRef, "_") + RuleDedup
}

// emitDedup collapses repeated values in every synthetic field that more
// than one rule may have appended to. Fields no rule wrote are skipped.
func (e *Emitter) emitDedup() {
	fields := e.touched.All()
	if len(fields) == 0 {
		return
	}

	e.blank()
	e.line(1, "# deduplicate any added fields")
	for _, f := range fields {
		ref := wellknown.SyntheticField(f)
		e.blank()
		e.line(1, "if (%s) {", ref)
		e.line(2, "ruby { id => %s", quote(dedupID(ref)))
		e.line(3, `code => "`)
		e.line(4, "fieldVals = event.get('%s')", ref)
		e.line(4, "if fieldVals.kind_of?(Array) then event.set('%s', fieldVals.uniq) end", ref)
		e.line(3, `"`)
		e.line(2, "}")
		e.line(1, "}")
		e.counts[RuleDedup]++
	}
}
