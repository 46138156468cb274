package engine

import (
	"strings"

	"github.com/google/uuid"

	"segment-filter-generator/internal/model"
)

var fingerprintNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("segment-filter-generator"))

// Fingerprint returns a name-based (v5) UUID of the index content. The
// same grouped input always yields the same fingerprint.
func Fingerprint(idx *Index) uuid.UUID {
	var b strings.Builder
	for _, g := range idx.Groups() {
		if g.Tag.Present() {
			b.WriteString("tag=" + g.Tag.Name())
		} else {
			b.WriteString("notag")
		}
		b.WriteByte('\n')
		writeLabelGroup(&b, model.Host, g.Hosts)
		writeLabelGroup(&b, model.Segment, g.Segments)
	}
	return uuid.NewSHA1(fingerprintNamespace, []byte(b.String()))
}

func writeLabelGroup(b *strings.Builder, kind model.MappingKind, g *LabelGroup) {
	for _, label := range g.Labels() {
		b.WriteString(kind.String() + "=" + label)
		for _, a := range g.Addresses(label).Items() {
			b.WriteString(" " + a.Kind.String() + ":" + a.Value)
		}
		b.WriteByte('\n')
	}
}
