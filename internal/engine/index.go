package engine

import (
	"segment-filter-generator/internal/model"
)

// AddressSet is an insertion-ordered set of addresses.
type AddressSet struct {
	items []model.Address
	seen  map[model.Address]struct{}
}

func newAddressSet() *AddressSet {
	return &AddressSet{seen: make(map[model.Address]struct{})}
}

func (s *AddressSet) Add(addrs ...model.Address) {
	for _, a := range addrs {
		if _, ok := s.seen[a]; ok {
			continue
		}
		s.seen[a] = struct{}{}
		s.items = append(s.items, a)
	}
}

func (s *AddressSet) Len() int {
	return len(s.items)
}

// Items returns the addresses in first-seen order.
func (s *AddressSet) Items() []model.Address {
	return s.items
}

// Partition splits the set by address kind, preserving order.
func (s *AddressSet) Partition() (ips, macs, networks []model.Address) {
	for _, a := range s.items {
		switch a.Kind {
		case model.KindIP:
			ips = append(ips, a)
		case model.KindMAC:
			macs = append(macs, a)
		case model.KindNetwork:
			networks = append(networks, a)
		}
	}
	return ips, macs, networks
}

// LabelGroup maps labels to their addresses in label insertion order.
type LabelGroup struct {
	labels []string
	sets   map[string]*AddressSet
}

func newLabelGroup() *LabelGroup {
	return &LabelGroup{sets: make(map[string]*AddressSet)}
}

func (g *LabelGroup) add(label string, addrs []model.Address) {
	set, ok := g.sets[label]
	if !ok {
		set = newAddressSet()
		g.sets[label] = set
		g.labels = append(g.labels, label)
	}
	set.Add(addrs...)
}

func (g *LabelGroup) Labels() []string {
	return g.labels
}

func (g *LabelGroup) Addresses(label string) *AddressSet {
	return g.sets[label]
}

func (g *LabelGroup) Len() int {
	return len(g.labels)
}

// TagGroup holds the host and segment mappings that share a required tag.
type TagGroup struct {
	Tag      model.RequiredTag
	Hosts    *LabelGroup
	Segments *LabelGroup
}

func (g *TagGroup) group(kind model.MappingKind) *LabelGroup {
	if kind == model.Host {
		return g.Hosts
	}
	return g.Segments
}

// Index groups mapping records by required tag, then kind, then label.
// Addresses for the same (tag, kind, label) are unioned.
type Index struct {
	order  []model.RequiredTag
	groups map[model.RequiredTag]*TagGroup
}

func NewIndex() *Index {
	return &Index{groups: make(map[model.RequiredTag]*TagGroup)}
}

// BuildIndex folds records into a new index.
func BuildIndex(records []model.MappingRecord) *Index {
	idx := NewIndex()
	for i := range records {
		idx.Add(&records[i])
	}
	return idx
}

// Add folds one record into the index. Records without a label or
// without addresses are ignored.
func (idx *Index) Add(record *model.MappingRecord) bool {
	if record == nil || record.Label == "" || len(record.Addresses) == 0 {
		return false
	}
	g, ok := idx.groups[record.Tag]
	if !ok {
		g = &TagGroup{Tag: record.Tag, Hosts: newLabelGroup(), Segments: newLabelGroup()}
		idx.groups[record.Tag] = g
		idx.order = append(idx.order, record.Tag)
	}
	g.group(record.Kind).add(record.Label, record.Addresses)
	return true
}

// Groups returns the tag groups in insertion order.
func (idx *Index) Groups() []*TagGroup {
	groups := make([]*TagGroup, 0, len(idx.order))
	for _, tag := range idx.order {
		groups = append(groups, idx.groups[tag])
	}
	return groups
}

// Lookup returns the addresses for a (tag, kind, label) triple.
func (idx *Index) Lookup(tag model.RequiredTag, kind model.MappingKind, label string) (*AddressSet, bool) {
	g, ok := idx.groups[tag]
	if !ok {
		return nil, false
	}
	set := g.group(kind).Addresses(label)
	return set, set != nil
}

// Len returns the number of (tag, kind, label) groups.
func (idx *Index) Len() int {
	n := 0
	for _, g := range idx.groups {
		n += g.Hosts.Len() + g.Segments.Len()
	}
	return n
}

func (idx *Index) Empty() bool {
	return idx.Len() == 0
}
