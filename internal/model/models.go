package model

type AddressKind int

const (
	KindIP AddressKind = iota
	KindNetwork
	KindMAC
)

func (k AddressKind) String() string {
	switch k {
	case KindIP:
		return "ip"
	case KindNetwork:
		return "network"
	case KindMAC:
		return "mac"
	default:
		return "unknown"
	}
}

// Address is a normalized IP address, CIDR network or MAC address.
// Value is always lowercase; networks keep their prefix length.
type Address struct {
	Kind  AddressKind
	Value string
}

func (a Address) String() string {
	return a.Value
}

type MappingKind int

const (
	Host MappingKind = iota
	Segment
)

func (k MappingKind) String() string {
	if k == Host {
		return "host"
	}
	return "segment"
}

// RequiredTag is a tag an event must carry for a mapping to apply.
// The zero value means no tag is required.
type RequiredTag struct {
	name    string
	present bool
}

func NoTag() RequiredTag {
	return RequiredTag{}
}

// Tag returns a RequiredTag for name, or NoTag when name is empty.
func Tag(name string) RequiredTag {
	if name == "" {
		return NoTag()
	}
	return RequiredTag{name: name, present: true}
}

func (t RequiredTag) Name() string  { return t.name }
func (t RequiredTag) Present() bool { return t.present }

func (t RequiredTag) String() string {
	if !t.present {
		return "<none>"
	}
	return t.name
}

type MappingRecord struct {
	Kind      MappingKind
	Label     string
	Addresses []Address
	Tag       RequiredTag
}

type Direction int

const (
	Source Direction = iota
	Destination
)

// Directions is the fixed order rules are emitted in.
var Directions = []Direction{Source, Destination}

func (d Direction) String() string {
	if d == Source {
		return "source"
	}
	return "destination"
}

type FieldKind int

const (
	Hostname FieldKind = iota
	SegmentName
)

func (k FieldKind) String() string {
	if k == Hostname {
		return "hostname"
	}
	return "segment"
}

// Field identifies one of the synthetic fields written by generated rules.
type Field struct {
	Direction Direction
	Kind      FieldKind
}

// SyntheticFields lists every synthetic field in deduplication order.
var SyntheticFields = []Field{
	{Source, Hostname},
	{Source, SegmentName},
	{Destination, Hostname},
	{Destination, SegmentName},
}

// TouchedFields records which synthetic fields at least one rule writes.
type TouchedFields map[Field]struct{}

func (t TouchedFields) Add(f Field) {
	t[f] = struct{}{}
}

func (t TouchedFields) Has(f Field) bool {
	_, ok := t[f]
	return ok
}

// All returns the touched fields in deduplication order.
func (t TouchedFields) All() []Field {
	var fields []Field
	for _, f := range SyntheticFields {
		if t.Has(f) {
			fields = append(fields, f)
		}
	}
	return fields
}
