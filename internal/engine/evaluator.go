package engine

import (
	"net/netip"
	"slices"

	"segment-filter-generator/internal/model"
)

// Event is the part of a Logstash event the generated rules look at.
// Empty strings stand for absent fields.
type Event struct {
	Tags           []string
	SourceIP       string
	DestinationIP  string
	SourceMAC      string
	DestinationMAC string
}

func (ev *Event) ip(dir model.Direction) string {
	if dir == model.Source {
		return ev.SourceIP
	}
	return ev.DestinationIP
}

func (ev *Event) mac(dir model.Direction) string {
	if dir == model.Source {
		return ev.SourceMAC
	}
	return ev.DestinationMAC
}

// Result is what the filter would add to an event.
type Result struct {
	Tags   []string
	Fields map[model.Field][]string
}

// Values returns the values written to f, in the order they were added.
func (r *Result) Values(f model.Field) []string {
	return r.Fields[f]
}

// Evaluator applies an Index to events the same way the emitted filter
// does in Logstash, without running Logstash.
type Evaluator struct {
	groups   []*TagGroup
	prefixes map[*AddressSet][]netip.Prefix
}

func NewEvaluator(idx *Index) *Evaluator {
	e := &Evaluator{
		groups:   idx.Groups(),
		prefixes: make(map[*AddressSet][]netip.Prefix),
	}
	for _, g := range e.groups {
		for _, label := range g.Segments.Labels() {
			set := g.Segments.Addresses(label)
			e.prefixes[set] = networkPrefixes(set)
		}
	}
	return e
}

// Evaluate runs every rule against ev in emission order. Tags added by a
// segment rule are visible to the tag guards of later groups.
func (e *Evaluator) Evaluate(ev Event) Result {
	res := Result{
		Tags:   slices.Clone(ev.Tags),
		Fields: make(map[model.Field][]string),
	}

	for _, g := range e.groups {
		if g.Tag.Present() && !slices.Contains(res.Tags, g.Tag.Name()) {
			continue
		}
		for _, label := range g.Hosts.Labels() {
			e.evaluateHost(&ev, &res, label, g.Hosts.Addresses(label))
		}
		for _, label := range g.Segments.Labels() {
			e.evaluateSegment(&ev, &res, label, g.Segments.Addresses(label))
		}
	}

	for f, vals := range res.Fields {
		res.Fields[f] = uniq(vals)
	}
	return res
}

func (e *Evaluator) evaluateHost(ev *Event, res *Result, label string, addrs *AddressSet) {
	ips, macs, _ := addrs.Partition()
	for _, dir := range model.Directions {
		if matchesExact(ev.ip(dir), ips) {
			res.add(model.Field{Direction: dir, Kind: model.Hostname}, label)
		}
	}
	for _, dir := range model.Directions {
		if matchesExact(ev.mac(dir), macs) {
			res.add(model.Field{Direction: dir, Kind: model.Hostname}, label)
		}
	}
}

func (e *Evaluator) evaluateSegment(ev *Event, res *Result, label string, addrs *AddressSet) {
	prefixes := e.prefixes[addrs]
	for _, dir := range model.Directions {
		value := ev.ip(dir)
		if value == "" {
			continue
		}
		ip, err := netip.ParseAddr(value)
		if err != nil {
			continue
		}
		if !containsAddr(prefixes, ip) {
			continue
		}
		if !slices.Contains(res.Tags, label) {
			res.Tags = append(res.Tags, label)
		}
		res.add(model.Field{Direction: dir, Kind: model.SegmentName}, label)
	}
}

func (r *Result) add(f model.Field, value string) {
	r.Fields[f] = append(r.Fields[f], value)
}

// matchesExact compares the raw field value, as the == test in the
// filter does. Event values are not normalized.
func matchesExact(value string, addrs []model.Address) bool {
	if value == "" {
		return false
	}
	for _, a := range addrs {
		if a.Value == value {
			return true
		}
	}
	return false
}

// networkPrefixes turns a segment's addresses into prefixes. Single
// addresses become host prefixes.
func networkPrefixes(set *AddressSet) []netip.Prefix {
	var prefixes []netip.Prefix
	for _, a := range set.Items() {
		switch a.Kind {
		case model.KindNetwork:
			if p, err := netip.ParsePrefix(a.Value); err == nil {
				prefixes = append(prefixes, p)
			}
		case model.KindIP:
			if ip, err := netip.ParseAddr(a.Value); err == nil {
				prefixes = append(prefixes, netip.PrefixFrom(ip, ip.BitLen()))
			}
		}
	}
	return prefixes
}

func containsAddr(prefixes []netip.Prefix, ip netip.Addr) bool {
	ip = ip.Unmap()
	for _, p := range prefixes {
		if p.Contains(ip) {
			return true
		}
	}
	return false
}

func uniq(vals []string) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}
