package parser

import (
	"fmt"

	"github.com/valyala/fastjson"

	"segment-filter-generator/internal/engine"
	"segment-filter-generator/internal/model"
	"segment-filter-generator/pkg/wellknown"
)

// ParseEvents decodes a JSON array of sample events shaped like the
// Logstash events the filter runs on:
//
//	[{"tags": ["vlan10"], "source": {"ip": "10.0.0.5", "mac": "02:42:45:dc:a2:96"}, "destination": {"ip": "172.16.0.1"}}]
//
// Missing or non-string fields are absent. "tags" may be a single string.
func ParseEvents(data []byte) ([]engine.Event, error) {
	var p fastjson.Parser
	v, err := p.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parsing events: %w", err)
	}
	if v.Type() != fastjson.TypeArray {
		return nil, fmt.Errorf("parsing events: %w", ErrNotAnArray)
	}
	items, err := v.Array()
	if err != nil {
		return nil, fmt.Errorf("parsing events: %w", err)
	}

	events := make([]engine.Event, 0, len(items))
	for i, item := range items {
		if item.Type() != fastjson.TypeObject {
			return nil, fmt.Errorf("parsing events: element %d is not an object", i+1)
		}
		events = append(events, engine.Event{
			Tags:           eventTags(item.Get("tags")),
			SourceIP:       eventString(item, model.Source, wellknown.FieldIP),
			DestinationIP:  eventString(item, model.Destination, wellknown.FieldIP),
			SourceMAC:      eventString(item, model.Source, wellknown.FieldMAC),
			DestinationMAC: eventString(item, model.Destination, wellknown.FieldMAC),
		})
	}
	return events, nil
}

func eventString(v *fastjson.Value, dir model.Direction, field string) string {
	f := v.Get(dir.String(), field)
	if f == nil || f.Type() != fastjson.TypeString {
		return ""
	}
	return string(f.GetStringBytes())
}

func eventTags(v *fastjson.Value) []string {
	if v == nil {
		return nil
	}
	switch v.Type() {
	case fastjson.TypeString:
		return []string{string(v.GetStringBytes())}
	case fastjson.TypeArray:
		var tags []string
		for _, t := range v.GetArray() {
			if t.Type() == fastjson.TypeString {
				tags = append(tags, string(t.GetStringBytes()))
			}
		}
		return tags
	}
	return nil
}
