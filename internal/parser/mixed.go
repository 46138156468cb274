package parser

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/valyala/fastjson"
	"gopkg.in/yaml.v3"
)

var ErrNotAnArray = errors.New("mixed mapping document is not an array")

const (
	keyType    = "type"
	keyName    = "name"
	keyAddress = "address"
	keyTag     = "tag"
)

// ParseMixedJSON decodes a JSON array of mapping objects. Elements that
// are not objects or lack a required string key are skipped.
func ParseMixedJSON(data []byte) ([]MixedEntry, error) {
	var p fastjson.Parser
	v, err := p.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parsing mixed JSON: %w", err)
	}
	if v.Type() != fastjson.TypeArray {
		return nil, ErrNotAnArray
	}
	items, err := v.Array()
	if err != nil {
		return nil, fmt.Errorf("parsing mixed JSON: %w", err)
	}

	var entries []MixedEntry
	for _, item := range items {
		if item.Type() != fastjson.TypeObject {
			continue
		}
		entry, ok := mixedEntryFrom(func(key string) (string, bool) {
			f := item.Get(key)
			if f == nil || f.Type() != fastjson.TypeString {
				return "", false
			}
			b, err := f.StringBytes()
			if err != nil {
				return "", false
			}
			return string(b), true
		})
		if ok {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// ParseMixedYAML decodes a YAML sequence of mapping objects using the same
// keys as ParseMixedJSON.
func ParseMixedYAML(data []byte) ([]MixedEntry, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing mixed YAML: %w", err)
	}
	items, ok := doc.([]any)
	if !ok {
		return nil, ErrNotAnArray
	}

	var entries []MixedEntry
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		entry, ok := mixedEntryFrom(func(key string) (string, bool) {
			s, ok := obj[key].(string)
			return s, ok
		})
		if ok {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// ParseMixed picks the decoder from the file name. Compression suffixes
// are ignored, so "hosts.yaml.gz" decodes as YAML.
func ParseMixed(name string, data []byte) ([]MixedEntry, error) {
	switch strings.ToLower(filepath.Ext(trimCompressionExt(name))) {
	case ".yaml", ".yml":
		return ParseMixedYAML(data)
	default:
		return ParseMixedJSON(data)
	}
}

func mixedEntryFrom(get func(key string) (string, bool)) (MixedEntry, bool) {
	var entry MixedEntry
	var ok bool
	if entry.Type, ok = get(keyType); !ok {
		return entry, false
	}
	if entry.Name, ok = get(keyName); !ok {
		return entry, false
	}
	if entry.Address, ok = get(keyAddress); !ok {
		return entry, false
	}
	entry.Tag, _ = get(keyTag)
	return entry, true
}
