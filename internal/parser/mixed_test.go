package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMixedJSON(t *testing.T) {
	data := []byte(`[
		{"type": "segment", "name": "corp", "address": "172.16.0.0/12"},
		{"type": "host", "name": "box1", "address": "02:42:45:dc:a2:96", "tag": "vlan10"},
		{"type": "host", "name": "box2"},
		{"type": "host", "name": 5, "address": "10.0.0.1"},
		"not an object",
		{"type": "segment", "name": "lab", "address": "10.1.0.0/16", "tag": 7}
	]`)

	entries, err := ParseMixedJSON(data)
	require.NoError(t, err)
	assert.Equal(t, []MixedEntry{
		{Type: "segment", Name: "corp", Address: "172.16.0.0/12"},
		{Type: "host", Name: "box1", Address: "02:42:45:dc:a2:96", Tag: "vlan10"},
		{Type: "segment", Name: "lab", Address: "10.1.0.0/16"},
	}, entries)
}

func TestParseMixedJSONRejectsNonArrays(t *testing.T) {
	_, err := ParseMixedJSON([]byte(`{"type": "segment"}`))
	assert.ErrorIs(t, err, ErrNotAnArray)

	_, err = ParseMixedJSON([]byte(`[{"type": `))
	assert.Error(t, err)
}

func TestParseMixedYAML(t *testing.T) {
	data := []byte(`
- type: segment
  name: corp
  address: 10.0.0.0/8, 192.168.1.5
- type: host
  name: box1
  address: 172.16.10.41
  tag: vlan10
- name: missing-type
  address: 10.0.0.1
`)
	entries, err := ParseMixedYAML(data)
	require.NoError(t, err)
	assert.Equal(t, []MixedEntry{
		{Type: "segment", Name: "corp", Address: "10.0.0.0/8, 192.168.1.5"},
		{Type: "host", Name: "box1", Address: "172.16.10.41", Tag: "vlan10"},
	}, entries)

	_, err = ParseMixedYAML([]byte("type: segment\n"))
	assert.ErrorIs(t, err, ErrNotAnArray)
}

func TestParseMixedPicksDecoderByExtension(t *testing.T) {
	yamlDoc := []byte("- {type: host, name: box1, address: 10.0.0.1}\n")

	entries, err := ParseMixed("hosts.yml.gz", yamlDoc)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	// The flow mapping above is not JSON.
	_, err = ParseMixed("hosts.json", yamlDoc)
	assert.Error(t, err)
}
