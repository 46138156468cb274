package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"segment-filter-generator/internal/engine"
)

func TestParseEvents(t *testing.T) {
	data := []byte(`[
		{"tags": ["vlan10", 3], "source": {"ip": "10.0.0.5", "mac": "02:42:45:dc:a2:96"}, "destination": {"ip": "172.16.0.1"}},
		{"tags": "lab", "source": {"ip": 42}},
		{}
	]`)

	events, err := ParseEvents(data)
	require.NoError(t, err)
	assert.Equal(t, []engine.Event{
		{Tags: []string{"vlan10"}, SourceIP: "10.0.0.5", SourceMAC: "02:42:45:dc:a2:96", DestinationIP: "172.16.0.1"},
		{Tags: []string{"lab"}},
		{},
	}, events)
}

func TestParseEventsRejectsBadDocuments(t *testing.T) {
	_, err := ParseEvents([]byte(`{"source": {"ip": "10.0.0.5"}}`))
	assert.ErrorIs(t, err, ErrNotAnArray)

	_, err = ParseEvents([]byte(`[{"source": {"ip": "10.0.0.5"}}, "oops"]`))
	assert.ErrorContains(t, err, "element 2")

	_, err = ParseEvents([]byte(`[{"source": `))
	assert.Error(t, err)
}
