package wellknown

import (
	"bytes"
	"encoding/csv"
	"io"
	"log"
	"strings"

	_ "embed"

	"segment-filter-generator/internal/model"
)

//go:embed fields.csv
var eventFieldsData string

// Event fields read by generated rules. Hostname and segment are the
// synthetic fields they write.
const (
	FieldIP       = "ip"
	FieldMAC      = "mac"
	FieldHostname = "hostname"
	FieldSegment  = "segment"
)

var fieldRegistry map[string]string

func init() {
	fieldRegistry = make(map[string]string)
	reader := csv.NewReader(bytes.NewBufferString(eventFieldsData))
	reader.TrimLeadingSpace = true
	// Skip header
	if _, err := reader.Read(); err != nil {
		log.Fatalf("Failed to read header from embedded fields.csv: %v", err)
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatalf("Failed to parse embedded fields.csv: %v", err)
		}
		if len(record) < 3 {
			continue
		}
		fieldRegistry[fieldKey(record[0], record[1])] = strings.TrimSpace(record[2])
	}
}

func fieldKey(direction, field string) string {
	return strings.ToLower(strings.TrimSpace(direction)) + "." + strings.ToLower(strings.TrimSpace(field))
}

// GetField returns the Logstash field reference for field on one side of an event.
func GetField(direction model.Direction, field string) (string, bool) {
	path, ok := fieldRegistry[fieldKey(direction.String(), field)]
	return path, ok
}

// MustField is GetField for the fixed vocabulary above.
func MustField(direction model.Direction, field string) string {
	path, ok := GetField(direction, field)
	if !ok {
		panic("wellknown: unknown event field " + direction.String() + "." + field)
	}
	return path
}

// KindField returns the event field name a synthetic field kind is stored under.
func KindField(kind model.FieldKind) string {
	if kind == model.Hostname {
		return FieldHostname
	}
	return FieldSegment
}

// SyntheticField returns the field reference written for f.
func SyntheticField(f model.Field) string {
	return MustField(f.Direction, KindField(f.Kind))
}
