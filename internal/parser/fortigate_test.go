package parser

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"segment-filter-generator/internal/model"
)

const fortigateConfig = `config system global
    set hostname "fw01"
end
config firewall address
    edit "all"
        set subnet 0.0.0.0 0.0.0.0
    next
    edit "office-lan"
        set uuid 6c1c8e3e-0000-0000-0000-000000000000
        set subnet 10.0.0.0 255.255.255.0
    next
    edit "printer"
        set subnet 10.0.0.77 255.255.255.255
    next
    edit "sloppy"
        set subnet 192.168.5.9 255.255.255.0
        config tagging
            edit "default"
                set category "site"
            next
        end
    next
    edit "addr-range"
        set type iprange
        set start-ip 192.168.1.10
        set end-ip 192.168.1.20
    next
    edit "fqdn-obj"
        set type fqdn
        set fqdn "example.com"
    next
end
config firewall address6
    edit "office-v6"
        set ip6 2001:db8:1::/48
    next
end
config firewall addrgrp
    edit "inner"
        set member "printer" "addr-range"
    next
    edit "sites"
        set member "office-lan" "inner" "office-v6"
    next
    edit "empty"
        set member "fqdn-obj"
    next
end
config firewall policy
    edit 1
        set srcaddr "sites"
        set dstaddr "all"
        set action accept
    next
end
`

func TestFortiGateParserImportsSegments(t *testing.T) {
	parser := NewFortiGateParser(strings.NewReader(fortigateConfig), "fw01.conf")
	result, err := parser.Parse()
	if err != nil {
		t.Fatalf("expected parse to succeed, got %v", err)
	}

	got := make(map[string][]string)
	var order []string
	for _, rec := range result.Records {
		if rec.Kind != model.Segment {
			t.Errorf("record %s: expected segment kind, got %s", rec.Label, rec.Kind)
		}
		if rec.Tag.Present() {
			t.Errorf("record %s: expected no tag, got %s", rec.Label, rec.Tag)
		}
		order = append(order, rec.Label)
		for _, a := range rec.Addresses {
			got[rec.Label] = append(got[rec.Label], a.Value)
		}
	}

	wantOrder := []string{"office-lan", "printer", "sloppy", "office-v6", "inner", "sites"}
	if !reflect.DeepEqual(order, wantOrder) {
		t.Fatalf("expected records %v, got %v", wantOrder, order)
	}

	want := map[string][]string{
		"office-lan": {"10.0.0.0/24"},
		"printer":    {"10.0.0.77/32"},
		"sloppy":     {"192.168.5.0/24"},
		"office-v6":  {"2001:db8:1::/48"},
		"inner":      {"10.0.0.77/32"},
		"sites":      {"10.0.0.0/24", "10.0.0.77/32", "2001:db8:1::/48"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("unexpected addresses:\n got %v\nwant %v", got, want)
	}

	if len(result.Diagnostics) != 2 {
		t.Fatalf("expected 2 diagnostics, got %d: %v", len(result.Diagnostics), result.Diagnostics)
	}
	for _, d := range result.Diagnostics {
		if !errors.Is(d, ErrUnsupportedObject) {
			t.Errorf("expected unsupported object diagnostic, got %v", d)
		}
		if d.Source != "fw01.conf" || d.Line == 0 {
			t.Errorf("expected diagnostic position in fw01.conf, got %s:%d", d.Source, d.Line)
		}
	}
	if result.Diagnostics[0].Value != "addr-range" || result.Diagnostics[1].Value != "fqdn-obj" {
		t.Errorf("unexpected diagnostic values: %v", result.Diagnostics)
	}
}

func TestFortiGateParserAppliesTag(t *testing.T) {
	parser := NewFortiGateParser(strings.NewReader(fortigateConfig), "fw01.conf")
	parser.Tag = model.Tag("fw01")
	result, err := parser.Parse()
	if err != nil {
		t.Fatalf("expected parse to succeed, got %v", err)
	}
	for _, rec := range result.Records {
		if rec.Tag.Name() != "fw01" {
			t.Errorf("record %s: expected tag fw01, got %s", rec.Label, rec.Tag)
		}
	}
}

func TestFortiGateParserErrors(t *testing.T) {
	configs := []string{
		"config firewall address\nedit addr1\nset subnet 10.0.0.0 255.0.0.0",
		"config firewall addrgrp\nedit grp1\nset member addr1",
		"config firewall address\nedit addr1\nconfig tagging\nedit x\nnext",
	}

	for _, cfg := range configs {
		parser := NewFortiGateParser(strings.NewReader(cfg), "truncated.conf")
		if _, err := parser.Parse(); err == nil {
			t.Errorf("expected error for truncated config: %s", cfg)
		}
	}
}

func TestFortiGateParserDetectsCircularAddressGroups(t *testing.T) {
	cfg := strings.Join([]string{
		"config firewall addrgrp",
		`edit "A"`,
		`set member "B"`,
		"next",
		`edit "B"`,
		`set member "A"`,
		"next",
		"end",
	}, "\n")

	parser := NewFortiGateParser(strings.NewReader(cfg), "loop.conf")
	if _, err := parser.Parse(); err == nil {
		t.Fatalf("expected circular dependency error for address groups")
	}
}

func TestLoadFortiGateFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fw01.conf.gz")
	writeGzip(t, path, fortigateConfig)

	result, err := LoadFortiGateFiles([]string{path, filepath.Join(dir, "missing.conf")}, model.NoTag())
	if err != nil {
		t.Fatalf("expected load to succeed, got %v", err)
	}
	if len(result.Records) != 6 {
		t.Errorf("expected 6 records, got %d", len(result.Records))
	}

	bad := filepath.Join(dir, "loop.conf")
	if err := os.WriteFile(bad, []byte("config firewall addrgrp\nedit A\nset member A\nnext\nend\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFortiGateFiles([]string{bad}, model.NoTag()); err == nil || !strings.Contains(err.Error(), bad) {
		t.Errorf("expected error naming %s, got %v", bad, err)
	}
}

func TestFortiGateParserKeepsSpacedNames(t *testing.T) {
	cfg := strings.Join([]string{
		"config firewall address",
		`    edit "Office LAN"`,
		"        set subnet 10.0.0.0 255.255.255.0",
		"    next",
		`    edit "Office WiFi"`,
		"        set subnet 10.1.0.0 255.255.255.0",
		"    next",
		"end",
		"config firewall addrgrp",
		`    edit "All Offices"`,
		`        set member "Office LAN" "Office WiFi"`,
		"    next",
		"end",
	}, "\n")

	result, err := NewFortiGateParser(strings.NewReader(cfg), "fw02.conf").Parse()
	if err != nil {
		t.Fatalf("expected parse to succeed, got %v", err)
	}

	got := make(map[string][]string)
	var order []string
	for _, rec := range result.Records {
		order = append(order, rec.Label)
		for _, a := range rec.Addresses {
			got[rec.Label] = append(got[rec.Label], a.Value)
		}
	}
	wantOrder := []string{"Office LAN", "Office WiFi", "All Offices"}
	if !reflect.DeepEqual(order, wantOrder) {
		t.Fatalf("expected records %v, got %v", wantOrder, order)
	}
	want := map[string][]string{
		"Office LAN":  {"10.0.0.0/24"},
		"Office WiFi": {"10.1.0.0/24"},
		"All Offices": {"10.0.0.0/24", "10.1.0.0/24"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("unexpected addresses:\n got %v\nwant %v", got, want)
	}
	if len(result.Diagnostics) != 0 {
		t.Errorf("expected no diagnostics, got %v", result.Diagnostics)
	}
}

func TestSplitConfigLine(t *testing.T) {
	cases := map[string][]string{
		`set member "Office LAN" plain "x"`:  {"set", "member", "Office LAN", "plain", "x"},
		`edit "say \"hi\""`:                  {"edit", `say "hi"`},
		"set subnet 10.0.0.0 255.255.255.0": {"set", "subnet", "10.0.0.0", "255.255.255.0"},
		`set comment ""`:                     {"set", "comment", ""},
		"   ":                                nil,
	}
	for line, want := range cases {
		if got := splitConfigLine(line); !reflect.DeepEqual(got, want) {
			t.Errorf("splitConfigLine(%q) = %q, want %q", line, got, want)
		}
	}
}
