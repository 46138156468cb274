package parser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"unicode"

	"segment-filter-generator/internal/model"
	"segment-filter-generator/internal/utils"
)

var ErrUnsupportedObject = errors.New("unsupported address object")

type fortiAddress struct {
	name string
	typ  string
	line int
	addr *model.Address
}

// FortiGateParser reads the address objects and address groups of a
// FortiGate configuration backup. Every subnet object and every group
// becomes a segment named after it.
type FortiGateParser struct {
	scanner *bufio.Scanner
	source  string
	lineNo  int

	Tag model.RequiredTag

	addressObjects map[string]*fortiAddress
	addrGrps       map[string][]string

	objectOrder []string
	groupOrder  []string
}

func NewFortiGateParser(reader io.Reader, source string) *FortiGateParser {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &FortiGateParser{
		scanner:        scanner,
		source:         source,
		addressObjects: make(map[string]*fortiAddress),
		addrGrps:       make(map[string][]string),
	}
}

func (p *FortiGateParser) next() (string, bool) {
	if !p.scanner.Scan() {
		return "", false
	}
	p.lineNo++
	return strings.TrimSpace(p.scanner.Text()), true
}

// Parse reads the whole configuration and returns one segment record per
// subnet object and per address group, in configuration order.
func (p *FortiGateParser) Parse() (*Result, error) {
	for {
		line, ok := p.next()
		if !ok {
			break
		}
		switch line {
		case "config firewall address":
			if err := p.parseAddressConfig("subnet"); err != nil {
				return nil, fmt.Errorf("failed to parse firewall address config: %w", err)
			}
		case "config firewall address6":
			if err := p.parseAddressConfig("ip6"); err != nil {
				return nil, fmt.Errorf("failed to parse firewall address6 config: %w", err)
			}
		case "config firewall addrgrp", "config firewall addrgrp6":
			if err := p.parseAddrGrpConfig(); err != nil {
				return nil, fmt.Errorf("failed to parse firewall addrgrp config: %w", err)
			}
		}
	}
	if err := p.scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	return p.records()
}

// skipBlock consumes a nested "config ... end" block.
func (p *FortiGateParser) skipBlock() error {
	depth := 1
	for {
		line, ok := p.next()
		if !ok {
			return io.ErrUnexpectedEOF
		}
		switch {
		case strings.HasPrefix(line, "config "):
			depth++
		case line == "end":
			depth--
			if depth == 0 {
				return nil
			}
		}
	}
}

func (p *FortiGateParser) parseAddressConfig(subnetKey string) error {
	var current *fortiAddress
	for {
		line, ok := p.next()
		if !ok {
			return io.ErrUnexpectedEOF
		}
		if line == "end" {
			return nil
		}
		if strings.HasPrefix(line, "config ") {
			if err := p.skipBlock(); err != nil {
				return err
			}
			continue
		}
		parts := splitConfigLine(line)
		if len(parts) < 2 {
			continue
		}
		switch parts[0] {
		case "edit":
			name := parts[1]
			// Objects default to ipmask when no type is set.
			current = &fortiAddress{name: name, typ: "ipmask", line: p.lineNo}
			if _, seen := p.addressObjects[name]; !seen {
				p.objectOrder = append(p.objectOrder, name)
			}
			p.addressObjects[name] = current
		case "set":
			if current == nil || len(parts) < 3 {
				continue
			}
			switch parts[1] {
			case "type":
				current.typ = parts[2]
			case subnetKey:
				current.addr = parseSubnet(parts[2:])
			}
		case "next":
			current = nil
		}
	}
}

// parseSubnet accepts "10.0.0.0 255.255.255.0" and "10.0.0.0/24" forms.
// Host bits are cleared.
func parseSubnet(fields []string) *model.Address {
	value := fields[0]
	if len(fields) > 1 && !strings.Contains(value, "/") {
		mask := net.IPMask(net.ParseIP(fields[1]).To4())
		ones, bits := mask.Size()
		if bits == 0 {
			return nil
		}
		value = fmt.Sprintf("%s/%d", value, ones)
	}
	_, ipnet, err := net.ParseCIDR(value)
	if err != nil {
		return nil
	}
	addr, err := utils.ParseSegmentAddress(ipnet.String())
	if err != nil {
		return nil
	}
	return &addr
}

func (p *FortiGateParser) parseAddrGrpConfig() error {
	var currentGroup string
	for {
		line, ok := p.next()
		if !ok {
			return io.ErrUnexpectedEOF
		}
		if line == "end" {
			return nil
		}
		if strings.HasPrefix(line, "config ") {
			if err := p.skipBlock(); err != nil {
				return err
			}
			continue
		}
		parts := splitConfigLine(line)
		if len(parts) < 2 {
			continue
		}
		switch parts[0] {
		case "edit":
			currentGroup = parts[1]
			if _, seen := p.addrGrps[currentGroup]; !seen {
				p.groupOrder = append(p.groupOrder, currentGroup)
				p.addrGrps[currentGroup] = nil
			}
		case "set":
			if currentGroup != "" && parts[1] == "member" {
				p.addrGrps[currentGroup] = append([]string(nil), parts[2:]...)
			}
		case "next":
			currentGroup = ""
		}
	}
}

func (p *FortiGateParser) records() (*Result, error) {
	result := &Result{}
	for _, name := range p.objectOrder {
		obj := p.addressObjects[name]
		if isAll(name) {
			continue
		}
		if obj.addr == nil {
			result.Diagnostics = append(result.Diagnostics, &Diagnostic{
				Source: p.source,
				Line:   obj.line,
				Value:  name,
				Err:    fmt.Errorf("%w: type %s", ErrUnsupportedObject, obj.typ),
			})
			continue
		}
		result.Records = append(result.Records, model.MappingRecord{
			Kind:      model.Segment,
			Label:     name,
			Addresses: []model.Address{*obj.addr},
			Tag:       p.Tag,
		})
	}

	for _, name := range p.groupOrder {
		addrs, err := p.flattenAddrGroup(name, make(map[string]bool))
		if err != nil {
			return nil, err
		}
		if len(addrs) == 0 {
			slog.Debug("Skipping address group without subnets", "source", p.source, "group", name)
			continue
		}
		result.Records = append(result.Records, model.MappingRecord{
			Kind:      model.Segment,
			Label:     name,
			Addresses: addrs,
			Tag:       p.Tag,
		})
	}
	return result, nil
}

// flattenAddrGroup resolves nested groups to the subnets of their member
// objects. Members that are unknown or not subnets contribute nothing.
func (p *FortiGateParser) flattenAddrGroup(name string, visited map[string]bool) ([]model.Address, error) {
	if isAll(name) {
		return nil, nil
	}

	if visited[name] {
		return nil, fmt.Errorf("circular dependency detected in address group '%s'", name)
	}
	visited[name] = true
	defer delete(visited, name)

	var results []model.Address

	if obj, ok := p.addressObjects[name]; ok && obj.addr != nil {
		results = append(results, *obj.addr)
	}

	if members, ok := p.addrGrps[name]; ok {
		for _, memberName := range members {
			memberAddrs, err := p.flattenAddrGroup(memberName, visited)
			if err != nil {
				return nil, err
			}
			results = append(results, memberAddrs...)
		}
	}

	return results, nil
}

func isAll(name string) bool {
	return strings.EqualFold(name, "all")
}

// splitConfigLine splits a CLI line into words. A double-quoted word may
// contain spaces and backslash escapes. Quotes are removed.
func splitConfigLine(line string) []string {
	var words []string
	var b strings.Builder
	inWord, quoted, escaped := false, false, false
	for _, r := range line {
		switch {
		case escaped:
			b.WriteRune(r)
			escaped = false
		case quoted && r == '\\':
			escaped = true
		case r == '"':
			quoted = !quoted
			inWord = true
		case !quoted && unicode.IsSpace(r):
			if inWord {
				words = append(words, b.String())
				b.Reset()
				inWord = false
			}
		default:
			b.WriteRune(r)
			inWord = true
		}
	}
	if inWord {
		words = append(words, b.String())
	}
	return words
}
