package utils

import (
	"errors"
	"fmt"
	"net/netip"
	"regexp"
	"strings"

	"segment-filter-generator/internal/model"
)

var ErrInvalidAddress = errors.New("invalid address")

var macAddrRegex = regexp.MustCompile(`^([0-9a-fA-F]{2}[:-]){5}[0-9a-fA-F]{2}$`)

// ParseAddress normalizes a CIDR network, a single IP address or a MAC
// address, tried in that order.
func ParseAddress(token string) (model.Address, error) {
	if strings.Contains(token, "/") {
		prefix, err := netip.ParsePrefix(token)
		if err != nil {
			return model.Address{}, fmt.Errorf("%w: %q: %v", ErrInvalidAddress, token, err)
		}
		// Host bits must be clear, 10.0.0.1/8 is not a network.
		if prefix.Masked() != prefix {
			return model.Address{}, fmt.Errorf("%w: %q has host bits set", ErrInvalidAddress, token)
		}
		return model.Address{Kind: model.KindNetwork, Value: strings.ToLower(prefix.String())}, nil
	}

	if addr, err := netip.ParseAddr(token); err == nil {
		return model.Address{Kind: model.KindIP, Value: strings.ToLower(addr.String())}, nil
	}

	if macAddrRegex.MatchString(token) {
		return model.Address{Kind: model.KindMAC, Value: NormalizeMAC(token)}, nil
	}

	return model.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, token)
}

// ParseSegmentAddress accepts networks and single IP addresses.
func ParseSegmentAddress(token string) (model.Address, error) {
	addr, err := ParseAddress(token)
	if err != nil {
		return addr, err
	}
	if addr.Kind == model.KindMAC {
		return model.Address{}, fmt.Errorf("%w: %q is not an IP address or network", ErrInvalidAddress, token)
	}
	return addr, nil
}

// ParseHostAddress accepts single IP addresses and MAC addresses.
func ParseHostAddress(token string) (model.Address, error) {
	addr, err := ParseAddress(token)
	if err != nil {
		return addr, err
	}
	if addr.Kind == model.KindNetwork {
		return model.Address{}, fmt.Errorf("%w: %q is not an IP or MAC address", ErrInvalidAddress, token)
	}
	return addr, nil
}

// NormalizeMAC lowercases a MAC address and uses ":" as the separator.
func NormalizeMAC(mac string) string {
	return strings.ToLower(strings.ReplaceAll(mac, "-", ":"))
}

// SplitAddressList removes all whitespace from s and splits it on commas.
// Empty elements are dropped.
func SplitAddressList(s string) []string {
	compact := strings.Join(strings.Fields(s), "")
	var tokens []string
	for _, tok := range strings.Split(compact, ",") {
		if tok != "" {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}
