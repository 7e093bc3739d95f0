// Package endpoint implements the range-expansion grammar from spec.md
// §4.1: parsing "{a-b}" address/port patterns into a deterministic,
// bounded set of multicast Endpoints.
package endpoint

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cwsl/pagewatch/internal/perr"
)

// MaxEndpoints bounds a single expansion, per spec.md §4.1.
const MaxEndpoints = 65536

// Endpoint identifies a (multicast group, port) pair. Identity is by
// value; an Endpoint is immutable once produced by Expand.
type Endpoint struct {
	Addr string // dotted-quad, e.g. "224.0.1.42"
	Port uint16
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s:%d", e.Addr, e.Port)
}

// FilePrefix renders the endpoint the way the WAV filename pattern in
// spec.md §6 requires: dots replaced with underscores.
func (e Endpoint) FilePrefix() string {
	return fmt.Sprintf("%s_%d", strings.ReplaceAll(e.Addr, ".", "_"), e.Port)
}

type octetRange struct {
	lo, hi int
}

// Expand parses pattern per the EBNF in spec.md §4.1 and enumerates every
// endpoint it denotes, in lexicographic order over
// (octet1, octet2, octet3, octet4, port). monitorMode, when true, enforces
// that every expanded address lies in 224.0.0.0/4 (NotMulticast otherwise);
// monitorMode=false skips that check, so unicast addresses are accepted.
func Expand(pattern string, monitorMode bool) ([]Endpoint, error) {
	trimmed := strings.TrimSpace(pattern)
	if trimmed == "" {
		return nil, perr.Newf(perr.InvalidPattern, "", "empty pattern")
	}
	if strings.ContainsAny(trimmed, " \t\n\r") {
		return nil, perr.Newf(perr.InvalidPattern, "", "embedded whitespace in pattern %q", pattern)
	}

	host := trimmed
	portPart := ""
	if idx := strings.LastIndex(trimmed, ":"); idx >= 0 {
		host = trimmed[:idx]
		portPart = trimmed[idx+1:]
	}

	octetStrs := strings.Split(host, ".")
	if len(octetStrs) != 4 {
		return nil, perr.Newf(perr.InvalidPattern, "", "host %q must have 4 octets", host)
	}

	octetRanges := make([]octetRange, 4)
	for i, s := range octetStrs {
		r, err := parseRange(s, 0, 255)
		if err != nil {
			return nil, perr.Newf(perr.InvalidPattern, "", "octet %d: %v", i+1, err)
		}
		octetRanges[i] = r
	}

	portRange := octetRange{lo: 5004, hi: 5004}
	if portPart != "" {
		r, err := parseRange(portPart, 0, 65535)
		if err != nil {
			return nil, perr.Newf(perr.InvalidPattern, "", "port: %v", err)
		}
		portRange = r
	}

	total := rangeCount(octetRanges[0]) * rangeCount(octetRanges[1]) *
		rangeCount(octetRanges[2]) * rangeCount(octetRanges[3]) * rangeCount(portRange)
	if total > MaxEndpoints {
		return nil, perr.Newf(perr.RangeTooLarge, "", "pattern %q expands to %d endpoints (max %d)", pattern, total, MaxEndpoints)
	}

	endpoints := make([]Endpoint, 0, total)
	for a := octetRanges[0].lo; a <= octetRanges[0].hi; a++ {
		for b := octetRanges[1].lo; b <= octetRanges[1].hi; b++ {
			for c := octetRanges[2].lo; c <= octetRanges[2].hi; c++ {
				for d := octetRanges[3].lo; d <= octetRanges[3].hi; d++ {
					addr := fmt.Sprintf("%d.%d.%d.%d", a, b, c, d)
					if monitorMode && !isMulticast(a) {
						return nil, perr.Newf(perr.NotMulticast, "", "%s is not in 224.0.0.0/4", addr)
					}
					for p := portRange.lo; p <= portRange.hi; p++ {
						endpoints = append(endpoints, Endpoint{Addr: addr, Port: uint16(p)})
					}
				}
			}
		}
	}

	sort.Slice(endpoints, func(i, j int) bool {
		if endpoints[i].Addr != endpoints[j].Addr {
			return lessAddr(endpoints[i].Addr, endpoints[j].Addr)
		}
		return endpoints[i].Port < endpoints[j].Port
	})

	return endpoints, nil
}

func isMulticast(firstOctet int) bool {
	return firstOctet >= 224 && firstOctet <= 239
}

func rangeCount(r octetRange) int { return r.hi - r.lo + 1 }

// parseRange parses either a bare integer or a "{lo-hi}" range, validating
// against [min, max] and lo <= hi.
func parseRange(s string, min, max int) (octetRange, error) {
	if strings.HasPrefix(s, "{") {
		if !strings.HasSuffix(s, "}") {
			return octetRange{}, fmt.Errorf("unterminated range %q", s)
		}
		body := s[1 : len(s)-1]
		parts := strings.SplitN(body, "-", 2)
		if len(parts) != 2 {
			return octetRange{}, fmt.Errorf("malformed range %q", s)
		}
		lo, err := strconv.Atoi(parts[0])
		if err != nil {
			return octetRange{}, fmt.Errorf("malformed range start %q", parts[0])
		}
		hi, err := strconv.Atoi(parts[1])
		if err != nil {
			return octetRange{}, fmt.Errorf("malformed range end %q", parts[1])
		}
		if lo < min || hi > max || lo > hi {
			return octetRange{}, fmt.Errorf("range %q out of bounds [%d,%d]", s, min, max)
		}
		return octetRange{lo: lo, hi: hi}, nil
	}

	v, err := strconv.Atoi(s)
	if err != nil {
		return octetRange{}, fmt.Errorf("malformed value %q", s)
	}
	if v < min || v > max {
		return octetRange{}, fmt.Errorf("value %d out of bounds [%d,%d]", v, min, max)
	}
	return octetRange{lo: v, hi: v}, nil
}

// lessAddr compares dotted-quad strings numerically, octet by octet, so
// "224.0.1.9" sorts before "224.0.1.10".
func lessAddr(a, b string) bool {
	pa := strings.Split(a, ".")
	pb := strings.Split(b, ".")
	for i := 0; i < 4; i++ {
		na, _ := strconv.Atoi(pa[i])
		nb, _ := strconv.Atoi(pb[i])
		if na != nb {
			return na < nb
		}
	}
	return false
}
