// Package groups names TLS key-exchange groups (the IANA "TLS Supported
// Groups" registry) and classifies the post-quantum and hybrid ones.
package groups

import (
	"crypto/tls"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind classifies a group by the primitives it combines.
type Kind int

const (
	KindUnknown Kind = iota
	KindClassical
	KindPostQuantum
	KindHybrid
)

func (k Kind) String() string {
	switch k {
	case KindClassical:
		return "classical"
	case KindPostQuantum:
		return "post-quantum"
	case KindHybrid:
		return "hybrid"
	default:
		return "unknown"
	}
}

type group struct {
	name string
	kind Kind
}

// registry is keyed by codepoint. Names follow what OpenSSL prints in its
// handshake trace, which for the ML-KEM groups matches crypto/tls.
var registry = map[uint16]group{
	0x0017: {"secp256r1", KindClassical},
	0x0018: {"secp384r1", KindClassical},
	0x0019: {"secp521r1", KindClassical},
	0x001d: {"X25519", KindClassical},
	0x001e: {"X448", KindClassical},
	0x001f: {"brainpoolP256r1tls13", KindClassical},
	0x0020: {"brainpoolP384r1tls13", KindClassical},
	0x0021: {"brainpoolP512r1tls13", KindClassical},
	0x0100: {"ffdhe2048", KindClassical},
	0x0101: {"ffdhe3072", KindClassical},
	0x0102: {"ffdhe4096", KindClassical},
	0x0103: {"ffdhe6144", KindClassical},
	0x0104: {"ffdhe8192", KindClassical},

	0x0200: {"MLKEM512", KindPostQuantum},
	0x0201: {"MLKEM768", KindPostQuantum},
	0x0202: {"MLKEM1024", KindPostQuantum},

	0x11eb: {"SecP256r1MLKEM768", KindHybrid},
	0x11ec: {"X25519MLKEM768", KindHybrid},
	0x11ed: {"SecP384r1MLKEM1024", KindHybrid},

	// pre-standard Kyber drafts still seen in the wild
	0x6399: {"X25519Kyber768Draft00", KindHybrid},
	0x639a: {"SecP256r1Kyber768Draft00", KindHybrid},
	0xfe30: {"X25519Kyber768Draft00Old", KindHybrid},
	0xfe31: {"P256Kyber768Draft00", KindHybrid},
	0xfe32: {"X25519Kyber512Draft00", KindHybrid},
	0xfe33: {"Kyber768Draft00", KindPostQuantum},
}

var byName = func() map[string]uint16 {
	m := make(map[string]uint16, len(registry)+4)
	for id, g := range registry {
		m[strings.ToLower(g.name)] = id
	}
	// common aliases
	m["p-256"] = 0x0017
	m["p256"] = 0x0017
	m["prime256v1"] = 0x0017
	m["p-384"] = 0x0018
	m["p384"] = 0x0018
	m["p-521"] = 0x0019
	m["p521"] = 0x0019
	m["x25519mlkem"] = 0x11ec
	return m
}()

// Name returns the registry name for id, falling back to crypto/tls's own
// naming and finally to a hex label.
func Name(id uint16) string {
	if g, ok := registry[id]; ok {
		return g.name
	}
	s := tls.CurveID(id).String()
	if !strings.HasPrefix(s, "CurveID(") {
		return s
	}
	return fmt.Sprintf("0x%04X", id)
}

// Lookup resolves a group name (case-insensitive, common aliases accepted)
// or a numeric codepoint ("4588", "0x11ec") to its codepoint.
func Lookup(name string) (uint16, bool) {
	name = strings.TrimSpace(name)
	if id, ok := byName[strings.ToLower(name)]; ok {
		return id, true
	}
	if v, err := strconv.ParseUint(name, 0, 16); err == nil {
		return uint16(v), true
	}
	return 0, false
}

// KindOf classifies id.
func KindOf(id uint16) Kind {
	if g, ok := registry[id]; ok {
		return g.kind
	}
	return KindUnknown
}

// KindOfName classifies a group given by name, as printed in a trace or
// reported by a TLS stack.
func KindOfName(name string) Kind {
	id, ok := Lookup(name)
	if !ok {
		return KindUnknown
	}
	return KindOf(id)
}

// IsPostQuantum reports whether the named group carries a post-quantum
// component, alone or in a hybrid.
func IsPostQuantum(name string) bool {
	k := KindOfName(name)
	return k == KindPostQuantum || k == KindHybrid
}

// CurvePreferences converts group names into a crypto/tls preference list.
func CurvePreferences(names []string) ([]tls.CurveID, error) {
	if len(names) == 0 {
		return nil, nil
	}
	prefs := make([]tls.CurveID, 0, len(names))
	for _, n := range names {
		id, ok := Lookup(n)
		if !ok {
			return nil, fmt.Errorf("unknown key-exchange group %q", n)
		}
		prefs = append(prefs, tls.CurveID(id))
	}
	return prefs, nil
}

// Info describes one registered group.
type Info struct {
	ID   uint16 `json:"id"`
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// All lists the registry ordered by codepoint.
func All() []Info {
	out := make([]Info, 0, len(registry))
	for id, g := range registry {
		out = append(out, Info{ID: id, Name: g.name, Kind: g.kind.String()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
