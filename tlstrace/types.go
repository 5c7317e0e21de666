// Package tlstrace turns a captured handshake trace plus whatever the TLS
// stack reports directly into a single negotiated group and cipher suite.
package tlstrace

import "github.com/daniellavrushin/pqc-tracer/stderrcap"

const (
	// GroupUnknown is reported when neither the TLS stack nor the trace
	// named a key-exchange group.
	GroupUnknown = "Unknown (no ephemeral key info)"
	// CipherUnknown is reported when the TLS stack gave no cipher info.
	CipherUnknown = "Unknown"
	// ErrorValue fills both fields of a failed exchange.
	ErrorValue = "Error"
)

// TlsTrace is the outcome of one traced exchange. Group is never empty.
type TlsTrace struct {
	Group       string `json:"group"`
	CipherSuite string `json:"cipher_suite"`
}

// Errored is the trace reported for an exchange that failed in transport.
var Errored = TlsTrace{Group: ErrorValue, CipherSuite: ErrorValue}

// EphemeralKeyInfo is the key-exchange info a TLS stack may expose after
// the handshake. Name is empty when the stack does not know the group.
type EphemeralKeyInfo struct {
	Name string
}

// CipherInfo describes the negotiated cipher suite. StandardName is the IANA
// name when known; Name is the stack's own label.
type CipherInfo struct {
	StandardName string
	Name         string
}

// TraceText is captured trace output, consumed once by the parser.
type TraceText = stderrcap.TraceText
