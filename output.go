package main

import (
	"fmt"
	"io"

	"github.com/daniellavrushin/pqc-tracer/groups"
	"github.com/daniellavrushin/pqc-tracer/probe"
)

// printResult writes the human-readable report for one exchange.
func printResult(w io.Writer, res *probe.Result, previewChars int) {
	if res.Failed() {
		fmt.Fprintf(w, "Error: %s\n", res.Response.Body)
		return
	}

	fmt.Fprintf(w, "Negotiated Group: %s\n", res.TLS.Group)
	fmt.Fprintf(w, "Cipher Suite: %s\n", res.TLS.CipherSuite)
	fmt.Fprintf(w, "HTTP Status: %d\n", res.Response.Status)
	fmt.Fprintf(w, "Response Preview: %s\n", res.Preview(previewChars))
	fmt.Fprintf(w, "Post-Quantum: %s\n", postQuantumLabel(res.TLS.Group))
}

func postQuantumLabel(group string) string {
	switch kind := groups.KindOfName(group); kind {
	case groups.KindHybrid, groups.KindPostQuantum:
		return "yes (" + kind.String() + ")"
	case groups.KindClassical:
		return "no"
	default:
		return "unknown"
	}
}
