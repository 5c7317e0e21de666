package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/daniellavrushin/pqc-tracer/probe"
	"github.com/daniellavrushin/pqc-tracer/tlstrace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintResult(t *testing.T) {
	tests := []struct {
		name string
		res  *probe.Result
		want string
	}{
		{
			name: "hybrid",
			res: &probe.Result{
				State:    probe.StateResolved,
				TLS:      tlstrace.TlsTrace{Group: "X25519MLKEM768", CipherSuite: "TLS_AES_128_GCM_SHA256"},
				Response: probe.Response{Status: 200, Body: "<!doctype html><html>"},
			},
			want: "Negotiated Group: X25519MLKEM768\n" +
				"Cipher Suite: TLS_AES_128_GCM_SHA256\n" +
				"HTTP Status: 200\n" +
				"Response Preview: <!doctype \n" +
				"Post-Quantum: yes (hybrid)\n",
		},
		{
			name: "classical",
			res: &probe.Result{
				State:    probe.StateResolved,
				TLS:      tlstrace.TlsTrace{Group: "X25519", CipherSuite: "TLS_AES_256_GCM_SHA384"},
				Response: probe.Response{Status: 301, Body: "moved"},
			},
			want: "Negotiated Group: X25519\n" +
				"Cipher Suite: TLS_AES_256_GCM_SHA384\n" +
				"HTTP Status: 301\n" +
				"Response Preview: moved\n" +
				"Post-Quantum: no\n",
		},
		{
			name: "no group source",
			res: &probe.Result{
				State:    probe.StateResolved,
				TLS:      tlstrace.TlsTrace{Group: tlstrace.GroupUnknown, CipherSuite: tlstrace.CipherUnknown},
				Response: probe.Response{Status: 204},
			},
			want: "Negotiated Group: Unknown (no ephemeral key info)\n" +
				"Cipher Suite: Unknown\n" +
				"HTTP Status: 204\n" +
				"Response Preview: \n" +
				"Post-Quantum: unknown\n",
		},
		{
			name: "transport failure",
			res: &probe.Result{
				State:    probe.StateErrored,
				TLS:      tlstrace.Errored,
				Response: probe.Response{Body: "dial tcp 127.0.0.1:1: connect: connection refused"},
			},
			want: "Error: dial tcp 127.0.0.1:1: connect: connection refused\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printResult(&buf, tt.res, 10)
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	results := []*probe.Result{{
		URL:   "https://a.example/",
		State: probe.StateResolved,
		TLS:   tlstrace.TlsTrace{Group: "X25519", CipherSuite: "TLS_AES_128_GCM_SHA256"},
	}}
	require.NoError(t, printJSON(&buf, results))

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "resolved", decoded[0]["state"])
	assert.Equal(t, "https://a.example/", decoded[0]["url"])
}
