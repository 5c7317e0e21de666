package tlstrace

// parseGroup is swapped in tests to observe whether the trace was parsed.
var parseGroup = ParseGroup

// Source tells where a resolved group came from.
type Source string

const (
	SourceAPI   Source = "api"
	SourceTrace Source = "trace"
	SourceNone  Source = "none"
)

// ResolveGroup picks the negotiated group. A non-empty structured value wins
// outright and the trace is not parsed; otherwise the trace is parsed; if
// that finds nothing the result is GroupUnknown.
func ResolveGroup(apiReported string, trace TraceText) string {
	group, _ := resolveGroup(apiReported, trace)
	return group
}

func resolveGroup(apiReported string, trace TraceText) (string, Source) {
	if apiReported != "" {
		return apiReported, SourceAPI
	}
	if group, ok := parseGroup(string(trace)); ok {
		return group, SourceTrace
	}
	return GroupUnknown, SourceNone
}

// ResolveCipher prefers the standard name, then the stack's own name.
func ResolveCipher(info *CipherInfo) string {
	if info == nil {
		return CipherUnknown
	}
	if info.StandardName != "" {
		return info.StandardName
	}
	if info.Name != "" {
		return info.Name
	}
	return CipherUnknown
}

// Resolve builds the final trace for a completed handshake and reports which
// source supplied the group.
func Resolve(keyInfo *EphemeralKeyInfo, cipher *CipherInfo, trace TraceText) (TlsTrace, Source) {
	var api string
	if keyInfo != nil {
		api = keyInfo.Name
	}
	group, src := resolveGroup(api, trace)
	return TlsTrace{Group: group, CipherSuite: ResolveCipher(cipher)}, src
}
