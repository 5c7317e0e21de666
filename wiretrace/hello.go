package wiretrace

import (
	"bytes"
	"crypto/tls"
	"encoding/hex"
	"fmt"

	"github.com/daniellavrushin/pqc-tracer/groups"
	"golang.org/x/crypto/cryptobyte"
)

const (
	typeClientHello       = 1
	typeServerHello       = 2
	typeServerKeyExchange = 12
)

const (
	extServerName          = 0
	extSupportedGroups     = 10
	extALPN                = 16
	extSupportedVersions   = 43
	extKeyShare            = 51
	curveTypeNamedCurve    = 3
	maxKeyExchangePreview  = 16
	indentMessage          = "    "
	indentMessageField     = "      "
	indentExtensionContent = "          "
)

// helloRetryRequestRandom is the fixed ServerHello.random that marks a
// HelloRetryRequest (RFC 8446, 4.1.3).
var helloRetryRequestRandom = []byte{
	0xcf, 0x21, 0xad, 0x74, 0xe5, 0x9a, 0x61, 0x11,
	0xbe, 0x1d, 0x8c, 0x02, 0x1e, 0x65, 0xb8, 0x91,
	0xc2, 0xa2, 0x11, 0x16, 0x7a, 0xbb, 0x8c, 0x5e,
	0x07, 0x9e, 0x09, 0xe2, 0xc8, 0xa8, 0x33, 0x9c,
}

// writeMessage renders one handshake message. For a ServerHello it returns
// the selected protocol version, otherwise 0.
func writeMessage(b *bytes.Buffer, typ uint8, body []byte) uint16 {
	switch typ {
	case typeClientHello:
		fmt.Fprintf(b, "%sClientHello, Length=%d\n", indentMessage, len(body))
		if !writeClientHello(b, body) {
			b.WriteString(indentMessageField + "<malformed ClientHello>\n")
		}
	case typeServerHello:
		hrr := len(body) >= 34 && bytes.Equal(body[2:34], helloRetryRequestRandom)
		name := "ServerHello"
		if hrr {
			name = "HelloRetryRequest"
		}
		fmt.Fprintf(b, "%s%s, Length=%d\n", indentMessage, name, len(body))
		vers, ok := writeServerHello(b, body, hrr)
		if !ok {
			b.WriteString(indentMessageField + "<malformed " + name + ">\n")
		}
		return vers
	case typeServerKeyExchange:
		fmt.Fprintf(b, "%sServerKeyExchange, Length=%d\n", indentMessage, len(body))
		writeServerKeyExchange(b, body)
	default:
		fmt.Fprintf(b, "%s%s, Length=%d\n", indentMessage, handshakeName(typ), len(body))
	}
	return 0
}

func writeClientHello(b *bytes.Buffer, body []byte) bool {
	s := cryptobyte.String(body)

	var (
		vers                       uint16
		random                     []byte
		sessionID, suites, methods cryptobyte.String
	)
	if !s.ReadUint16(&vers) || !s.ReadBytes(&random, 32) ||
		!s.ReadUint8LengthPrefixed(&sessionID) ||
		!s.ReadUint16LengthPrefixed(&suites) ||
		!s.ReadUint8LengthPrefixed(&methods) {
		return false
	}

	fmt.Fprintf(b, "%sclient_version=0x%x (%s)\n", indentMessageField, vers, versionName(vers))
	fmt.Fprintf(b, "%sRandom:\n%s  random_bytes (len=32): %s\n", indentMessageField, indentMessageField, hex.EncodeToString(random))
	fmt.Fprintf(b, "%ssession_id (len=%d): %s\n", indentMessageField, len(sessionID), hex.EncodeToString(sessionID))

	fmt.Fprintf(b, "%scipher_suites (len=%d)\n", indentMessageField, len(suites))
	for !suites.Empty() {
		var id uint16
		if !suites.ReadUint16(&id) {
			return false
		}
		fmt.Fprintf(b, "%s  {0x%02X, 0x%02X} %s\n", indentMessageField, id>>8, id&0xff, tls.CipherSuiteName(id))
	}
	fmt.Fprintf(b, "%scompression_methods (len=%d)\n", indentMessageField, len(methods))
	for _, m := range methods {
		if m == 0 {
			fmt.Fprintf(b, "%s  No Compression (0x00)\n", indentMessageField)
		} else {
			fmt.Fprintf(b, "%s  Unknown (0x%02x)\n", indentMessageField, m)
		}
	}

	if s.Empty() {
		return true
	}
	var exts cryptobyte.String
	if !s.ReadUint16LengthPrefixed(&exts) {
		return false
	}
	fmt.Fprintf(b, "%sextensions, length = %d\n", indentMessageField, len(exts))
	return writeExtensions(b, exts, typeClientHello, false, nil)
}

func writeServerHello(b *bytes.Buffer, body []byte, hrr bool) (uint16, bool) {
	s := cryptobyte.String(body)

	var (
		vers, suite uint16
		random      []byte
		sessionID   cryptobyte.String
		method      uint8
	)
	if !s.ReadUint16(&vers) || !s.ReadBytes(&random, 32) ||
		!s.ReadUint8LengthPrefixed(&sessionID) ||
		!s.ReadUint16(&suite) || !s.ReadUint8(&method) {
		return 0, false
	}

	fmt.Fprintf(b, "%sserver_version=0x%x (%s)\n", indentMessageField, vers, versionName(vers))
	fmt.Fprintf(b, "%sRandom:\n%s  random_bytes (len=32): %s\n", indentMessageField, indentMessageField, hex.EncodeToString(random))
	fmt.Fprintf(b, "%ssession_id (len=%d): %s\n", indentMessageField, len(sessionID), hex.EncodeToString(sessionID))
	fmt.Fprintf(b, "%scipher_suite {0x%02X, 0x%02X} %s\n", indentMessageField, suite>>8, suite&0xff, tls.CipherSuiteName(suite))
	if method == 0 {
		fmt.Fprintf(b, "%scompression_method: No Compression (0x00)\n", indentMessageField)
	} else {
		fmt.Fprintf(b, "%scompression_method: Unknown (0x%02x)\n", indentMessageField, method)
	}

	if s.Empty() {
		return vers, true
	}
	var exts cryptobyte.String
	if !s.ReadUint16LengthPrefixed(&exts) {
		return vers, false
	}
	fmt.Fprintf(b, "%sextensions, length = %d\n", indentMessageField, len(exts))
	ok := writeExtensions(b, exts, typeServerHello, hrr, &vers)
	return vers, ok
}

// writeExtensions renders an extension block. For a ServerHello the
// supported_versions extension overrides *selected.
func writeExtensions(b *bytes.Buffer, exts cryptobyte.String, msg uint8, hrr bool, selected *uint16) bool {
	for !exts.Empty() {
		var (
			typ  uint16
			data cryptobyte.String
		)
		if !exts.ReadUint16(&typ) || !exts.ReadUint16LengthPrefixed(&data) {
			return false
		}
		fmt.Fprintf(b, "%s  extension_type=%s(%d), length=%d\n", indentMessageField, extensionName(typ), typ, len(data))

		var ok bool
		switch typ {
		case extServerName:
			ok = writeServerName(b, data)
		case extSupportedGroups:
			ok = writeSupportedGroups(b, data)
		case extALPN:
			ok = writeALPN(b, data)
		case extSupportedVersions:
			ok = writeSupportedVersions(b, data, msg, selected)
		case extKeyShare:
			ok = writeKeyShare(b, data, msg, hrr)
		default:
			ok = true
		}
		if !ok {
			fmt.Fprintf(b, "%s<malformed extension>\n", indentExtensionContent)
		}
	}
	return true
}

func writeServerName(b *bytes.Buffer, data cryptobyte.String) bool {
	var list cryptobyte.String
	if !data.ReadUint16LengthPrefixed(&list) {
		return false
	}
	for !list.Empty() {
		var (
			nameType uint8
			name     cryptobyte.String
		)
		if !list.ReadUint8(&nameType) || !list.ReadUint16LengthPrefixed(&name) {
			return false
		}
		if nameType == 0 {
			fmt.Fprintf(b, "%shost_name: %s\n", indentExtensionContent, string(name))
		}
	}
	return true
}

func writeSupportedGroups(b *bytes.Buffer, data cryptobyte.String) bool {
	var list cryptobyte.String
	if !data.ReadUint16LengthPrefixed(&list) {
		return false
	}
	for !list.Empty() {
		var id uint16
		if !list.ReadUint16(&id) {
			return false
		}
		fmt.Fprintf(b, "%s%s (%d)\n", indentExtensionContent, groups.Name(id), id)
	}
	return true
}

func writeALPN(b *bytes.Buffer, data cryptobyte.String) bool {
	var list cryptobyte.String
	if !data.ReadUint16LengthPrefixed(&list) {
		return false
	}
	for !list.Empty() {
		var proto cryptobyte.String
		if !list.ReadUint8LengthPrefixed(&proto) {
			return false
		}
		fmt.Fprintf(b, "%s%s\n", indentExtensionContent, string(proto))
	}
	return true
}

func writeSupportedVersions(b *bytes.Buffer, data cryptobyte.String, msg uint8, selected *uint16) bool {
	if msg == typeServerHello {
		var v uint16
		if !data.ReadUint16(&v) {
			return false
		}
		fmt.Fprintf(b, "%s%s (%d)\n", indentExtensionContent, versionName(v), v)
		if selected != nil {
			*selected = v
		}
		return true
	}

	var list cryptobyte.String
	if !data.ReadUint8LengthPrefixed(&list) {
		return false
	}
	for !list.Empty() {
		var v uint16
		if !list.ReadUint16(&v) {
			return false
		}
		fmt.Fprintf(b, "%s%s (%d)\n", indentExtensionContent, versionName(v), v)
	}
	return true
}

// writeKeyShare prints one "NamedGroup: NAME (id)" line per share. A
// HelloRetryRequest carries only the selected group.
func writeKeyShare(b *bytes.Buffer, data cryptobyte.String, msg uint8, hrr bool) bool {
	if msg == typeServerHello {
		var id uint16
		if !data.ReadUint16(&id) {
			return false
		}
		fmt.Fprintf(b, "%sNamedGroup: %s (%d)\n", indentExtensionContent, groups.Name(id), id)
		if hrr {
			return true
		}
		var kx cryptobyte.String
		if !data.ReadUint16LengthPrefixed(&kx) {
			return false
		}
		writeKeyExchange(b, kx)
		return true
	}

	var shares cryptobyte.String
	if !data.ReadUint16LengthPrefixed(&shares) {
		return false
	}
	fmt.Fprintf(b, "%skey_share_list (len=%d)\n", indentExtensionContent, len(shares))
	for !shares.Empty() {
		var (
			id uint16
			kx cryptobyte.String
		)
		if !shares.ReadUint16(&id) || !shares.ReadUint16LengthPrefixed(&kx) {
			return false
		}
		fmt.Fprintf(b, "%sNamedGroup: %s (%d)\n", indentExtensionContent, groups.Name(id), id)
		writeKeyExchange(b, kx)
	}
	return true
}

func writeKeyExchange(b *bytes.Buffer, kx []byte) {
	preview := kx
	suffix := ""
	if len(preview) > maxKeyExchangePreview {
		preview = preview[:maxKeyExchangePreview]
		suffix = "..."
	}
	fmt.Fprintf(b, "%skey_exchange:  (len=%d): %s%s\n", indentExtensionContent, len(kx), hex.EncodeToString(preview), suffix)
}

// writeServerKeyExchange handles the ECDHE form only; TLS 1.2 names the
// curve there rather than in a key_share.
func writeServerKeyExchange(b *bytes.Buffer, body []byte) {
	s := cryptobyte.String(body)
	var (
		curveType uint8
		id        uint16
	)
	if !s.ReadUint8(&curveType) || curveType != curveTypeNamedCurve || !s.ReadUint16(&id) {
		return
	}
	fmt.Fprintf(b, "%sKeyExchangeAlgorithm=ECDHE\n", indentMessageField)
	fmt.Fprintf(b, "%s  named_curve: %s (%d)\n", indentMessageField, groups.Name(id), id)
}
