package wiretrace

import (
	"bytes"
	"crypto/tls"
	"encoding/binary"
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// session is what both directions of one connection share.
type session struct {
	tls13 bool // ServerHello selected TLS 1.3
}

// direction reassembles TLS records flowing one way and renders each
// complete one.
type direction struct {
	label     string
	sess      *session
	buf       []byte
	hs        []byte // partial handshake message carried across records
	encrypted bool   // ChangeCipherSpec seen, later handshake records are opaque
	done      bool
}

func (d *direction) reset() {
	d.buf = nil
	d.hs = nil
	d.encrypted = false
	d.done = false
}

// feed consumes newly observed bytes and returns one rendered block per
// record completed by them.
func (d *direction) feed(p []byte) [][]byte {
	d.buf = append(d.buf, p...)

	var out [][]byte
	for !d.done && len(d.buf) >= 5 {
		n := int(binary.BigEndian.Uint16(d.buf[3:5]))
		if n > maxRecordLen {
			out = append(out, d.stop("record length %d exceeds limit", n))
			break
		}
		if len(d.buf) < 5+n {
			break
		}
		rec := d.buf[:5+n]
		out = append(out, d.render(rec))
		d.buf = d.buf[5+n:]
	}
	if d.done {
		d.buf = nil
		d.hs = nil
	} else if len(d.buf) == 0 {
		d.buf = nil
	}
	return out
}

func (d *direction) stop(format string, a ...any) []byte {
	d.done = true
	return []byte(fmt.Sprintf("%s TLS data\n  <tracing stopped: %s>\n\n", d.label, fmt.Sprintf(format, a...)))
}

func (d *direction) render(rec []byte) []byte {
	var tl layers.TLS
	if err := tl.DecodeFromBytes(rec, gopacket.NilDecodeFeedback); err != nil {
		return d.stop("%v", err)
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "%s TLS Record\n", d.label)

	switch {
	case len(tl.Handshake) > 0:
		h := tl.Handshake[0].TLSRecordHeader
		writeHeader(&b, h)
		if d.encrypted {
			b.WriteString("  <encrypted handshake message>\n")
			break
		}
		d.handshake(&b, rec[5:])

	case len(tl.ChangeCipherSpec) > 0:
		writeHeader(&b, tl.ChangeCipherSpec[0].TLSRecordHeader)
		b.WriteString("    change_cipher_spec (1)\n")
		// TLS 1.3 sends it for middlebox compatibility only
		if !d.sess.tls13 {
			d.encrypted = true
		}

	case len(tl.Alert) > 0:
		a := tl.Alert[0]
		writeHeader(&b, a.TLSRecordHeader)
		if a.EncryptedMsg != nil {
			b.WriteString("  <encrypted alert>\n")
			break
		}
		fmt.Fprintf(&b, "    Level=%s(%d), description=%s(%d)\n",
			a.Level, uint8(a.Level), a.Description, uint8(a.Description))

	case len(tl.AppData) > 0:
		writeHeader(&b, tl.AppData[0].TLSRecordHeader)
		b.WriteString("  <encrypted application data, tracing stopped>\n")
		d.done = true

	default:
		return d.stop("empty record")
	}

	b.WriteByte('\n')
	return b.Bytes()
}

func writeHeader(b *bytes.Buffer, h layers.TLSRecordHeader) {
	b.WriteString("Header:\n")
	fmt.Fprintf(b, "  Version = %s (0x%x)\n", h.Version, uint16(h.Version))
	fmt.Fprintf(b, "  Content Type = %s (%d)\n", h.ContentType, uint8(h.ContentType))
	fmt.Fprintf(b, "  Length = %d\n", h.Length)
}

// handshake renders every complete handshake message in payload, keeping a
// trailing fragment for the next record.
func (d *direction) handshake(b *bytes.Buffer, payload []byte) {
	d.hs = append(d.hs, payload...)
	if len(d.hs) > maxHandshakeBuf {
		d.hs = nil
		b.WriteString("  <handshake message too large>\n")
		return
	}

	for len(d.hs) >= 4 {
		typ := d.hs[0]
		n := int(d.hs[1])<<16 | int(d.hs[2])<<8 | int(d.hs[3])
		if len(d.hs) < 4+n {
			fmt.Fprintf(b, "    <fragment of %s, %d of %d bytes>\n", handshakeName(typ), len(d.hs)-4, n)
			return
		}
		if vers := writeMessage(b, typ, d.hs[4:4+n]); vers == tls.VersionTLS13 {
			d.sess.tls13 = true
		}
		d.hs = d.hs[4+n:]
	}
	if len(d.hs) == 0 {
		d.hs = nil
	}
}
