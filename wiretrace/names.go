package wiretrace

import "fmt"

var handshakeNames = map[uint8]string{
	0:  "HelloRequest",
	1:  "ClientHello",
	2:  "ServerHello",
	4:  "NewSessionTicket",
	5:  "EndOfEarlyData",
	8:  "EncryptedExtensions",
	11: "Certificate",
	12: "ServerKeyExchange",
	13: "CertificateRequest",
	14: "ServerHelloDone",
	15: "CertificateVerify",
	16: "ClientKeyExchange",
	20: "Finished",
	22: "CertificateStatus",
	24: "KeyUpdate",
	25: "CompressedCertificate",
}

func handshakeName(t uint8) string {
	if n, ok := handshakeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("UnknownHandshake(%d)", t)
}

var extensionNames = map[uint16]string{
	0:      "server_name",
	1:      "max_fragment_length",
	5:      "status_request",
	10:     "supported_groups",
	11:     "ec_point_formats",
	13:     "signature_algorithms",
	16:     "application_layer_protocol_negotiation",
	18:     "signed_certificate_timestamp",
	21:     "padding",
	22:     "encrypt_then_mac",
	23:     "extended_master_secret",
	27:     "compress_certificate",
	35:     "session_ticket",
	41:     "psk",
	42:     "early_data",
	43:     "supported_versions",
	44:     "cookie",
	45:     "psk_key_exchange_modes",
	50:     "signature_algorithms_cert",
	51:     "key_share",
	17513:  "application_settings",
	0xfe0d: "encrypted_client_hello",
	0xff01: "renegotiate",
}

func extensionName(t uint16) string {
	if n, ok := extensionNames[t]; ok {
		return n
	}
	return "unknown"
}

func versionName(v uint16) string {
	switch v {
	case 0x0300:
		return "SSL 3.0"
	case 0x0301:
		return "TLS 1.0"
	case 0x0302:
		return "TLS 1.1"
	case 0x0303:
		return "TLS 1.2"
	case 0x0304:
		return "TLS 1.3"
	}
	if v&0x0f0f == 0x0a0a {
		return "GREASE"
	}
	return "unknown"
}
