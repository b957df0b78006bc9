package types

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	pgerr "github.com/pgsqlite/pgsqlite/pkg/errors"
)

// Inet is the parsed form of an inet/cidr value.
type Inet struct {
	IP net.IP
	Bits int
	IsCIDR bool
}

// ParseInet parses inet/cidr text (e.g. "192.168.1.0/24", "::1") into an
// Inet, validating the address on write as .
func ParseInet(text string, isCIDR bool) (Inet, error) {
	trimmed := strings.TrimSpace(text)
	addrPart := trimmed
	bits := -1
	if idx := strings.IndexByte(trimmed, '/'); idx >= 0 {
		addrPart = trimmed[:idx]
		var err error
		bits, err = strconv.Atoi(trimmed[idx+1:])
		if err != nil {
			return Inet{}, pgerr.InvalidTextRepresentation("inet", text).Err()
		}
	}

	ip := net.ParseIP(addrPart)
	if ip == nil {
		return Inet{}, pgerr.InvalidTextRepresentation("inet", text).Err()
	}

	maxBits := 32
	if ip.To4() == nil {
		maxBits = 128
	}
	if bits < 0 {
		bits = maxBits
	}
	if bits > maxBits {
		return Inet{}, pgerr.InvalidTextRepresentation("inet", text).Err()
	}

	return Inet{IP: ip, Bits: bits, IsCIDR: isCIDR}, nil
}

// String renders the canonical Postgres text form, omitting the /bits
// suffix when it equals the address family's full width (matching how
// inet, as opposed to cidr, prints a /32 or /128 host address).
func (i Inet) String() string {
	maxBits := 32
	if i.IP.To4() == nil {
		maxBits = 128
	}
	if !i.IsCIDR && i.Bits == maxBits {
		return i.IP.String()
	}
	return fmt.Sprintf("%s/%d", i.IP.String(), i.Bits)
}

// family returns the binary-wire family byte: 2 for IPv4, 3 for IPv6.
func (i Inet) family() byte {
	if i.IP.To4() != nil {
		return 2
	}
	return 3
}

// EncodeBinary produces the wire layout: 1 byte family, 1 byte bits,
// 1 byte is_cidr, 1 byte address length, then the address bytes.
func (i Inet) EncodeBinary() []byte {
	addr := i.IP.To4()
	if addr == nil {
		addr = i.IP.To16()
	}
	isCIDR := byte(0)
	if i.IsCIDR {
		isCIDR = 1
	}
	buf := make([]byte, 4+len(addr))
	buf[0] = i.family()
	buf[1] = byte(i.Bits)
	buf[2] = isCIDR
	buf[3] = byte(len(addr))
	copy(buf[4:], addr)
	return buf
}

// DecodeInetBinary parses the wire layout back into an Inet.
func DecodeInetBinary(data []byte) (Inet, error) {
	if len(data) < 4 {
		return Inet{}, pgerr.InvalidTextRepresentation("inet", "<short buffer>").Err()
	}
	family := data[0]
	bits := int(data[1])
	isCIDR := data[2] != 0
	nb := int(data[3])
	if len(data) != 4+nb {
		return Inet{}, pgerr.InvalidTextRepresentation("inet", "<length mismatch>").Err()
	}
	var ip net.IP
	switch family {
	case 2:
		ip = net.IP(data[4 : 4+nb]).To4()
	case 3:
		ip = net.IP(data[4 : 4+nb])
	default:
		return Inet{}, pgerr.InvalidTextRepresentation("inet", "<unknown family>").Err()
	}
	return Inet{IP: ip, Bits: bits, IsCIDR: isCIDR}, nil
}

// ParseMacaddr validates and normalises a 6-byte MAC address.
func ParseMacaddr(text string) (net.HardwareAddr, error) {
	addr, err := net.ParseMAC(strings.TrimSpace(text))
	if err != nil || len(addr) != 6 {
		return nil, pgerr.InvalidTextRepresentation("macaddr", text).Err()
	}
	return addr, nil
}

// ParseMacaddr8 validates and normalises an 8-byte (EUI-64) MAC address.
func ParseMacaddr8(text string) (net.HardwareAddr, error) {
	trimmed := strings.TrimSpace(text)
	addr, err := net.ParseMAC(trimmed)
	if err == nil && len(addr) == 8 {
		return addr, nil
	}
	// Expand a 6-byte MAC to EUI-64 form the way Postgres's macaddr8_in
	// does: insert ff:fe in the middle.
	addr6, err := net.ParseMAC(trimmed)
	if err != nil || len(addr6) != 6 {
		return nil, pgerr.InvalidTextRepresentation("macaddr8", text).Err()
	}
	expanded := make(net.HardwareAddr, 8)
	copy(expanded[0:3], addr6[0:3])
	expanded[3] = 0xff
	expanded[4] = 0xfe
	copy(expanded[5:8], addr6[3:6])
	return expanded, nil
}

// FormatMacaddr renders the canonical colon-separated lowercase hex form.
func FormatMacaddr(addr net.HardwareAddr) string {
	return addr.String()
}
