// Package ring implements the identifier space the DHT is keyed on: a
// 160-bit SHA-1 space with total order, and the UnionRange bookkeeping a
// node uses to track which id-intervals it currently replicates.
package ring

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net"
	"strconv"

	"github.com/pkg/errors"
)

// IdSize is the width of the identifier space in bytes (SHA-1, 160 bits).
const IdSize = sha1.Size

// Id is a 160-bit ring identifier, totally ordered by unsigned
// big-endian comparison of its bytes.
type Id [IdSize]byte

// Hash returns the SHA-1 digest of input as an Id.
func Hash(input []byte) Id {
	return Id(sha1.Sum(input))
}

// HashIP computes a node's identifier the non-standard way this ring
// requires for interoperability: the decimal digit string of each IPv4
// octet concatenated, followed by the decimal digit string of the port,
// then hashed with SHA-1. This is not the same as hashing the dotted
// ip:port string.
func HashIP(ip net.IP, port int) Id {
	v4 := ip.To4()
	if v4 == nil {
		v4 = ip
	}
	buf := make([]byte, 0, 4*3+5)
	for _, octet := range v4 {
		buf = strconv.AppendInt(buf, int64(octet), 10)
	}
	buf = strconv.AppendInt(buf, int64(port), 10)
	return Hash(buf)
}

// Compare returns -1, 0 or 1 as a is less than, equal to, or greater
// than b, using unsigned byte-wise comparison.
func Compare(a, b Id) int {
	for i := 0; i < IdSize; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

func (a Id) Less(b Id) bool    { return Compare(a, b) < 0 }
func (a Id) Equal(b Id) bool   { return Compare(a, b) == 0 }
func (a Id) LessEq(b Id) bool  { return Compare(a, b) <= 0 }
func (a Id) Greater(b Id) bool { return Compare(a, b) > 0 }

func (a Id) String() string { return hex.EncodeToString(a[:]) }

// MinId and MaxId bound the identifier space.
var (
	MinId = Id{}
	MaxId = func() Id {
		var m Id
		for i := range m {
			m[i] = 0xff
		}
		return m
	}()
)

// InHalfOpen reports whether k lies in the half-open interval (lower,
// upper]. When lower < upper this is the ordinary case; when lower >=
// upper the interval wraps around the ring.
func InHalfOpen(k, lower, upper Id) bool {
	if lower.Less(upper) {
		return lower.Less(k) && k.LessEq(upper)
	}
	return k.Greater(lower) || k.LessEq(upper)
}

// ParseId decodes a hex-encoded identifier, as used on the wire.
func ParseId(s string) (Id, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Id{}, errors.Wrapf(err, "ring: invalid id %q", s)
	}
	if len(b) != IdSize {
		return Id{}, errors.Errorf("ring: id %q has wrong length %d", s, len(b))
	}
	var id Id
	copy(id[:], b)
	return id, nil
}

// NodeInfo identifies a node by its listen address; its id is derived
// from ip and port via HashIP. Immutable once constructed.
type NodeInfo struct {
	IP   net.IP `json:"ip"`
	Port int    `json:"port"`
	Id   Id     `json:"id"`
}

// NewNodeInfo builds a NodeInfo, deriving its id from ip and port.
func NewNodeInfo(ip net.IP, port int) NodeInfo {
	return NodeInfo{IP: ip, Port: port, Id: HashIP(ip, port)}
}

func (n NodeInfo) Equal(o NodeInfo) bool { return n.Id.Equal(o.Id) }

func (n NodeInfo) String() string {
	return fmt.Sprintf("%s:%d(%s)", n.IP, n.Port, n.Id.String()[:8])
}

func (n NodeInfo) Addr() string {
	return net.JoinHostPort(n.IP.String(), strconv.Itoa(n.Port))
}
