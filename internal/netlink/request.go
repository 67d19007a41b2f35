package netlink

import (
	"encoding/binary"
)

const (
	nlmsgAlignTo = 4
	rtaAlignTo   = 4
)

func align(n, to int) int {
	return (n + to - 1) &^ (to - 1)
}

// nlMsghdrLen is sizeof(struct nlmsghdr): len, type, flags, seq, pid, all
// uint32 except type/flags which are uint16.
const nlMsghdrLen = 16

// Request builds one netlink message: a fixed nlmsghdr, a caller-supplied
// family-specific fixed body (e.g. ifinfomsg), and a stream of rtattr
// entries that may nest.
type Request struct {
	msgType uint16
	flags   uint16
	buf     []byte // header placeholder + body + attrs
	stack   []int  // byte offsets of rta_len fields for open nested attrs
}

// NewRequest starts a request of the given message type (e.g.
// RTM_NEWLINK) and flags (e.g. NLM_F_REQUEST|NLM_F_CREATE|NLM_F_ACK).
// body is the fixed-size family header (ifinfomsg, ifaddrmsg, ...)
// appended immediately after the nlmsghdr.
func NewRequest(msgType, flags uint16, body []byte) *Request {
	r := &Request{msgType: msgType, flags: flags}
	r.buf = make([]byte, nlMsghdrLen)
	r.buf = append(r.buf, body...)
	return r
}

// Attr appends a leaf attribute.
func (r *Request) Attr(attrType uint16, data []byte) {
	hdr := make([]byte, 4)
	binary.NativeEndian.PutUint16(hdr[0:2], uint16(4+len(data)))
	binary.NativeEndian.PutUint16(hdr[2:4], attrType)
	r.buf = append(r.buf, hdr...)
	r.buf = append(r.buf, data...)
	pad := align(len(data), rtaAlignTo) - len(data)
	r.buf = append(r.buf, make([]byte, pad)...)
}

// AttrUint32 appends a leaf attribute carrying a native-endian uint32.
func (r *Request) AttrUint32(attrType uint16, v uint32) {
	b := make([]byte, 4)
	binary.NativeEndian.PutUint32(b, v)
	r.Attr(attrType, b)
}

// AttrString appends a leaf attribute carrying a NUL-terminated string.
func (r *Request) AttrString(attrType uint16, s string) {
	r.Attr(attrType, append([]byte(s), 0))
}

// Raw appends data verbatim, with no rtattr header — used for payloads
// like VETH_INFO_PEER whose nested content is a raw ifinfomsg followed
// by ordinary attributes, rather than an attribute itself.
func (r *Request) Raw(data []byte) {
	r.buf = append(r.buf, data...)
}

// OpenNested starts a nested attribute (e.g. IFLA_LINKINFO) whose length
// is back-patched when CloseNested is called.
func (r *Request) OpenNested(attrType uint16) {
	offset := len(r.buf)
	hdr := make([]byte, 4)
	binary.NativeEndian.PutUint16(hdr[2:4], attrType)
	r.buf = append(r.buf, hdr...)
	r.stack = append(r.stack, offset)
}

// CloseNested rewrites the most recently opened nested attribute's
// rta_len to span everything appended since OpenNested, including any
// alignment padding.
func (r *Request) CloseNested() {
	n := len(r.stack)
	if n == 0 {
		panic("netlink: CloseNested without matching OpenNested")
	}
	offset := r.stack[n-1]
	r.stack = r.stack[:n-1]

	length := len(r.buf) - offset
	binary.NativeEndian.PutUint16(r.buf[offset:offset+2], uint16(length))

	pad := align(length, rtaAlignTo) - length
	if pad > 0 {
		r.buf = append(r.buf, make([]byte, pad)...)
	}
}

func (r *Request) setSeqPid(seq, pid uint32) {
	binary.NativeEndian.PutUint32(r.buf[0:4], uint32(len(r.buf)))
	binary.NativeEndian.PutUint16(r.buf[4:6], r.msgType)
	binary.NativeEndian.PutUint16(r.buf[6:8], r.flags)
	binary.NativeEndian.PutUint32(r.buf[8:12], seq)
	binary.NativeEndian.PutUint32(r.buf[12:16], pid)
}

// Bytes returns the fully-assembled message. Valid only after
// setSeqPid has run (i.e. after a call through Conn.Execute).
func (r *Request) Bytes() []byte {
	return r.buf
}
