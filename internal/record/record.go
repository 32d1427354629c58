// Package record implements the on-disk wire format for a single commitlog
// record: encoding, decoding, CRC validation and the properties mini-format.
package record

import "net"

// Magic values identify the kind of entry at a given file position. These
// are the canonical contract: never derive them from an expression.
const (
	MessageMagicCode uint32 = 0xDAA320A7
	BlankMagicCode   uint32 = 0xCBD43194
)

// TransactionType is carried in the transaction bits of SysFlag.
type TransactionType uint8

const (
	TransactionNone TransactionType = iota
	TransactionPrepared
	TransactionCommit
	TransactionRollback
)

// SysFlag bit layout. The transaction phase occupies bits 2-3; the two
// IPv6-address-form bits and the batch bit occupy the bits above that.
const (
	SysFlagCompressed  uint32 = 1 << 0
	SysFlagMultiTags   uint32 = 1 << 1
	sysFlagTxMask      uint32 = 0x3 << 2
	SysFlagBornHostV6  uint32 = 1 << 4
	SysFlagStoreHostV6 uint32 = 1 << 5
	SysFlagBatch       uint32 = 1 << 6
)

// TransactionTypeOf extracts the transaction phase from a SysFlag value.
func TransactionTypeOf(sysFlag uint32) TransactionType {
	return TransactionType((sysFlag & sysFlagTxMask) >> 2)
}

// WithTransactionType returns sysFlag with its transaction bits replaced.
func WithTransactionType(sysFlag uint32, t TransactionType) uint32 {
	return (sysFlag &^ sysFlagTxMask) | (uint32(t) << 2)
}

// HostAddress is a broker or producer network address. It serializes as
// 4 bytes of address + 4 bytes of port for IPv4, or 16 bytes of address + 4
// bytes of port for IPv6 (the corresponding SysFlag V6 bit records which
// form follows). spec.md §3 states bornHost/storeHost are "8 bytes; 16
// bytes if IPv6" without leaving room for the port in the IPv6 case; this
// implementation treats the IPv6 form as 20 bytes total (16 address + 4
// port) since a port-less address can't round-trip a dial target. See
// DESIGN.md.
type HostAddress struct {
	IP   net.IP
	Port uint32
}

// Len reports the encoded length of the address in bytes.
func (h HostAddress) Len() int {
	if h.IsV6() {
		return 20
	}
	return 8
}

// IsV6 reports whether this address encodes as the 16-byte-address form.
func (h HostAddress) IsV6() bool {
	return h.IP.To4() == nil && len(h.IP) != 0
}

// Reserved property keys (spec.md §6).
const (
	PropKeys      = "KEYS"
	PropUniqueKey = "UNIQ_KEY"
	PropTags      = "TAGS"
	PropDelay     = "DELAY"
	PropRealTopic = "REAL_TOPIC"
	PropRealQueue = "REAL_QID"
)

// ScheduleTopic is the reserved topic name used to route a delayed message
// through the schedule service.
const ScheduleTopic = "SCHEDULE_TOPIC"

// Record is the in-memory representation of one persisted entry (fields 1-17
// of spec.md §3). TotalSize, Magic and BodyCRC are computed by the codec;
// QueueOffset and PhysicalOffset are assigned by the Append Engine rather
// than supplied directly by the caller.
type Record struct {
	TotalSize        uint32
	Magic            uint32
	BodyCRC          uint32
	QueueID          uint32
	Flag             uint32
	QueueOffset      uint64
	PhysicalOffset   uint64
	SysFlag          uint32
	BornTimestamp    int64
	BornHost         HostAddress
	StoreTimestamp   int64
	StoreHost        HostAddress
	ReconsumeTimes   uint32
	PreparedTxOffset uint64
	Body             []byte
	Topic            string
	Properties       string // raw k1\x01v1\x02k2\x01v2... encoding
}

// fixedFieldsLen is the byte length of fields 2..14 (everything between
// totalSize and the bodyLen prefix) for the given host address widths.
func fixedFieldsLen(bornHostLen, storeHostLen int) uint32 {
	// magic(4) + bodyCRC(4) + queueId(4) + flag(4) + queueOffset(8) +
	// physicalOffset(8) + sysFlag(4) + bornTimestamp(8) + bornHost +
	// storeTimestamp(8) + storeHost + reconsumeTimes(4) + preparedTxOffset(8)
	return 4 + 4 + 4 + 4 + 8 + 8 + 4 + 8 + uint32(bornHostLen) + 8 + uint32(storeHostLen) + 4 + 8
}

// CalcMsgLength computes totalSize from the variable-width fields plus the
// fixed layout, exactly as the real calMsgLength helper does.
func CalcMsgLength(bodyLen, topicLen, propsLen int, bornHostLen, storeHostLen int) uint32 {
	const totalSizeField = 4
	return totalSizeField +
		fixedFieldsLen(bornHostLen, storeHostLen) +
		4 + uint32(bodyLen) +
		1 + uint32(topicLen) +
		2 + uint32(propsLen)
}

// Size returns the encoded length of r, honoring its current host-address
// widths.
func (r *Record) Size() uint32 {
	return CalcMsgLength(len(r.Body), len(r.Topic), len(r.Properties), r.BornHost.Len(), r.StoreHost.Len())
}

// Limits on variable-width fields, enforced by the encoder.
const (
	MaxTopicLen = 255
	MaxPropsLen = 32767
)
