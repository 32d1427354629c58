package record

import (
	"hash/crc32"
	"net"
	"strings"

	"github.com/cespare/xxhash/v2"

	"commitlog/pkg"
)

const (
	nameValueSep = "\x01"
	propertySep  = "\x02"
)

// DecodeOutcome classifies the result of a Decode call, mirroring the
// success/end-of-segment/corrupt trichotomy spec.md §4.1 requires.
type DecodeOutcome int

const (
	Success DecodeOutcome = iota
	EndOfSegment
	Corrupt
)

func (o DecodeOutcome) String() string {
	switch o {
	case Success:
		return "success"
	case EndOfSegment:
		return "end-of-segment"
	case Corrupt:
		return "corrupt"
	default:
		return "unknown"
	}
}

// TagsCodeResolver lets callers override tagsCode computation for delayed
// messages parked under ScheduleTopic, without internal/record depending on
// internal/schedule directly.
type TagsCodeResolver interface {
	// ResolveTagsCode computes the tagsCode for a message whose topic is
	// ScheduleTopic, using its delay level (carried in QueueID as
	// delayLevel-1) and store timestamp instead of its TAGS property.
	ResolveTagsCode(queueID uint32, storeTimestamp int64) int64
}

// EncodeProperties serializes a property map into the record's wire
// properties string. Pairs are written in map iteration order, so the key
// order of the output is not fixed.
func EncodeProperties(props map[string]string) string {
	if len(props) == 0 {
		return ""
	}
	var b strings.Builder
	first := true
	for k, v := range props {
		if !first {
			b.WriteString(propertySep)
		}
		first = false
		b.WriteString(k)
		b.WriteString(nameValueSep)
		b.WriteString(v)
	}
	return b.String()
}

// ParseProperties splits a record's raw properties string back into a map.
func ParseProperties(raw string) map[string]string {
	if raw == "" {
		return map[string]string{}
	}
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, propertySep) {
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, nameValueSep, 2)
		if len(kv) != 2 {
			continue
		}
		out[kv[0]] = kv[1]
	}
	return out
}

// ComputeTagsCode returns the 64-bit hash of the TAGS property, or 0 if no
// TAGS property is present. When topic is ScheduleTopic, resolver (if
// non-nil) is consulted instead, since a delayed message's tagsCode is
// derived from its delay level and deliver time rather than from TAGS.
func ComputeTagsCode(topic string, queueID uint32, storeTimestamp int64, tags string, resolver TagsCodeResolver) int64 {
	if topic == ScheduleTopic && resolver != nil {
		return resolver.ResolveTagsCode(queueID, storeTimestamp)
	}
	if tags == "" {
		return 0
	}
	return int64(xxhash.Sum64String(tags))
}

func putHostAddress(dest []byte, h HostAddress) int {
	if h.IsV6() {
		copy(dest[0:16], h.IP.To16())
		pkg.Encod.PutUint32(dest[16:20], h.Port)
		return 20
	}
	var buf [4]byte
	if ip4 := h.IP.To4(); ip4 != nil {
		copy(buf[:], ip4)
	}
	copy(dest[0:4], buf[:])
	pkg.Encod.PutUint32(dest[4:8], h.Port)
	return 8
}

func getHostAddress(src []byte, v6 bool) (HostAddress, int) {
	if v6 {
		ip := make(net.IP, 16)
		copy(ip, src[0:16])
		port := pkg.Encod.Uint32(src[16:20])
		return HostAddress{IP: ip, Port: port}, 20
	}
	ip := make(net.IP, 4)
	copy(ip, src[0:4])
	port := pkg.Encod.Uint32(src[4:8])
	return HostAddress{IP: ip, Port: port}, 8
}

// Encode marshals r into dest, returning the number of bytes written.
// Callers must size dest using r.Size() first (the teacher's MarshalTo
// idiom — a too-small destination fails loudly instead of silently
// truncating).
func Encode(r *Record, dest []byte) (int, error) {
	if len(r.Topic) > MaxTopicLen {
		return 0, ErrTopicTooLong
	}
	if len(r.Properties) > MaxPropsLen {
		return 0, ErrPropertiesTooLong
	}

	r.Magic = MessageMagicCode
	if r.BornHost.IsV6() {
		r.SysFlag |= SysFlagBornHostV6
	} else {
		r.SysFlag &^= SysFlagBornHostV6
	}
	if r.StoreHost.IsV6() {
		r.SysFlag |= SysFlagStoreHostV6
	} else {
		r.SysFlag &^= SysFlagStoreHostV6
	}

	total := r.Size()
	if len(dest) < int(total) {
		return 0, ErrInsufficientBuffer
	}
	r.TotalSize = total

	off := 0
	pkg.Encod.PutUint32(dest[off:], r.TotalSize)
	off += 4
	pkg.Encod.PutUint32(dest[off:], r.Magic)
	off += 4
	crcOff := off
	pkg.Encod.PutUint32(dest[off:], 0) // bodyCRC placeholder
	off += 4
	pkg.Encod.PutUint32(dest[off:], r.QueueID)
	off += 4
	pkg.Encod.PutUint32(dest[off:], r.Flag)
	off += 4
	pkg.Encod.PutUint64(dest[off:], r.QueueOffset)
	off += 8
	pkg.Encod.PutUint64(dest[off:], r.PhysicalOffset)
	off += 8
	pkg.Encod.PutUint32(dest[off:], r.SysFlag)
	off += 4
	pkg.Encod.PutUint64(dest[off:], uint64(r.BornTimestamp))
	off += 8
	off += putHostAddress(dest[off:], r.BornHost)
	pkg.Encod.PutUint64(dest[off:], uint64(r.StoreTimestamp))
	off += 8
	off += putHostAddress(dest[off:], r.StoreHost)
	pkg.Encod.PutUint32(dest[off:], r.ReconsumeTimes)
	off += 4
	pkg.Encod.PutUint64(dest[off:], r.PreparedTxOffset)
	off += 8

	pkg.Encod.PutUint32(dest[off:], uint32(len(r.Body)))
	off += 4
	copy(dest[off:], r.Body)
	off += len(r.Body)

	dest[off] = byte(len(r.Topic))
	off++
	copy(dest[off:], r.Topic)
	off += len(r.Topic)

	pkg.Encod.PutUint16(dest[off:], uint16(len(r.Properties)))
	off += 2
	copy(dest[off:], r.Properties)
	off += len(r.Properties)

	bodyCRC := crc32.ChecksumIEEE(r.Body)
	r.BodyCRC = bodyCRC
	pkg.Encod.PutUint32(dest[crcOff:crcOff+4], bodyCRC)

	return off, nil
}

// Decode reads one record starting at src[0]. It returns the decoded
// record, a DecodeOutcome, and the number of bytes consumed (equal to
// TotalSize on success, 4 on EndOfSegment, and 0 on Corrupt, matching the
// real decoder's behavior of stopping the scan rather than skipping ahead
// blindly).
func Decode(src []byte, resolver TagsCodeResolver) (*Record, DecodeOutcome, int, error) {
	if len(src) < 8 {
		return nil, Corrupt, 0, ErrInsufficientBuffer
	}

	totalSize := pkg.Encod.Uint32(src[0:4])
	magic := pkg.Encod.Uint32(src[4:8])

	switch magic {
	case BlankMagicCode:
		return nil, EndOfSegment, 4, nil
	case MessageMagicCode:
		// fall through
	default:
		return nil, Corrupt, 0, ErrBadMagic
	}

	if uint32(len(src)) < totalSize {
		return nil, Corrupt, 0, ErrInsufficientBuffer
	}

	r := &Record{TotalSize: totalSize, Magic: magic}

	off := 8
	r.BodyCRC = pkg.Encod.Uint32(src[off:])
	off += 4
	r.QueueID = pkg.Encod.Uint32(src[off:])
	off += 4
	r.Flag = pkg.Encod.Uint32(src[off:])
	off += 4
	r.QueueOffset = pkg.Encod.Uint64(src[off:])
	off += 8
	r.PhysicalOffset = pkg.Encod.Uint64(src[off:])
	off += 8
	r.SysFlag = pkg.Encod.Uint32(src[off:])
	off += 4
	r.BornTimestamp = int64(pkg.Encod.Uint64(src[off:]))
	off += 8
	bh, n := getHostAddress(src[off:], r.SysFlag&SysFlagBornHostV6 != 0)
	r.BornHost = bh
	off += n
	r.StoreTimestamp = int64(pkg.Encod.Uint64(src[off:]))
	off += 8
	sh, n := getHostAddress(src[off:], r.SysFlag&SysFlagStoreHostV6 != 0)
	r.StoreHost = sh
	off += n
	r.ReconsumeTimes = pkg.Encod.Uint32(src[off:])
	off += 4
	r.PreparedTxOffset = pkg.Encod.Uint64(src[off:])
	off += 8

	bodyLen := pkg.Encod.Uint32(src[off:])
	off += 4
	if uint32(off)+bodyLen > totalSize {
		return nil, Corrupt, 0, ErrInsufficientBuffer
	}
	r.Body = src[off : off+int(bodyLen)]
	off += int(bodyLen)

	topicLen := int(src[off])
	off++
	r.Topic = string(src[off : off+topicLen])
	off += topicLen

	propsLen := int(pkg.Encod.Uint16(src[off:]))
	off += 2
	r.Properties = string(src[off : off+propsLen])
	off += propsLen

	if crc32.ChecksumIEEE(r.Body) != r.BodyCRC {
		return nil, Corrupt, 0, ErrInvalidCRC
	}

	recalculated := CalcMsgLength(len(r.Body), len(r.Topic), len(r.Properties), r.BornHost.Len(), r.StoreHost.Len())
	if recalculated != totalSize {
		return nil, Corrupt, 0, ErrSizeMismatch
	}

	return r, Success, int(totalSize), nil
}

// TagsCode computes the tagsCode for r as Decode's caller would, pulling
// TAGS out of r.Properties.
func (r *Record) TagsCode(resolver TagsCodeResolver) int64 {
	props := ParseProperties(r.Properties)
	return ComputeTagsCode(r.Topic, r.QueueID, r.StoreTimestamp, props[PropTags], resolver)
}
