package pkg

import "encoding/binary"

const (
	// Size lengths (in bytes)
	LenOffset   = 8
	LenSize     = 4
	LenCRC      = 4
	LenMagic    = 4
	LenAttr     = 2
	LenEpoch    = 4
	LenSequence = 4
	LenCount    = 4
)

// Encod is the wire-format byte order. RocketMQ's on-disk layout is
// big-endian throughout, so every field here follows suit.
var Encod = binary.BigEndian
