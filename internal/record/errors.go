package record

import "errors"

var (
	ErrInsufficientBuffer = errors.New("record: buffer too small")
	ErrInvalidCRC         = errors.New("record: body crc mismatch")
	ErrBadMagic           = errors.New("record: unrecognized magic code")
	ErrSizeMismatch       = errors.New("record: recalculated size does not match totalSize")
	ErrTopicTooLong       = errors.New("record: topic exceeds max length")
	ErrPropertiesTooLong  = errors.New("record: properties exceed max length")
)
