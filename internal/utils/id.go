package utils

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"time"
)

const (
	roomCodeAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	// RoomCodeLength matches the codes the browser client generates itself.
	RoomCodeLength = 6
)

// NewRoomCode returns a short random lowercase base36 room code.
func NewRoomCode() string {
	buf := make([]byte, RoomCodeLength)
	limit := big.NewInt(int64(len(roomCodeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return fallbackCode()
		}
		buf[i] = roomCodeAlphabet[n.Int64()]
	}
	return string(buf)
}

// Fallback to timestamp if crypto/rand is unavailable.
func fallbackCode() string {
	code := strconv.FormatInt(time.Now().UnixNano(), 36)
	if len(code) > RoomCodeLength {
		code = code[len(code)-RoomCodeLength:]
	}
	return code
}
