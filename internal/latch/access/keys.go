package access

import (
	"errors"
	"fmt"
	"strconv"
)

// pinNibbles is the accumulator width: eight 4-bit digits.
const pinNibbles = 8

// EmptyPIN is the all-unused accumulator; 0xF never encodes a digit, so
// unused positions are distinguishable from leading zeros.
const EmptyPIN uint32 = 0xFFFFFFFF

var (
	ErrBadPIN  = errors.New("access: pin must be 1-8 decimal digits")
	ErrBadCard = errors.New("access: bad card number")
)

// PackPIN encodes a PIN string as a key. Digits shift in from the
// right and unused high nibbles stay 0xF: "1234" packs to 0xFFFF1234,
// so leading zeros are significant and "0042" is a different key than
// "42".
func PackPIN(pin string) (uint32, error) {
	if len(pin) == 0 || len(pin) > pinNibbles {
		return 0, ErrBadPIN
	}
	key := EmptyPIN
	for i := 0; i < len(pin); i++ {
		c := pin[i]
		if c < '0' || c > '9' {
			return 0, ErrBadPIN
		}
		key = key<<4 | uint32(c-'0')
	}
	return key, nil
}

// UnpackPIN decodes a packed PIN key back into its digit string,
// skipping unused 0xF nibbles. A nibble in the 0xA-0xE range means the
// key never was a PIN.
func UnpackPIN(key uint32) (string, error) {
	var b []byte
	for i := pinNibbles - 1; i >= 0; i-- {
		n := key >> (4 * uint(i)) & 0xF
		if n == 0xF {
			continue
		}
		if n > 9 {
			return "", ErrBadPIN
		}
		b = append(b, '0'+byte(n))
	}
	return string(b), nil
}

// ParseCard parses a decimal card number.
func ParseCard(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadCard, s)
	}
	return uint32(v), nil
}

// CombineKey folds a card number and a packed PIN into the single key a
// card+pin credential stores. XOR keeps the fold symmetric, so the
// reader can apply the card over the collected PIN in either order.
func CombineKey(card, pin uint32) uint32 {
	return card ^ pin
}
