package chain

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/sha3"
)

// NativeDecimals is the native asset's fixed-point scale (wei per unit).
const NativeDecimals = 18

// EventTopic returns the topic0 hash for a canonical event signature,
// e.g. "TokenCreated(address,address,address,string,string,uint256,uint256)".
func EventTopic(signature string) string {
	return "0x" + hex.EncodeToString(keccak256([]byte(signature)))
}

// Selector returns the 4-byte call selector for a canonical function
// signature, e.g. "name()".
func Selector(signature string) string {
	return "0x" + hex.EncodeToString(keccak256([]byte(signature))[:4])
}

func keccak256(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}

// EncodeAddressArg left-pads an address to a 32-byte call argument.
func EncodeAddressArg(addr string) string {
	trimmed := strings.TrimPrefix(strings.ToLower(addr), "0x")
	return strings.Repeat("0", 64-len(trimmed)) + trimmed
}

// Words splits 0x-prefixed result data into 32-byte hex words.
func Words(data string) ([]string, error) {
	trimmed := strings.TrimPrefix(data, "0x")
	if len(trimmed)%64 != 0 {
		return nil, &DecodeError{Msg: fmt.Sprintf("data length %d is not word-aligned", len(trimmed))}
	}
	words := make([]string, 0, len(trimmed)/64)
	for i := 0; i < len(trimmed); i += 64 {
		words = append(words, trimmed[i:i+64])
	}
	return words, nil
}

// WordToBig decodes a 32-byte hex word as an unsigned big integer.
func WordToBig(word string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(word, 16)
	if !ok {
		return nil, &DecodeError{Msg: fmt.Sprintf("word %q is not hex", word)}
	}
	return n, nil
}

// WordToAddress decodes the low 20 bytes of a word as a lowercase address.
func WordToAddress(word string) (string, error) {
	if len(word) != 64 {
		return "", &DecodeError{Msg: fmt.Sprintf("word length %d, want 64", len(word))}
	}
	for _, c := range word[:24] {
		if c != '0' {
			return "", &DecodeError{Msg: "address word has nonzero padding"}
		}
	}
	return "0x" + strings.ToLower(word[24:]), nil
}

// TopicToAddress decodes an indexed address argument from a log topic.
func TopicToAddress(topic string) (string, error) {
	trimmed := strings.TrimPrefix(topic, "0x")
	return WordToAddress(trimmed)
}

// WordToBool decodes a word as an ABI bool.
func WordToBool(word string) (bool, error) {
	n, err := WordToBig(word)
	if err != nil {
		return false, err
	}
	return n.Sign() != 0, nil
}

// DecodeString decodes a dynamic string that starts at word index idx of the
// given words (idx holds the byte offset into the data area).
func DecodeString(words []string, idx int) (string, error) {
	if idx >= len(words) {
		return "", &DecodeError{Msg: "string offset word out of range"}
	}
	offset, err := WordToBig(words[idx])
	if err != nil {
		return "", err
	}
	if !offset.IsInt64() || offset.Int64()%32 != 0 {
		return "", &DecodeError{Msg: "string offset is not word-aligned"}
	}
	lengthIdx := int(offset.Int64() / 32)
	if lengthIdx >= len(words) {
		return "", &DecodeError{Msg: "string length word out of range"}
	}
	length, err := WordToBig(words[lengthIdx])
	if err != nil {
		return "", err
	}
	if !length.IsInt64() {
		return "", &DecodeError{Msg: "string length overflows"}
	}
	n := int(length.Int64())
	raw := strings.Join(words[lengthIdx+1:], "")
	if n*2 > len(raw) {
		return "", &DecodeError{Msg: "string data truncated"}
	}
	decoded, err := hex.DecodeString(raw[:n*2])
	if err != nil {
		return "", &DecodeError{Msg: "string data is not hex", Err: err}
	}
	return string(decoded), nil
}

// DecodeStringResult decodes an eth_call result holding a single string
// return value, as name() and symbol() do.
func DecodeStringResult(data string) (string, error) {
	words, err := Words(data)
	if err != nil {
		return "", err
	}
	if len(words) < 2 {
		return "", &DecodeError{Msg: "string result too short"}
	}
	return DecodeString(words, 0)
}

// WeiToDecimal converts a raw fixed-point amount to a decimal using the
// given scale.
func WeiToDecimal(raw *big.Int, decimals int32) decimal.Decimal {
	return decimal.NewFromBigInt(raw, -decimals)
}

// parseHexUint parses a 0x-prefixed hex quantity.
func parseHexUint(s string) (uint64, error) {
	trimmed := strings.TrimPrefix(s, "0x")
	if trimmed == "" {
		return 0, fmt.Errorf("empty hex quantity")
	}
	return strconv.ParseUint(trimmed, 16, 64)
}

// formatHexUint formats a quantity as 0x-prefixed hex.
func formatHexUint(n uint64) string {
	return "0x" + strconv.FormatUint(n, 16)
}

// lowerHex lowercases a hex string, preserving the 0x prefix.
func lowerHex(s string) string {
	return strings.ToLower(s)
}
