// Package wallet содержит работу с ключевым материалом пользователя:
// генерацию секретного ключа и вывод адреса в реестре токенов.
package wallet

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"golang.org/x/crypto/sha3"
)

// ErrInvalidKey возвращается, если ключевой материал имеет неверный формат.
var ErrInvalidKey = errors.New("invalid key material")

const secretLen = 32

// Secret хранит секретный ключ пользователя. Значение не попадает в логи:
// String и Format выводят заглушку, реальное значение сериализуется только
// в кодировку хранилища.
type Secret []byte

// ParseSecret разбирает hex-представление секретного ключа
// (префикс "0x" допускается, но не обязателен).
func ParseSecret(s string) (Secret, error) {
	s = strings.TrimPrefix(s, "0x")

	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidKey, "not a hex string")
	}
	if len(b) != secretLen {
		return nil, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidKey, secretLen, len(b))
	}

	allZero := true
	for _, v := range b {
		if v != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		return nil, fmt.Errorf("%w: zero scalar", ErrInvalidKey)
	}

	return Secret(b), nil
}

// Generate создаёт новый случайный секретный ключ.
func Generate() (Secret, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate private key: %w", err)
	}
	return Secret(priv.Serialize()), nil
}

// Hex возвращает hex-представление ключа с префиксом "0x".
// Использовать только для кодировки хранилища.
func (s Secret) Hex() string {
	return "0x" + hex.EncodeToString(s)
}

// Zero затирает ключевой материал в памяти.
func (s Secret) Zero() {
	for i := range s {
		s[i] = 0
	}
}

// String возвращает заглушку вместо значения ключа.
func (s Secret) String() string {
	return "[REDACTED]"
}

// Format не позволяет вывести значение ключа через пакет fmt.
func (s Secret) Format(f fmt.State, verb rune) {
	fmt.Fprint(f, "[REDACTED]")
}

// MarshalJSON сериализует ключ для кодировки хранилища.
func (s Secret) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Hex())
}

// UnmarshalJSON восстанавливает ключ из кодировки хранилища.
func (s *Secret) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("unmarshal secret: %w", err)
	}

	parsed, err := ParseSecret(raw)
	if err != nil {
		return err
	}

	*s = parsed
	return nil
}

// Address выводит адрес в реестре токенов из секретного ключа:
// некомпрессированный публичный ключ secp256k1 хешируется Keccak-256,
// адресом служат последние 20 байт хеша.
func (s Secret) Address() (string, error) {
	if len(s) != secretLen {
		return "", fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidKey, secretLen, len(s))
	}

	priv := secp256k1.PrivKeyFromBytes(s)
	if priv.Key.IsZero() {
		return "", fmt.Errorf("%w: zero scalar", ErrInvalidKey)
	}

	pub := priv.PubKey().SerializeUncompressed()

	h := sha3.NewLegacyKeccak256()
	// Первый байт — маркер формата 0x04, в хеш не входит.
	h.Write(pub[1:])
	sum := h.Sum(nil)

	return "0x" + hex.EncodeToString(sum[12:]), nil
}
