package identity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

type KeyType string

const (
	ED25519   KeyType = "ed25519"
	SECP256K1 KeyType = "secp256k1"
)

func (t KeyType) size() int {
	switch t {
	case ED25519:
		return 32
	case SECP256K1:
		return 64
	default:
		return 0
	}
}

var ErrInvalidPublicKey = errors.New("invalid public key")

// PublicKey is a parsed authorization key. Its String form is canonical
// and is what the ledger is indexed by.
type PublicKey struct {
	Type KeyType
	Data []byte
}

// ParsePublicKey accepts "<type>:<base58>" or a bare base58 string, which
// is taken to be ed25519.
func ParsePublicKey(s string) (PublicKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return PublicKey{}, fmt.Errorf("%w: empty", ErrInvalidPublicKey)
	}

	keyType, encoded := ED25519, s
	if prefix, rest, ok := strings.Cut(s, ":"); ok {
		keyType, encoded = KeyType(strings.ToLower(prefix)), rest
	}

	if keyType.size() == 0 {
		return PublicKey{}, fmt.Errorf("%w: unknown key type %q", ErrInvalidPublicKey, keyType)
	}

	data, err := base58.Decode(encoded)
	if err != nil {
		return PublicKey{}, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}

	if len(data) != keyType.size() {
		return PublicKey{}, fmt.Errorf("%w: %s key must be %d bytes, got %d", ErrInvalidPublicKey, keyType, keyType.size(), len(data))
	}

	return PublicKey{Type: keyType, Data: data}, nil
}

// NewED25519 wraps raw ed25519 public key bytes.
func NewED25519(raw []byte) (PublicKey, error) {
	if len(raw) != ED25519.size() {
		return PublicKey{}, fmt.Errorf("%w: ed25519 key must be 32 bytes, got %d", ErrInvalidPublicKey, len(raw))
	}
	return PublicKey{Type: ED25519, Data: append([]byte(nil), raw...)}, nil
}

func (k PublicKey) String() string {
	return string(k.Type) + ":" + base58.Encode(k.Data)
}

// CanonicalPublicKey parses s and returns its canonical string form.
func CanonicalPublicKey(s string) (string, error) {
	pk, err := ParsePublicKey(s)
	if err != nil {
		return "", err
	}
	return pk.String(), nil
}
