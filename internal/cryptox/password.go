// Package cryptox hashes passwords with argon2id and encodes the result in
// PHC string format: $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>.
package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	algorithmID = "argon2id"

	MinMemoryKB uint32 = 8 * 1024
)

var (
	ErrInvalidHash         = errors.New("invalid password hash")
	ErrIncompatibleVersion = errors.New("incompatible argon2 version")
)

// Argon2Params are the argon2id cost parameters. Memory is in KiB.
type Argon2Params struct {
	Memory     uint32
	Time       uint32
	Threads    uint8
	SaltLength uint32
	KeyLength  uint32
}

// DefaultArgon2Params returns t=1, m=64 MiB, p=4 with a 16-byte salt and a
// 32-byte key.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Memory:     64 * 1024,
		Time:       1,
		Threads:    4,
		SaltLength: 16,
		KeyLength:  32,
	}
}

// Validate rejects parameters argon2 cannot run with or that are too weak.
func (p Argon2Params) Validate() error {
	var errs []error
	if p.Memory < MinMemoryKB {
		errs = append(errs, fmt.Errorf("argon2 memory must be >= %d KiB", MinMemoryKB))
	}
	if p.Time < 1 {
		errs = append(errs, errors.New("argon2 time must be >= 1"))
	}
	if p.Threads < 1 {
		errs = append(errs, errors.New("argon2 threads must be >= 1"))
	}
	if p.SaltLength < 16 {
		errs = append(errs, errors.New("argon2 salt length must be >= 16"))
	}
	if p.KeyLength < 16 {
		errs = append(errs, errors.New("argon2 key length must be >= 16"))
	}
	return errors.Join(errs...)
}

// HashPassword derives an argon2id key from password and a fresh random salt.
// Passwords of any length are accepted.
func HashPassword(password []byte, p Argon2Params) (string, error) {
	salt := make([]byte, p.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	return HashPasswordWithSalt(password, salt, p), nil
}

// HashPasswordWithSalt is HashPassword with a caller-supplied salt.
func HashPasswordWithSalt(password, salt []byte, p Argon2Params) string {
	key := argon2.IDKey(password, salt, p.Time, p.Memory, p.Threads, p.KeyLength)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		p.Memory, p.Time, p.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
}

// VerifyPassword recomputes the key with the parameters stored in encoded and
// compares it in constant time.
func VerifyPassword(password []byte, encoded string) (bool, error) {
	p, salt, key, err := decodeHash(encoded)
	if err != nil {
		return false, err
	}

	other := argon2.IDKey(password, salt, p.Time, p.Memory, p.Threads, p.KeyLength)

	return subtle.ConstantTimeCompare(key, other) == 1, nil
}

func decodeHash(encoded string) (Argon2Params, []byte, []byte, error) {
	var p Argon2Params

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != algorithmID {
		return p, nil, nil, ErrInvalidHash
	}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || !strings.HasPrefix(parts[2], "v=") {
		return p, nil, nil, ErrInvalidHash
	}
	if version != argon2.Version {
		return p, nil, nil, ErrIncompatibleVersion
	}

	var threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &threads); err != nil {
		return p, nil, nil, ErrInvalidHash
	}
	if threads < 1 || threads > 255 || p.Time < 1 || p.Memory < MinMemoryKB {
		return p, nil, nil, ErrInvalidHash
	}
	p.Threads = uint8(threads)

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return p, nil, nil, ErrInvalidHash
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return p, nil, nil, ErrInvalidHash
	}
	p.SaltLength = uint32(len(salt))
	p.KeyLength = uint32(len(key))

	return p, salt, key, nil
}
