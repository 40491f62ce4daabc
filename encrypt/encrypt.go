// Package encrypt produces ASCII-armored OpenPGP messages for document
// export. Only public-key encryption to recipients from an armored key ring
// is supported; signing is out of scope.
package encrypt

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/crypto/openpgp"
	"golang.org/x/crypto/openpgp/armor"

	// Recipient keys without hash preferences make openpgp fall back to
	// RIPEMD160, which must be registered or encryption fails at runtime.
	_ "golang.org/x/crypto/ripemd160"
)

// Encrypt encrypts content to every entity in the armored public key ring
// and returns an armored "PGP MESSAGE" block.
func Encrypt(content []byte, armoredPublicKey string) ([]byte, error) {
	ring, err := openpgp.ReadArmoredKeyRing(strings.NewReader(armoredPublicKey))
	if err != nil {
		return nil, fmt.Errorf("encrypt: read public key: %w", err)
	}
	if len(ring) == 0 {
		return nil, fmt.Errorf("encrypt: public key ring is empty")
	}

	var buf bytes.Buffer
	armorWriter, err := armor.Encode(&buf, "PGP MESSAGE", nil)
	if err != nil {
		return nil, fmt.Errorf("encrypt: open armor block: %w", err)
	}
	plaintext, err := openpgp.Encrypt(armorWriter, ring, nil, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("encrypt: start encryption: %w", err)
	}
	if _, err := plaintext.Write(content); err != nil {
		return nil, fmt.Errorf("encrypt: write content: %w", err)
	}
	if err := plaintext.Close(); err != nil {
		return nil, fmt.Errorf("encrypt: finalize message: %w", err)
	}
	if err := armorWriter.Close(); err != nil {
		return nil, fmt.Errorf("encrypt: finalize armor: %w", err)
	}
	return buf.Bytes(), nil
}
