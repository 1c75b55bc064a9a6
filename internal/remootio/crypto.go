package remootio

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrMACMismatch is returned when an encrypted frame fails verification.
	ErrMACMismatch = errors.New("frame MAC mismatch")

	errBadPadding = errors.New("invalid PKCS7 padding")
)

// DecodeKey decodes a 64 character hex key into 32 raw bytes.
func DecodeKey(key string) ([]byte, error) {
	raw, err := hex.DecodeString(key)
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("key must be 32 bytes, got %d", len(raw))
	}
	return raw, nil
}

// Seal encrypts p with AES-256-CBC under encKey and signs the result with
// HMAC-SHA256 under macKey.
func Seal(p *Payload, encKey, macKey []byte) (*Frame, error) {
	plain, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("generate iv: %w", err)
	}

	padded := pkcs7Pad(plain, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)

	data := &EncryptedData{
		IV:      base64.StdEncoding.EncodeToString(iv),
		Payload: base64.StdEncoding.EncodeToString(out),
	}
	mac, err := computeMAC(data, macKey)
	if err != nil {
		return nil, err
	}

	return &Frame{Type: FrameEncrypted, Data: data, MAC: mac}, nil
}

// Open verifies and decrypts an ENCRYPTED frame.
func Open(f *Frame, encKey, macKey []byte) (*Payload, error) {
	if f.Data == nil {
		return nil, errors.New("encrypted frame has no data")
	}

	want, err := computeMAC(f.Data, macKey)
	if err != nil {
		return nil, err
	}
	if !hmac.Equal([]byte(want), []byte(f.MAC)) {
		return nil, ErrMACMismatch
	}

	iv, err := base64.StdEncoding.DecodeString(f.Data.IV)
	if err != nil || len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("invalid iv")
	}
	in, err := base64.StdEncoding.DecodeString(f.Data.Payload)
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if len(in) == 0 || len(in)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("payload is not a multiple of the block size")
	}

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	plain := make([]byte, len(in))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, in)

	plain, err = pkcs7Unpad(plain, aes.BlockSize)
	if err != nil {
		return nil, err
	}

	var p Payload
	if err := json.Unmarshal(plain, &p); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return &p, nil
}

func computeMAC(data *EncryptedData, macKey []byte) (string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal data: %w", err)
	}
	h := hmac.New(sha256.New, macKey)
	h.Write(raw)
	return base64.StdEncoding.EncodeToString(h.Sum(nil)), nil
}

func pkcs7Pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 || len(b)%size != 0 {
		return nil, errBadPadding
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, errBadPadding
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, errBadPadding
		}
	}
	return b[:len(b)-n], nil
}
