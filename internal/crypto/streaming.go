// This file implements CBC-chained streaming decryption, for downloads
// whose source was encrypted with a single key+IV and chained CBC across
// fixed-size parts (part N's IV is the last ciphertext block of part
// N-1). Unlike CTRTransform, this mode depends on every byte that came
// before it, so it cannot seek to an arbitrary chunk offset — it is
// wired into download.Transform through a decryptor that rejects any
// offset but the next one it expects, which in practice restricts a
// session using it to Config.Concurrency == 1.
package encryption

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"fmt"
	"io"
	"sync"
)

// CBCStreamingDecryptor decrypts parts produced by chained CBC
// encryption: a single key and IV, with each part's IV taken from the
// previous part's last ciphertext block. Parts must be decrypted in
// order.
type CBCStreamingDecryptor struct {
	key       []byte
	currentIV []byte
	block     cipher.Block
}

// NewCBCStreamingDecryptor builds a decryptor from a 32-byte key and the
// 16-byte initial IV (as published alongside the encrypted resource).
func NewCBCStreamingDecryptor(key, iv []byte) (*CBCStreamingDecryptor, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(key))
	}
	if len(iv) != IVSize {
		return nil, fmt.Errorf("IV must be %d bytes, got %d", IVSize, len(iv))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	keyCopy := make([]byte, KeySize)
	copy(keyCopy, key)

	ivCopy := make([]byte, IVSize)
	copy(ivCopy, iv)

	return &CBCStreamingDecryptor{
		key:       keyCopy,
		currentIV: ivCopy,
		block:     block,
	}, nil
}

// DecryptPart decrypts one ciphertext part using the chained IV and
// advances that IV to this part's last ciphertext block. Parts must be
// passed in the order they were encrypted. isFinal strips PKCS7 padding.
func (d *CBCStreamingDecryptor) DecryptPart(ciphertext []byte, isFinal bool) ([]byte, error) {
	if len(ciphertext) == 0 {
		return nil, fmt.Errorf("ciphertext cannot be empty")
	}
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("ciphertext length (%d) must be multiple of %d", len(ciphertext), aes.BlockSize)
	}

	lastBlock := make([]byte, aes.BlockSize)
	copy(lastBlock, ciphertext[len(ciphertext)-aes.BlockSize:])

	mode := cipher.NewCBCDecrypter(d.block, d.currentIV)
	plaintext := make([]byte, len(ciphertext))
	mode.CryptBlocks(plaintext, ciphertext)

	copy(d.currentIV, lastBlock)

	if isFinal {
		unpadded, err := pkcs7Unpad(plaintext)
		if err != nil {
			return nil, fmt.Errorf("failed to remove padding: %w", err)
		}
		return unpadded, nil
	}

	return plaintext, nil
}

// CBCChainTransform adapts CBCStreamingDecryptor to download.Transform.
// Because each part's decryption depends on the ciphertext of the part
// before it, NewReader rejects any offset other than the one immediately
// following the last chunk it served — a session using this transform
// must run with Config.Concurrency == 1, and its chunk size must match
// the part size the ciphertext was produced with.
type CBCChainTransform struct {
	mu       sync.Mutex
	dec      *CBCStreamingDecryptor
	partSize int64
	next     int64
	total    int64
}

// NewCBCChainTransform returns a Transform over ciphertext of totalSize
// bytes, encrypted in chained-CBC parts of partSize bytes (the final
// part padded with PKCS7 and therefore shorter once decrypted).
func NewCBCChainTransform(key, iv []byte, partSize, totalSize int64) (*CBCChainTransform, error) {
	dec, err := NewCBCStreamingDecryptor(key, iv)
	if err != nil {
		return nil, err
	}
	if partSize <= 0 || partSize%aes.BlockSize != 0 {
		return nil, fmt.Errorf("part size must be a positive multiple of %d, got %d", aes.BlockSize, partSize)
	}
	return &CBCChainTransform{dec: dec, partSize: partSize, total: totalSize}, nil
}

// NewReader returns a reader over the plaintext of the part starting at
// offset. offset must equal the offset immediately following whatever
// part (if any) this transform last served.
func (t *CBCChainTransform) NewReader(base io.Reader, offset int64) (io.Reader, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if offset != t.next {
		return nil, fmt.Errorf("cbc chain transform requires sequential offsets: expected %d, got %d", t.next, offset)
	}

	ciphertext, err := io.ReadAll(base)
	if err != nil {
		return nil, fmt.Errorf("read ciphertext part: %w", err)
	}

	isFinal := offset+t.partSize >= t.total
	plaintext, err := t.dec.DecryptPart(ciphertext, isFinal)
	if err != nil {
		return nil, err
	}

	t.next = offset + t.partSize
	return bytes.NewReader(plaintext), nil
}

// CalculateEncryptedPartSize returns the ciphertext size produced by
// PKCS7-padding a plaintext part of plaintextSize bytes before CBC
// encryption. Used to recover the on-wire part size when only the
// plaintext layout is known.
func CalculateEncryptedPartSize(plaintextSize int64) int64 {
	padding := int64(aes.BlockSize) - (plaintextSize % int64(aes.BlockSize))
	return plaintextSize + padding
}
