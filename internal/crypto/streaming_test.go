package encryption

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"io"
	"testing"
)

// =============================================================================
// Key Derivation Tests (keyderive.go)
// =============================================================================

// TestGenerateFileId tests that file ID generation produces correct-length IDs
func TestGenerateFileId(t *testing.T) {
	fileId, err := GenerateFileId()
	if err != nil {
		t.Fatalf("GenerateFileId() failed: %v", err)
	}

	if len(fileId) != FileIdSize {
		t.Errorf("Expected file ID length %d, got %d", FileIdSize, len(fileId))
	}

	// Verify randomness: generate two file IDs, they should be different
	fileId2, err := GenerateFileId()
	if err != nil {
		t.Fatalf("GenerateFileId() second call failed: %v", err)
	}

	if bytes.Equal(fileId, fileId2) {
		t.Error("Two consecutive file ID generations produced identical IDs (highly unlikely!)")
	}
}

// TestDerivePartKeyIV tests HKDF-based key/IV derivation
func TestDerivePartKeyIV(t *testing.T) {
	masterKey, _ := GenerateKey()
	fileId, _ := GenerateFileId()

	// Test basic derivation
	key, iv, err := DerivePartKeyIV(masterKey, fileId, 0)
	if err != nil {
		t.Fatalf("DerivePartKeyIV() failed: %v", err)
	}

	if len(key) != KeySize {
		t.Errorf("Expected key length %d, got %d", KeySize, len(key))
	}
	if len(iv) != IVSize {
		t.Errorf("Expected IV length %d, got %d", IVSize, len(iv))
	}
}

// TestDerivePartKeyIV_Determinism tests that same inputs produce same outputs
func TestDerivePartKeyIV_Determinism(t *testing.T) {
	masterKey, _ := GenerateKey()
	fileId, _ := GenerateFileId()

	key1, iv1, err := DerivePartKeyIV(masterKey, fileId, 5)
	if err != nil {
		t.Fatalf("First DerivePartKeyIV() failed: %v", err)
	}

	key2, iv2, err := DerivePartKeyIV(masterKey, fileId, 5)
	if err != nil {
		t.Fatalf("Second DerivePartKeyIV() failed: %v", err)
	}

	if !bytes.Equal(key1, key2) {
		t.Error("Same inputs produced different keys (must be deterministic!)")
	}
	if !bytes.Equal(iv1, iv2) {
		t.Error("Same inputs produced different IVs (must be deterministic!)")
	}
}

// TestDerivePartKeyIV_UniquePerPart tests that different parts get different keys/IVs
func TestDerivePartKeyIV_UniquePerPart(t *testing.T) {
	masterKey, _ := GenerateKey()
	fileId, _ := GenerateFileId()

	key0, iv0, _ := DerivePartKeyIV(masterKey, fileId, 0)
	key1, iv1, _ := DerivePartKeyIV(masterKey, fileId, 1)
	key2, iv2, _ := DerivePartKeyIV(masterKey, fileId, 2)

	// All keys should be different
	if bytes.Equal(key0, key1) || bytes.Equal(key1, key2) || bytes.Equal(key0, key2) {
		t.Error("Different parts produced identical keys (security vulnerability!)")
	}

	// All IVs should be different
	if bytes.Equal(iv0, iv1) || bytes.Equal(iv1, iv2) || bytes.Equal(iv0, iv2) {
		t.Error("Different parts produced identical IVs (security vulnerability!)")
	}
}

// TestDerivePartKeyIV_UniquePerFile tests that different files get different keys/IVs
func TestDerivePartKeyIV_UniquePerFile(t *testing.T) {
	masterKey, _ := GenerateKey()
	fileId1, _ := GenerateFileId()
	fileId2, _ := GenerateFileId()

	key1, iv1, _ := DerivePartKeyIV(masterKey, fileId1, 0)
	key2, iv2, _ := DerivePartKeyIV(masterKey, fileId2, 0)

	if bytes.Equal(key1, key2) {
		t.Error("Different files with same part index produced identical keys")
	}
	if bytes.Equal(iv1, iv2) {
		t.Error("Different files with same part index produced identical IVs")
	}
}

// TestDerivePartKeyIV_InvalidInputs tests error handling for invalid inputs
func TestDerivePartKeyIV_InvalidInputs(t *testing.T) {
	validMasterKey, _ := GenerateKey()
	validFileId, _ := GenerateFileId()

	testCases := []struct {
		name      string
		masterKey []byte
		fileId    []byte
		partIndex int64
	}{
		{"nil_master_key", nil, validFileId, 0},
		{"short_master_key", make([]byte, 16), validFileId, 0},
		{"long_master_key", make([]byte, 64), validFileId, 0},
		{"nil_file_id", validMasterKey, nil, 0},
		{"short_file_id", validMasterKey, make([]byte, 16), 0},
		{"long_file_id", validMasterKey, make([]byte, 64), 0},
		{"negative_part_index", validMasterKey, validFileId, -1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := DerivePartKeyIV(tc.masterKey, tc.fileId, tc.partIndex)
			if err == nil {
				t.Error("Expected error for invalid input, got nil")
			}
		})
	}
}

// =============================================================================
// CBCStreamingDecryptor / CBCChainTransform tests (streaming.go)
// =============================================================================

// encryptChainedCBC is a test-only mirror of the chained-CBC scheme
// CBCStreamingDecryptor expects: a single key+IV, each part's IV taken
// from the previous part's last ciphertext block, PKCS7 padding applied
// only to the final part.
func encryptChainedCBC(t *testing.T, key, iv []byte, parts [][]byte) [][]byte {
	t.Helper()
	block, err := aes.NewCipher(key)
	if err != nil {
		t.Fatalf("aes.NewCipher: %v", err)
	}
	currentIV := append([]byte(nil), iv...)
	out := make([][]byte, len(parts))
	for i, part := range parts {
		data := part
		if i == len(parts)-1 {
			data = pkcs7Pad(part, aes.BlockSize)
		}
		ciphertext := make([]byte, len(data))
		cipher.NewCBCEncrypter(block, currentIV).CryptBlocks(ciphertext, data)
		out[i] = ciphertext
		currentIV = ciphertext[len(ciphertext)-aes.BlockSize:]
	}
	return out
}

func TestCBCStreamingDecryptor_RoundTrip(t *testing.T) {
	key, _ := GenerateKey()
	iv, _ := GenerateIV()

	partSize := 64
	parts := [][]byte{
		bytes.Repeat([]byte{0x01}, partSize),
		bytes.Repeat([]byte{0x02}, partSize),
		bytes.Repeat([]byte{0x03}, 17), // shorter final part, needs padding
	}
	ciphertexts := encryptChainedCBC(t, key, iv, parts)

	dec, err := NewCBCStreamingDecryptor(key, iv)
	if err != nil {
		t.Fatalf("NewCBCStreamingDecryptor() failed: %v", err)
	}

	for i, ct := range ciphertexts {
		isFinal := i == len(ciphertexts)-1
		plaintext, err := dec.DecryptPart(ct, isFinal)
		if err != nil {
			t.Fatalf("DecryptPart(%d) failed: %v", i, err)
		}
		if !bytes.Equal(plaintext, parts[i]) {
			t.Errorf("part %d: got %x, want %x", i, plaintext, parts[i])
		}
	}
}

func TestCBCStreamingDecryptor_OutOfOrderCorrupts(t *testing.T) {
	key, _ := GenerateKey()
	iv, _ := GenerateIV()
	parts := [][]byte{
		bytes.Repeat([]byte{0x01}, 32),
		pkcs7Pad(bytes.Repeat([]byte{0x02}, 32), aes.BlockSize),
	}
	ciphertexts := encryptChainedCBC(t, key, iv, [][]byte{parts[0], parts[1][:32]})

	dec, _ := NewCBCStreamingDecryptor(key, iv)
	// Decrypting part 1 before part 0 uses the wrong chaining IV and
	// must not silently reproduce the correct plaintext.
	plaintext, err := dec.DecryptPart(ciphertexts[1], true)
	if err == nil && bytes.Equal(plaintext, parts[1][:32]) {
		t.Error("decrypting out of order produced correct plaintext; chaining not exercised")
	}
}

func TestCBCStreamingDecryptor_InvalidInputs(t *testing.T) {
	key, _ := GenerateKey()
	iv, _ := GenerateIV()
	dec, err := NewCBCStreamingDecryptor(key, iv)
	if err != nil {
		t.Fatalf("NewCBCStreamingDecryptor() failed: %v", err)
	}

	if _, err := dec.DecryptPart(nil, true); err == nil {
		t.Error("expected error for empty ciphertext")
	}
	if _, err := dec.DecryptPart([]byte("not-block-aligned"), true); err == nil {
		t.Error("expected error for non-block-aligned ciphertext")
	}

	if _, err := NewCBCStreamingDecryptor(make([]byte, 10), iv); err == nil {
		t.Error("expected error for short key")
	}
	if _, err := NewCBCStreamingDecryptor(key, make([]byte, 10)); err == nil {
		t.Error("expected error for short IV")
	}
}

func TestCBCChainTransform_SequentialReads(t *testing.T) {
	key, _ := GenerateKey()
	iv, _ := GenerateIV()

	partSize := int64(32)
	parts := [][]byte{
		bytes.Repeat([]byte{0xAA}, int(partSize)),
		bytes.Repeat([]byte{0xBB}, int(partSize)),
		bytes.Repeat([]byte{0xCC}, 9),
	}
	totalSize := partSize*2 + 9
	ciphertexts := encryptChainedCBC(t, key, iv, parts)

	transform, err := NewCBCChainTransform(key, iv, partSize, totalSize)
	if err != nil {
		t.Fatalf("NewCBCChainTransform() failed: %v", err)
	}

	offset := int64(0)
	for i, ct := range ciphertexts {
		r, err := transform.NewReader(bytes.NewReader(ct), offset)
		if err != nil {
			t.Fatalf("NewReader at offset %d failed: %v", offset, err)
		}
		got, err := io.ReadAll(r)
		if err != nil {
			t.Fatalf("read part %d: %v", i, err)
		}
		if !bytes.Equal(got, parts[i]) {
			t.Errorf("part %d: got %x, want %x", i, got, parts[i])
		}
		offset += partSize
	}
}

func TestCBCChainTransform_RejectsNonSequentialOffset(t *testing.T) {
	key, _ := GenerateKey()
	iv, _ := GenerateIV()
	partSize := int64(32)

	transform, err := NewCBCChainTransform(key, iv, partSize, partSize*3)
	if err != nil {
		t.Fatalf("NewCBCChainTransform() failed: %v", err)
	}

	if _, err := transform.NewReader(bytes.NewReader(make([]byte, 32)), partSize); err == nil {
		t.Error("expected error when first read does not start at offset 0")
	}
}

func TestCBCChainTransform_InvalidPartSize(t *testing.T) {
	key, _ := GenerateKey()
	iv, _ := GenerateIV()

	if _, err := NewCBCChainTransform(key, iv, 0, 100); err == nil {
		t.Error("expected error for zero part size")
	}
	if _, err := NewCBCChainTransform(key, iv, 17, 100); err == nil {
		t.Error("expected error for non-block-aligned part size")
	}
}

func TestCalculateEncryptedPartSize(t *testing.T) {
	testCases := []struct {
		plaintextSize int64
		wantCiphertext int64
	}{
		{0, 16},
		{1, 16},
		{15, 16},
		{16, 32},
		{17, 32},
		{31, 32},
		{32, 48},
	}

	for _, tc := range testCases {
		got := CalculateEncryptedPartSize(tc.plaintextSize)
		if got != tc.wantCiphertext {
			t.Errorf("CalculateEncryptedPartSize(%d) = %d, want %d", tc.plaintextSize, got, tc.wantCiphertext)
		}
	}
}
