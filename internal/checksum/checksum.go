package checksum

import (
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

const bufferSize = 64 * 1024 // 64KB buffer

// CalculateFileMD5 returns the lowercase hex MD5 digest of a file.
func CalculateFileMD5(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	return CalculateMD5(file)
}

// CalculateMD5 returns the lowercase hex MD5 digest of everything read from r.
// This is the representation S3 reports as the ETag of a single-part upload.
func CalculateMD5(r io.Reader) (string, error) {
	hash := md5.New()
	buffer := make([]byte, bufferSize)
	if _, err := io.CopyBuffer(hash, r, buffer); err != nil {
		return "", fmt.Errorf("read: %w", err)
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

// HexToBase64 re-encodes a hex digest as the base64 form used by the Content-MD5 header.
func HexToBase64(hexDigest string) (string, error) {
	raw, err := hex.DecodeString(hexDigest)
	if err != nil {
		return "", fmt.Errorf("decode hex checksum %q: %w", hexDigest, err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
