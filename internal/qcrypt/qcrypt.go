// Package qcrypt reverses the lightweight obfuscation applied to bundled
// question-bank assets.
//
// This is a repeating-key XOR, not cryptography: anyone holding both the
// binary and an asset can recover the key from the SQL text inside. Its only
// job is to keep the question bank from being a plain-text file on disk.
package qcrypt

// Decrypt XORs data against key repeated to the input length. A wrong key is
// not detectable here; the result simply fails to parse downstream.
func Decrypt(data []byte, key string) []byte {
	if len(key) == 0 {
		out := make([]byte, len(data))
		copy(out, data)
		return out
	}

	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b ^ key[i%len(key)]
	}
	return out
}

// Encrypt is the identical transform; XOR is its own inverse.
func Encrypt(data []byte, key string) []byte {
	return Decrypt(data, key)
}
