package assemble

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"errors"
	"io"
)

// Shared secret the provider wraps per-stream keys with.
const masterKey = "UIlTTEMmmLfGowo/UC60x2H45W6MdGgTRfo/umg4754="

var ErrBadSecurityToken = errors.New("malformed security token")

// UnwrapSecurityToken recovers the stream key and nonce from the opaque
// token: the first 16 bytes are a CBC IV, the rest decrypts under the master
// key into key (16 bytes) and nonce (8 bytes).
func UnwrapSecurityToken(token string) (key, nonce []byte, err error) {
	master, err := base64.StdEncoding.DecodeString(masterKey)
	if err != nil {
		return nil, nil, err
	}

	data, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, nil, ErrBadSecurityToken
	}
	if len(data) < 16+aes.BlockSize || (len(data)-16)%aes.BlockSize != 0 {
		return nil, nil, ErrBadSecurityToken
	}

	iv, wrapped := data[:16], data[16:]

	block, err := aes.NewCipher(master)
	if err != nil {
		return nil, nil, err
	}

	unwrapped := make([]byte, len(wrapped))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(unwrapped, wrapped)

	if len(unwrapped) < 24 {
		return nil, nil, ErrBadSecurityToken
	}
	return unwrapped[:16], unwrapped[16:24], nil
}

// decryptStream applies the provider stream cipher: AES-CTR with the 8-byte
// nonce as counter prefix.
func decryptStream(key, nonce []byte, src io.Reader, dst io.Writer) error {
	block, err := aes.NewCipher(key)
	if err != nil {
		return err
	}

	iv := make([]byte, aes.BlockSize)
	copy(iv, nonce)

	reader := &cipher.StreamReader{S: cipher.NewCTR(block, iv), R: src}
	_, err = io.Copy(dst, reader)
	return err
}
