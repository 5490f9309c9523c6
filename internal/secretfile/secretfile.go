// Package secretfile manages the hex-encoded process secret: a
// "SECRET=" line appended under an exclusive file lock; a missing
// SECRET line is generated with 32 random bytes.
package secretfile

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/afero"

	"github.com/arpi-project/monitord/internal/statusfile"
)

const secretLinePrefix = "SECRET="

// Ensure reads the SECRET= line from path, generating and appending one
// if absent. It returns the decoded secret bytes.
func Ensure(fsys afero.Fs, path string, lock statusfile.FileLocker) ([]byte, error) {
	unlock, err := lock.Lock(path)
	if err != nil {
		return nil, fmt.Errorf("secretfile: lock failure: %w", err)
	}
	defer unlock()

	existing, err := afero.Exists(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("secretfile: stat failure: %w", err)
	}

	var content string
	if existing {
		data, err := afero.ReadFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("secretfile: read failure: %w", err)
		}
		content = string(data)
	}

	if secret, ok := findSecret(content); ok {
		decoded, err := hex.DecodeString(secret)
		if err != nil {
			return nil, fmt.Errorf("secretfile: corrupt secret: %w", err)
		}
		return decoded, nil
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("secretfile: generate failure: %w", err)
	}
	encoded := hex.EncodeToString(raw)

	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	content += secretLinePrefix + encoded + "\n"

	if err := afero.WriteFile(fsys, path, []byte(content), 0o600); err != nil {
		return nil, fmt.Errorf("secretfile: write failure: %w", err)
	}

	return raw, nil
}

func findSecret(content string) (string, bool) {
	for _, line := range strings.Split(content, "\n") {
		if v, ok := strings.CutPrefix(line, secretLinePrefix); ok {
			v = strings.TrimSpace(v)
			if v != "" {
				return v, true
			}
		}
	}
	return "", false
}
