package network

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
)

// LoadSecrets builds a Secrets map from a dotenv file overlaid with
// environment entries in "KEY=value" form (typically os.Environ()). The
// environment wins over the file. A missing file is not an error; an empty
// path skips the file.
func LoadSecrets(envFile string, environ []string) (Secrets, error) {
	secrets := make(Secrets)
	if envFile != "" {
		fromFile, err := godotenv.Read(envFile)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read env file %s: %w", envFile, err)
		}
		for k, v := range fromFile {
			secrets[k] = v
		}
	}
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		secrets[k] = v
	}
	return secrets, nil
}
