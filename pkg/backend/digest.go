package backend

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// StampFile is the hidden metadata file written into every environment,
// recording the fingerprint used for staleness detection.
const StampFile = ".taskground-env.json"

// Digest is the small fingerprint persisted alongside an environment.
type Digest struct {
	Kind        string `json:"kind"`
	Interpreter string `json:"interpreter"`
	ParamsHash  string `json:"params_hash"`
}

// Compute fingerprints a backend kind, interpreter spec, and extra-params
// combination.
func Compute(kind, interpreter string, params []string) Digest {
	h := sha256.Sum256([]byte(strings.Join(params, "\x00")))
	return Digest{
		Kind:        kind,
		Interpreter: interpreter,
		ParamsHash:  hex.EncodeToString(h[:6]),
	}
}

// WriteStamp persists the digest into the environment directory.
func WriteStamp(location string, d Digest) error {
	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(location, StampFile), data, 0o644)
}

// ReadStamp loads the digest stored in an environment directory.
func ReadStamp(location string) (Digest, error) {
	var d Digest
	data, err := os.ReadFile(filepath.Join(location, StampFile))
	if err != nil {
		return d, err
	}
	err = json.Unmarshal(data, &d)
	return d, err
}

// Fresh reports whether the environment at location exists and matches the
// requested digest.
func Fresh(location string, want Digest) bool {
	got, err := ReadStamp(location)
	if err != nil {
		return false
	}
	return got == want
}

// Exists reports whether an environment directory is present at all.
func Exists(location string) bool {
	fi, err := os.Stat(location)
	return err == nil && fi.IsDir()
}
