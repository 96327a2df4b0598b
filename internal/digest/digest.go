// Package digest checks downloaded packages against the hex digests published
// in their descriptor.
package digest

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"sort"
	"strings"

	"costrict-updater/internal/models"
)

const (
	MD5    = "md5"
	SHA1   = "sha1"
	SHA224 = "sha224"
	SHA256 = "sha256"
	SHA384 = "sha384"
	SHA512 = "sha512"
)

var algorithms = map[string]func() hash.Hash{
	MD5:    md5.New,
	SHA1:   sha1.New,
	SHA224: sha256.New224,
	SHA256: sha256.New,
	SHA384: sha512.New384,
	SHA512: sha512.New,
}

// Supported reports whether algo (case-insensitive) is in the allow-list.
func Supported(algo string) bool {
	_, ok := algorithms[strings.ToLower(algo)]
	return ok
}

// Algorithms lists the allow-listed algorithm names in sorted order.
func Algorithms() []string {
	names := make([]string, 0, len(algorithms))
	for name := range algorithms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate fails with ErrUnsupportedHashAlgorithm on the first key outside the allow-list.
func Validate(expected map[string]string) error {
	for _, algo := range sortedKeys(expected) {
		if !Supported(algo) {
			return models.NewError(models.ErrUnsupportedHashAlgorithm, "'%s'", algo)
		}
	}
	return nil
}

/**
 * MismatchError 摘要不一致
 * @property {string} Algorithm - 不一致的算法
 * @property {string} Expected - 期望摘要
 * @property {string} Actual - 实际摘要
 */
type MismatchError struct {
	Path      string
	Algorithm string
	Expected  string
	Actual    string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s digest mismatch for %s: expected %s, got %s",
		e.Algorithm, e.Path, e.Expected, e.Actual)
}

func (e *MismatchError) Unwrap() error {
	return models.ErrPackageVerify
}

/**
 * Compute the hex digest of a file
 * @param {string} path - File to hash
 * @param {string} algo - Algorithm name from the allow-list
 * @returns {string} Lower-case hex digest
 */
func FileSum(path, algo string) (string, error) {
	sums, err := FileSums(path, []string{algo})
	if err != nil {
		return "", err
	}
	return sums[strings.ToLower(algo)], nil
}

/**
 * Compute several digests of a file in a single read
 * @param {string} path - File to hash
 * @param {[]string} algos - Algorithm names from the allow-list
 * @returns {map[string]string} Lower-case algorithm -> lower-case hex digest
 */
func FileSums(path string, algos []string) (map[string]string, error) {
	hashers := make(map[string]hash.Hash, len(algos))
	writers := make([]io.Writer, 0, len(algos))
	for _, algo := range algos {
		name := strings.ToLower(algo)
		newHash, ok := algorithms[name]
		if !ok {
			return nil, models.NewError(models.ErrUnsupportedHashAlgorithm, "'%s'", algo)
		}
		if _, dup := hashers[name]; dup {
			continue
		}
		h := newHash()
		hashers[name] = h
		writers = append(writers, h)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, models.WrapError(models.ErrOpenFile, err, "%s", path)
	}
	defer f.Close()

	if _, err := io.Copy(io.MultiWriter(writers...), f); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	sums := make(map[string]string, len(hashers))
	for name, h := range hashers {
		sums[name] = hex.EncodeToString(h.Sum(nil))
	}
	return sums, nil
}

/**
 * Verify a file against every expected digest
 * @param {string} path - File to verify
 * @param {map[string]string} expected - Algorithm -> hex digest, compared case-insensitively
 * @returns {error} nil when all digests match or none are expected
 * @description
 * - Unknown algorithm keys fail with ErrUnsupportedHashAlgorithm before the file is read
 * - The first mismatch (in algorithm name order) is reported as *MismatchError
 */
func VerifyFile(path string, expected map[string]string) error {
	if len(expected) == 0 {
		return nil
	}
	if err := Validate(expected); err != nil {
		return err
	}
	keys := sortedKeys(expected)
	sums, err := FileSums(path, keys)
	if err != nil {
		return err
	}
	for _, algo := range keys {
		want := strings.TrimSpace(expected[algo])
		got := sums[strings.ToLower(algo)]
		if !strings.EqualFold(want, got) {
			return &MismatchError{Path: path, Algorithm: strings.ToLower(algo), Expected: want, Actual: got}
		}
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
