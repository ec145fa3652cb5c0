package object

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"path"
	"strings"
)

// ownerDirLen keeps key prefixes short while staying collision-safe for a
// directory of institution users.
const ownerDirLen = 32

var errInvalidFileName = errors.New("invalid file name")

// BuildKey returns the storage key for a submission's workbook:
// submissions/<owner hash>/<submission id>/<file name>.
func BuildKey(ownerID, submissionID, fileName string) (string, error) {
	name, err := sanitizeFileName(fileName)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(submissionID) == "" || strings.ContainsAny(submissionID, `/\`) {
		return "", errors.New("invalid submission id")
	}
	return path.Join("submissions", ownerDir(ownerID), submissionID, name), nil
}

// ownerDir turns an owner id such as "google:1234" into a stable path segment.
func ownerDir(ownerID string) string {
	sum := sha256.Sum256([]byte(ownerID))
	return hex.EncodeToString(sum[:])[:ownerDirLen]
}

// sanitizeFileName flattens path separators and drops control characters.
// Names containing ".." are rejected outright.
func sanitizeFileName(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", errInvalidFileName
	}
	s := strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\':
			return '_'
		case r < 0x20 || r == 0x7f:
			return -1
		}
		return r
	}, strings.TrimSpace(name))
	if s == "" {
		return "", errInvalidFileName
	}
	return s, nil
}
