package snapshots

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/go-go-golems/deskhand/pkg/conversation"
)

// MessageHashAlgorithmV1 identifies the canonical hash material/version.
//
// The canonical material is JSON over author type, author name, timestamp and
// text, each trimmed.
const MessageHashAlgorithmV1 = "sha256-canonical-json-v1"

type canonicalMessageMaterial struct {
	AuthorType string `json:"author_type"`
	AuthorName string `json:"author_name"`
	Timestamp  string `json:"timestamp"`
	Text       string `json:"text"`
}

// CanonicalMessageJSON returns the canonical JSON bytes used for message hashing.
func CanonicalMessageJSON(m conversation.Message) ([]byte, error) {
	return json.Marshal(canonicalMessageMaterial{
		AuthorType: strings.TrimSpace(string(m.AuthorType)),
		AuthorName: strings.TrimSpace(m.AuthorName),
		Timestamp:  strings.TrimSpace(m.Timestamp),
		Text:       strings.TrimSpace(m.Text),
	})
}

// ComputeMessageHash computes the lowercase-hex SHA-256 over the canonical
// message material. A message seen again in a later pass hashes the same and
// is stored once.
func ComputeMessageHash(m conversation.Message) (string, error) {
	b, err := CanonicalMessageJSON(m)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
