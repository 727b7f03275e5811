// internal/entry/types.go
package entry

import (
	"time"

	"grove/shared/utils"
)

// CommitRecordName is the reserved bookkeeping key written on every commit.
// It is excluded from all key enumeration but, like any other record, stays
// reachable through historical version queries.
const CommitRecordName = ".grove/commit"

// Record is the value stored against a file name in one snapshot. A record
// with Deleted set is a tombstone: the key was removed, which is distinct
// from the key never having existed.
type Record struct {
	Name        string    `json:"name"`
	Content     []byte    `json:"content"`
	Author      string    `json:"author"`
	CreatedAt   time.Time `json:"created_at"`
	Fingerprint string    `json:"fingerprint"`
	Deleted     bool      `json:"deleted,omitempty"`
}

// NewRecord builds a live record for name, fingerprinting content so changes
// can be detected later without comparing payloads.
func NewRecord(name string, content []byte, author string) *Record {
	if content == nil {
		content = []byte{}
	}
	return &Record{
		Name:        name,
		Content:     content,
		Author:      author,
		CreatedAt:   time.Now(),
		Fingerprint: utils.HashContent(content),
	}
}

// NewTombstone builds a deletion marker for name.
func NewTombstone(name, author string) *Record {
	return &Record{
		Name:        name,
		Author:      author,
		CreatedAt:   time.Now(),
		Fingerprint: utils.HashContent(nil),
		Deleted:     true,
	}
}
