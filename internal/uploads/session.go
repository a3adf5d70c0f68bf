package uploads

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidChunk    = errors.New("invalid chunk")
	ErrChunkOutOfRange = errors.New("chunk index out of range")
	ErrTotalMismatch   = errors.New("total chunks mismatch")
	ErrSessionUnknown  = errors.New("unknown upload session")
	ErrAssembly        = errors.New("assemble upload")
)

// Meta is fixed when the session is created; metadata sent with later chunks is ignored.
type Meta struct {
	TotalChunks int       `json:"total_chunks"`
	Filename    string    `json:"filename,omitempty"`
	Title       string    `json:"title,omitempty"`
	Subtitle    string    `json:"subtitle,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// SessionStore keeps partially received uploads. Implementations must make each slot write
// atomic and expire sessions that stop receiving chunks.
type SessionStore interface {
	// Put writes chunk data into slot index, creating the session from meta when it does not
	// exist yet (meta.TotalChunks > 0 required for that). It returns the stored metadata and
	// the number of populated slots after the write.
	Put(ctx context.Context, sessionID string, meta Meta, index int, data string) (Meta, int, error)
	// Take removes the session and returns its metadata and slots in index order. Only one
	// caller can take a given session; the others get ErrSessionUnknown.
	Take(ctx context.Context, sessionID string) (Meta, []string, error)
}

// checkChunk validates an incoming chunk against the stored session. total is the value the
// client sent (0 when omitted).
func checkChunk(stored Meta, total, index int) error {
	if total > 0 && total != stored.TotalChunks {
		return ErrTotalMismatch
	}
	if index < 0 || index >= stored.TotalChunks {
		return ErrChunkOutOfRange
	}
	return nil
}
