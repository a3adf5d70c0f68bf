package redisx

import "time"

const (
	// Upload session metadata: upload:{session_id}:meta -> {"total_chunks":3,"filename":"..."}
	KeyUploadMeta = "upload:%s:meta"

	// Received chunks: hash upload:{session_id}:chunks, field = chunk index
	KeyUploadChunks = "upload:%s:chunks"

	// Cached public JSON responses: page:{path}
	KeyPage = "page:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLUploadSession = 2 * time.Hour
	TTLPageCache     = 5 * time.Minute
	TTLDedup         = 48 * time.Hour
)
