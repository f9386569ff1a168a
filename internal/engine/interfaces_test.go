package engine_test

import (
	"fieldsync/internal/engine"
	"fieldsync/internal/media"
)

// Blob stores satisfy engine.BlobStore structurally; pin that here since
// the media package cannot import engine.
var (
	_ engine.BlobStore = (*media.FileSystemBlobStore)(nil)
	_ engine.BlobStore = (*media.MemoryBlobStore)(nil)
)
