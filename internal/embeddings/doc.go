// Package embeddings turns text into vectors for snippet indexing and confidence scoring.
//
// Two providers are supported: a Text Embeddings Inference (TEI) HTTP service and local
// FastEmbed ONNX models. FastEmbed needs cgo; builds without it get a stub that reports
// ErrFastEmbedNotAvailable.
package embeddings
