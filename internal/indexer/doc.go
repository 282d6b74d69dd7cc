// Package indexer keeps the embedding store in step with the corpus.
//
// Only files whose content hash changed since the last run are re-embedded. Passage
// extraction runs for several files at once; embedding and storage run one file at a
// time, and every outbound embedding request waits on a rate limiter.
package indexer
