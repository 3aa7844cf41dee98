// Package prompt parses the framed binary blobs used for canned voice
// prompts: a concatenation of records, each a fixed 16-byte header
// followed by one pre-encoded opus packet.
package prompt
