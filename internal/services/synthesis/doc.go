// Package synthesis turns a script into narration audio. The script is
// split into sentences, packed into byte-limited chunks with markup
// headroom, optionally wrapped in SSML pacing for emotionally loaded
// sentences, and submitted to the provider strictly in order. Chunk
// audio is appended to a single file; any chunk failure aborts the stage
// with the failing index.
package synthesis
