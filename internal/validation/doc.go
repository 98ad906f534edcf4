// Package validation gates rendered output before publish. It checks
// metadata floors from an ffprobe report and then proves the file
// decodes by running the leading seconds through the encoder's null
// sink; plausible metadata on an undecodable file must not reach upload.
package validation
