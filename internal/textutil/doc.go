// Package textutil provides the text primitives behind narration
// synthesis: sentence splitting on terminal punctuation and greedy
// byte-limit chunk packing. Both operations partition their input into
// exact substrings, so concatenating the output in order reproduces the
// input byte for byte.
package textutil
