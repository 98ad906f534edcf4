// Package scriptanalysis extracts a storyboard from a narration script.
//
// The client talks to an OpenAI-compatible chat-completions endpoint with a
// JSON response format and turns the reply into a Plan: an ordered list of
// scene image prompts with duration hints, plus a video title and a
// thumbnail prompt. The reply is consumed opaquely; anything the model
// returns that cannot be parsed into a Plan is treated as a provider
// rejection, never retried.
//
// Retries for transient backend failures happen at the pipeline layer, so
// Analyze performs exactly one request per call.
package scriptanalysis
