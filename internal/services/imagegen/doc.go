// Package imagegen fetches generated stills from a prompt-in-the-URL image
// endpoint. Each request is a GET with the path-escaped prompt and a
// deterministic seed, so rerunning a job asks for the same pictures. Tiny
// responses are treated as provider error pages, not images.
package imagegen
