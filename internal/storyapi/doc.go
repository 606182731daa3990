// Package storyapi is the HTTP client for the story generation service.
//
// Client implements jobs.API and adds the history, delete and download
// endpoints used by the CLI. Every request carries an X-Request-ID taken from
// the context (or freshly generated) and, when configured, a bearer token.
// Non-2xx responses become *APIError with the service's detail text.
package storyapi
