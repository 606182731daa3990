// Package services carries per-request identifiers on a context.
//
// The job session stamps the job id and stage, the story API client adds a
// request id, and the logging package copies all three onto log records.
package services
