// Package api defines the REST request and response types for the team and
// chat endpoints. Handlers live in the handlers subpackage.
package api
