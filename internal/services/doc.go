// Package services implements [APIService], the HTTP client for the license-entry backend.
//
// # Endpoints
//
//   - GET /get-token : issues the primary and secondary tokens
//   - POST /create-licence-entry : submits an entry and streams progress frames back
//   - GET / : liveness, used by `auth status`
//
// # Error Handling
//
// Failures are reported with typed errors from the shared package:
//   - [shared.TokenAcquisitionError] : /get-token failed, returned a non-200, or omitted a token
//   - [shared.RequestSubmissionError] : /create-licence-entry failed before streaming began
//   - [shared.ErrServiceUnavailable] : the health check failed
//
// The create-entry body is handed back unread; decoding it is the job of the stream package.
package services
