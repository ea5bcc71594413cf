// package server contains the HTTP surface over the library: auth routes
// with the session cookie, library and telemetry routes, and the media
// handlers that serve album audio with byte-range support or redirect to
// cloud storage.
package server
