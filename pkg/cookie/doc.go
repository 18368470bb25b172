// Package cookie is the boundary between the application and the
// browser-held session identifier.
//
// It offers three ways to reach the identity cookie:
//
//   - Manager writes and deletes cookies on the response and reads them
//     synchronously from inbound request headers. This is the fast,
//     server-side path and the source of truth once a request carries
//     the Cookie header.
//
//   - ParseHeader and FromHeader parse a raw Cookie header value without
//     an *http.Request. Malformed entries are skipped, never errors.
//
//   - Await masks the cold-start window of client-rendered cookie
//     components: such components set cookies asynchronously, so a read
//     immediately after process start may observe nothing even though
//     the browser holds a value. Await polls a Source a fixed number of
//     times with a short fixed sleep and then gives up, letting the
//     caller proceed as anonymous. It is a start-up shim, not a general
//     retry mechanism.
//
// Absence of a cookie is reported as ErrCookieNotFound (or a false ok
// flag), never as a failure the caller must handle differently from
// "not logged in".
package cookie
