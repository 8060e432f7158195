// Package httputil holds the JSON response helpers the API handlers share:
// one envelope for successes, one for errors, with optional stable error
// codes for failures callers branch on.
package httputil
