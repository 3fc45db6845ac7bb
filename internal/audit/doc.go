// Package audit implements the asynchronous audit event pipeline: a bounded
// dispatcher that forwards flow outcomes to a pluggable sink without ever
// blocking the authentication path.
package audit
