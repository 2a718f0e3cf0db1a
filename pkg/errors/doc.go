// Package errors provides structured error handling for simple-rbac.
//
// Every failure the authorization core reports falls into one of five
// kinds, each with a stable machine-readable code and an HTTP status hint
// so host applications can translate failures without string matching:
//
//   - NOT_EXIST        referenced tenant/role/permission/assignment absent (404)
//   - ALREADY_EXIST    duplicate create where uniqueness is enforced (409)
//   - FORBIDDEN        operation disallowed by current state (403)
//   - VALIDATION_ERROR malformed input (400)
//   - FATAL            unexpected adapter failure, wrapped not leaked (500)
//
// # Basic Usage
//
//	import "github.com/tendant/simple-rbac/pkg/errors"
//
//	// Create an error with a code
//	err := errors.NotExist("tenant", slug)
//	err := errors.AlreadyExists("role", title)
//	err := errors.Forbidden("inactive tenant cannot be deleted")
//
//	// Wrap an adapter failure
//	err := errors.Fatal(adapterErr, "failed to query roles")
//
// # Inspection
//
//	if errors.IsCode(err, errors.ErrCodeNotExist) {
//		// treat as absence
//	}
//	status := errors.GetCode(err) // stable code for API responses
//
// Errors support errors.Is / errors.As through Unwrap, so wrapped adapter
// errors remain inspectable by the host.
package errors
