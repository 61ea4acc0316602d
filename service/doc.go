// Package service holds the domain services of the storefront.
//
// Every mutation runs in one unit of work and reports its outcome as a
// Result: expected failures (validation, missing rows, persistence
// conflicts, rejected images, identity rules) come back as Result errors
// after the unit of work rolled back, while unexpected failures are returned
// as error. Deleting a category or a user is followed by a product cascade
// that reports, but never undoes, its own failures.
package service
