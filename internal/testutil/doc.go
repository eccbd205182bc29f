// Package testutil contains helper builders and stub collaborators used
// across tests to reduce boilerplate when constructing thread state and
// faking capability services. They are not intended for production usage.
package testutil
