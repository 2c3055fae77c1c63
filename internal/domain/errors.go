// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates the entity already exists.
var ErrConflict = errors.New("conflict: resource already exists")

// ErrInvalidState indicates an operation was attempted against an entity
// whose lifecycle state does not permit it. It signals a coordination bug in
// the caller, never an expected runtime condition.
var ErrInvalidState = errors.New("invalid state")

// ErrUnassignable indicates no idle agent with the required capability was
// available. The task stays pending and may be dispatched again later.
var ErrUnassignable = errors.New("no capable agent available")

// ErrValidation indicates a request payload failed validation.
var ErrValidation = errors.New("validation failed")
