// Package services holds the relay core: the Room Manager, the Relay
// Dispatcher and the Request Lifecycle Controller. This file centralizes the
// service-level error values returned by them so callers can map them to
// HTTP statuses or user-visible replies with errors.Is.
package services

import "errors"

var (
	// ErrRequestNotFound indicates that the referenced request does not exist.
	ErrRequestNotFound = errors.New("request not found")

	// ErrRoomNotFound indicates that the request has no room.
	ErrRoomNotFound = errors.New("room not found")

	// ErrRoomClosed is returned when joining a room that was closed.
	ErrRoomClosed = errors.New("room closed")

	// ErrNotParticipant is returned when the acting identity is not the
	// request's client or performer, or not the side allowed to act.
	ErrNotParticipant = errors.New("not a participant")

	// ErrAlreadyProcessed is returned when the request's status no longer
	// allows the action (double accept, reject after accept, and so on).
	ErrAlreadyProcessed = errors.New("already processed")

	// ErrInvalidInput is returned for malformed arguments.
	ErrInvalidInput = errors.New("invalid input")
)
