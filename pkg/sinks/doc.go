// Package sinks provides the collaborators resolution actions are executed
// against.
//
// Log writes every action to the structured log and always succeeds. It is
// meant for development and demos. Webhook posts actions as JSON to an HTTP
// service that owns payments, bookings, notifications and ticketing.
package sinks
