// Package httpkit re-exports the platform http helpers for modules
// so they do not import internal/platform/net/http directly
package httpkit

import (
	"net/http"

	phttp "rollcall/internal/platform/net/http"
)

type (
	// Envelope is the transport envelope type
	Envelope = phttp.Envelope

	// Response is the HTTP response type
	Response = phttp.Response

	// Handler is the platform handler type
	Handler = phttp.Handler

	// Router is a re-export of the platform router seam
	Router = phttp.Router
)

// OK returns a 200 response
func OK(data any) Response { return phttp.OK(data) }

// Created returns a 201 response
func Created(data any) Response { return phttp.Created(data) }

// Accepted returns a 202 response
func Accepted(data any) Response { return phttp.Accepted(data) }

// NoContent returns a 204 response
func NoContent() Response { return phttp.NoContent() }

// Error returns a response that maps an error to status and envelope
func Error(err error) Response { return phttp.Error(err) }

// Param returns a path parameter
func Param(r *http.Request, key string) string { return phttp.URLParam(r, key) }

// RespondError writes err as an envelope, for handlers that write their own body
func RespondError(w http.ResponseWriter, r *http.Request, err error) { phttp.RespondError(w, r, err) }
