package httpx

import "net/http"

// Status codes the gallery handlers reply with.
const (
	StatusOK                 = http.StatusOK
	StatusCreated            = http.StatusCreated
	StatusNoContent          = http.StatusNoContent
	StatusBadRequest         = http.StatusBadRequest            // malformed upload or comment body
	StatusUnauthorized       = http.StatusUnauthorized          // token present but rejected
	StatusForbidden          = http.StatusForbidden             // caller lacks the route's role
	StatusNotFound           = http.StatusNotFound
	StatusPayloadTooLarge    = http.StatusRequestEntityTooLarge // body over the upload limit
	StatusInternalError      = http.StatusInternalServerError   // document, blob or cache failure
	StatusServiceUnavailable = http.StatusServiceUnavailable    // failed health check
)
