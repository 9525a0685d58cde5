package oci

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/oracle/oci-go-sdk/v65/common"
)

var (
	// ErrRequestFailed marks every failed control-plane call: network, auth, not-found and
	// throttling failures alike. Inspect the wrapped *RequestError for the status.
	ErrRequestFailed = errors.New("oci: request failed")

	// ErrNotFound indicates that a required lookup produced no records. It is distinct from
	// ErrRequestFailed: the call succeeded but the answer was empty.
	ErrNotFound = errors.New("oci: not found")

	errMissingCompartmentID = errors.New("oci: compartment ID is required")
	errMissingTopologyID    = errors.New("oci: capacity topology ID is required")
	errMissingInstanceID    = errors.New("oci: instance OCID is required")
	errMissingImageID       = errors.New("oci: image OCID is required")
	errMissingShape         = errors.New("oci: shape name is required")
	errMissingNSGID         = errors.New("oci: network security group OCID is required")
	errMissingAnnouncement  = errors.New("oci: announcement ID is required")
	errMissingUserID        = errors.New("oci: user OCID is required")
	errMissingAD            = errors.New("oci: availability domain is required")
	errNilClient            = errors.New("oci: client receiver is nil")
)

// RequestError describes a failed API call.
type RequestError struct {
	Operation    string
	StatusCode   int
	Code         string
	OpcRequestID string
	Err          error
}

func (e *RequestError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %v", e.Operation, e.Err)
	}

	return fmt.Sprintf("%s: status %d (%s): %v", e.Operation, e.StatusCode, e.Code, e.Err)
}

// Unwrap exposes both the sentinel and the underlying SDK error.
func (e *RequestError) Unwrap() []error {
	return []error{ErrRequestFailed, e.Err}
}

// IsNotFound reports whether err is a failed request the service answered with 404.
func IsNotFound(err error) bool {
	return statusOf(err) == http.StatusNotFound
}

// IsThrottled reports whether err is a 429 answer. The client never retries on it.
func IsThrottled(err error) bool {
	return statusOf(err) == http.StatusTooManyRequests
}

// IsAuth reports whether err is an authentication or authorization failure.
func IsAuth(err error) bool {
	status := statusOf(err)

	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

func statusOf(err error) int {
	var requestErr *RequestError
	if errors.As(err, &requestErr) {
		return requestErr.StatusCode
	}

	return 0
}

func wrapRequestError(operation string, err error) error {
	if err == nil {
		return nil
	}

	requestErr := &RequestError{Operation: operation, Err: err}

	var serviceErr common.ServiceError
	if errors.As(err, &serviceErr) {
		requestErr.StatusCode = serviceErr.GetHTTPStatusCode()
		requestErr.Code = serviceErr.GetCode()
		requestErr.OpcRequestID = serviceErr.GetOpcRequestID()
	}

	return requestErr
}
