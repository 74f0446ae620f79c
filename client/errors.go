package client

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Code extracts the gRPC status code from an error returned by any
// client call. Errors that never crossed the wire report codes.Unknown.
func Code(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	if st, ok := status.FromError(err); ok {
		return st.Code()
	}
	return codes.Unknown
}

// IsNotFound reports whether the server could not resolve the named
// resource.
func IsNotFound(err error) bool {
	return Code(err) == codes.NotFound
}

// IsInvalidArgument reports whether the request was rejected before
// running, including ambiguous resource references.
func IsInvalidArgument(err error) bool {
	return Code(err) == codes.InvalidArgument
}

// IsSchemaUnavailable reports whether the workflow needed a declared
// layout the capture does not carry.
func IsSchemaUnavailable(err error) bool {
	return Code(err) == codes.FailedPrecondition
}

// IsInsufficientData reports whether recorded contents were too short
// for the requested decode.
func IsInsufficientData(err error) bool {
	return Code(err) == codes.OutOfRange
}
