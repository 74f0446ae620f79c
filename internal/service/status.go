package service

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/framesift/framesift/internal/errors"
)

// ToGRPCStatus converts a domain error into a gRPC status error so Flight
// clients see specific codes instead of a blanket Internal.
func ToGRPCStatus(err error) error {
	if err == nil {
		return nil
	}

	// Already a gRPC status error.
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.IsResourceNotFound(err):
		return status.Error(codes.NotFound, err.Error())
	case errors.IsAmbiguousResource(err):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.IsSchemaUnavailable(err):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.IsInsufficientData(err):
		return status.Error(codes.OutOfRange, err.Error())
	}

	var se *errors.StructuredError
	if errors.As(err, &se) {
		switch se.Type {
		case errors.ErrorTypeValidation:
			return status.Error(codes.InvalidArgument, err.Error())
		case errors.ErrorTypeReplay:
			return status.Error(codes.Unavailable, err.Error())
		case errors.ErrorTypeConfiguration:
			return status.Error(codes.FailedPrecondition, err.Error())
		}
	}

	return status.Error(codes.Internal, err.Error())
}
