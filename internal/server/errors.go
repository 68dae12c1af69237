package server

import (
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/alfredjeanlab/callsheet/internal/api"
	"github.com/alfredjeanlab/callsheet/internal/dispatch"
	"github.com/alfredjeanlab/callsheet/internal/sheet"
)

// inputError indicates invalid request input.
// Transport layers map this to 400 / InvalidArgument.
type inputError string

func (e inputError) Error() string { return string(e) }

// httpStatus maps an operation error to its HTTP status code.
func httpStatus(err error) int {
	var ie inputError
	var te *sheet.TransportError
	switch {
	case errors.Is(err, dispatch.ErrNoTickets):
		return http.StatusNotFound
	case errors.Is(err, dispatch.ErrInvalidOutcome),
		errors.Is(err, dispatch.ErrInvalidArgument),
		errors.As(err, &ie):
		return http.StatusBadRequest
	case errors.Is(err, dispatch.ErrNotHeld):
		return http.StatusConflict
	case errors.As(err, &te):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// grpcCode maps an operation error to its gRPC status code.
func grpcCode(err error) codes.Code {
	switch httpStatus(err) {
	case http.StatusNotFound:
		return codes.NotFound
	case http.StatusBadRequest:
		return codes.InvalidArgument
	case http.StatusConflict:
		return codes.FailedPrecondition
	case http.StatusBadGateway:
		return codes.Unavailable
	}
	return codes.Internal
}

// errorBody builds the JSON error envelope for err.
func errorBody(err error) api.ErrorBody {
	return api.ErrorBody{Error: err.Error(), Contended: dispatch.Contended(err)}
}

// grpcError converts an operation error to a gRPC status. A NoTickets error
// carries its contended list as a Struct detail.
func grpcError(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	st := status.New(grpcCode(err), err.Error())
	if contended := dispatch.Contended(err); len(contended) > 0 {
		detail, cerr := api.ToStruct(api.ErrorBody{Error: err.Error(), Contended: contended})
		if cerr == nil {
			if withDetail, derr := st.WithDetails(detail); derr == nil {
				st = withDetail
			}
		}
	}
	return st.Err()
}
