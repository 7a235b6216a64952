package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"go-auth-service/internal/model"
	"go-auth-service/pkg/apierror"
)

func writeSuccess(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: true,
		Data:    data,
	})
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := &model.APIError{
		Code:    "INTERNAL_ERROR",
		Message: "Unexpected server error",
	}

	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		status = apiErr.HTTPStatus
		body.Code = apiErr.Code
		body.Message = apiErr.Message
		body.Details = apiErr.Details
	} else if errors.Is(err, model.ErrUserNotFound) || errors.Is(err, model.ErrRoleNotFound) {
		status = http.StatusBadRequest
		body.Code = "NOT_FOUND"
		body.Message = "Invalid User ID or Role"
	} else if errors.Is(err, model.ErrRoleAlreadyAssigned) {
		status = http.StatusBadRequest
		body.Code = "ALREADY_ASSIGNED"
		body.Message = "User is already assigned to this role"
	} else if errors.Is(err, model.ErrUnauthorized) {
		status = http.StatusUnauthorized
		body.Code = "UNAUTHORIZED"
		body.Message = "Authentication required"
	} else if errors.Is(err, model.ErrForbidden) {
		status = http.StatusForbidden
		body.Code = "FORBIDDEN"
		body.Message = "Access denied"
	} else if errors.Is(err, model.ErrInvalidInput) {
		status = http.StatusBadRequest
		body.Code = "BAD_REQUEST"
		body.Message = "Invalid input"
	} else {
		// Log unclassified errors so they are visible in container logs.
		slog.Error("unhandled error in writeError", "error", err.Error())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error:   body,
	})
}
