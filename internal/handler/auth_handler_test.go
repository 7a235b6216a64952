package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"go-auth-service/internal/model"
	"go-auth-service/pkg/apierror"
)

func validPayload() model.RegisterRequest {
	return model.RegisterRequest{
		FirstName: "Alice",
		LastName:  "Smith",
		Username:  "alice",
		Email:     "alice@x.com",
		Password:  "pw123456",
	}
}

func TestValidateRegisterAcceptsValidPayload(t *testing.T) {
	require.NoError(t, validateRegister(validPayload()))
}

func TestValidateRegisterRequiredFields(t *testing.T) {
	for name, mutate := range map[string]func(*model.RegisterRequest){
		"first_name": func(p *model.RegisterRequest) { p.FirstName = " " },
		"last_name":  func(p *model.RegisterRequest) { p.LastName = "" },
		"username":   func(p *model.RegisterRequest) { p.Username = "" },
		"email":      func(p *model.RegisterRequest) { p.Email = "" },
	} {
		payload := validPayload()
		mutate(&payload)

		err := validateRegister(payload)
		require.Error(t, err, name)

		var apiErr *apierror.APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, http.StatusBadRequest, apiErr.HTTPStatus)
		require.Equal(t, "VALIDATION_FAILURE", apiErr.Code)
	}
}

func TestValidateRegisterFieldBounds(t *testing.T) {
	long := make([]byte, 51)
	for i := range long {
		long[i] = 'a'
	}

	payload := validPayload()
	payload.Username = string(long)
	require.Error(t, validateRegister(payload))

	payload = validPayload()
	payload.Password = "pw12"
	require.Error(t, validateRegister(payload))

	payload = validPayload()
	payload.Password = string(make([]byte, 101))
	require.Error(t, validateRegister(payload))
}

func TestValidateRegisterEmailSyntax(t *testing.T) {
	for _, email := range []string{"not-an-email", "a@", "@x.com", "alice smith@x.com"} {
		payload := validPayload()
		payload.Email = email
		require.Error(t, validateRegister(payload), email)
	}
}
