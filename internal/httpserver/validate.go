package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// maxBodyBytes caps request bodies; task submissions are a few hundred bytes.
const maxBodyBytes = 1 << 20

// validate reports struct fields by their json tag so validation details
// line up with what the client actually sent.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationFailure is the 422 envelope: one message per offending field,
// keyed by its json path ("images[0].tag").
type validationFailure struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Details map[string]string `json:"details"`
}

// BindJSON decodes the request body into dst and validates it against dst's
// struct tags. On failure it writes the error response (400 for undecodable
// bodies, 422 for schema violations) and returns false.
func BindJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeBody(r, dst); err != nil {
		Error(w, http.StatusBadRequest, "bad_request", err.Error())
		return false
	}

	if details := check(dst); len(details) > 0 {
		JSON(w, http.StatusUnprocessableEntity, validationFailure{
			Error:   "validation_error",
			Message: "request body failed schema validation",
			Details: details,
		})
		return false
	}

	return true
}

// decodeBody reads one JSON value into dst, rejecting unknown fields,
// oversized bodies and trailing garbage.
func decodeBody(r *http.Request, dst any) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	defer body.Close()

	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	var tooLarge *http.MaxBytesError
	switch err := dec.Decode(dst); {
	case err == nil:
	case errors.Is(err, io.EOF):
		return errors.New("empty request body")
	case errors.As(err, &tooLarge):
		return fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
	default:
		return fmt.Errorf("malformed JSON: %w", err)
	}

	if dec.More() {
		return errors.New("unexpected data after the JSON body")
	}
	return nil
}

// check returns a field→problem map for an invalid struct, nil when valid.
func check(v any) map[string]string {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var invalid validator.ValidationErrors
	if !errors.As(err, &invalid) {
		return map[string]string{"body": err.Error()}
	}

	details := make(map[string]string, len(invalid))
	for _, fe := range invalid {
		details[fieldPath(fe)] = problem(fe)
	}
	return details
}

// fieldPath strips the root struct name from the validator's namespace,
// leaving the json path into the request body.
func fieldPath(fe validator.FieldError) string {
	_, path, found := strings.Cut(fe.Namespace(), ".")
	if !found {
		return fe.Field()
	}
	return path
}

// problem phrases a constraint violation for the client.
func problem(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("needs at least %s entries", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		return fmt.Sprintf("does not satisfy the %q constraint", fe.Tag())
	}
}
