package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"acorn/internal/constants"
)

var (
	errBodyTooLarge  = errors.New("request body too large")
	errNotMultipart  = errors.New("expected a multipart/form-data body")
	fileHeaderType   = reflect.TypeOf((*multipart.FileHeader)(nil))
	requestValidator = newRequestValidator()
)

func newRequestValidator() *validator.Validate {
	v := validator.New()
	// Report wire names (json or form tag) in validation messages.
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name, _, _ := strings.Cut(field.Tag.Get(tag), ",")
			if name != "" && name != "-" {
				return name
			}
		}
		return field.Name
	})
	return v
}

func decodeAndValidate(body io.Reader, dst any) error {
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return errBodyTooLarge
		}
		return fmt.Errorf("invalid JSON body")
	}

	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid JSON body")
	}

	return validateStruct(dst)
}

// parseMultipart reads the multipart body once; later calls reuse r.MultipartForm.
func parseMultipart(r *http.Request) error {
	if r.MultipartForm != nil {
		return nil
	}
	if err := r.ParseMultipartForm(constants.MultipartMemoryBytes); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return errBodyTooLarge
		case errors.Is(err, http.ErrNotMultipart), errors.Is(err, http.ErrMissingBoundary):
			return errNotMultipart
		}
		return fmt.Errorf("invalid multipart body")
	}
	return nil
}

// decodeMultipart fills dst from the parsed multipart form using `form` tags
// and validates it. Supported field types are string, *string (nil when the
// part is absent) and *multipart.FileHeader.
func decodeMultipart(r *http.Request, dst any) error {
	if err := parseMultipart(r); err != nil {
		return err
	}

	v := reflect.ValueOf(dst).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		name := field.Tag.Get("form")
		if name == "" {
			continue
		}

		values, hasValue := r.MultipartForm.Value[name]
		switch {
		case field.Type.Kind() == reflect.String:
			if hasValue && len(values) > 0 {
				v.Field(i).SetString(values[0])
			}
		case field.Type == reflect.TypeOf((*string)(nil)):
			if hasValue && len(values) > 0 {
				s := values[0]
				v.Field(i).Set(reflect.ValueOf(&s))
			}
		case field.Type == fileHeaderType:
			if files := r.MultipartForm.File[name]; len(files) > 0 {
				v.Field(i).Set(reflect.ValueOf(files[0]))
			} else if hasValue {
				return fmt.Errorf("%s must be a file", name)
			}
		default:
			return fmt.Errorf("unsupported form field type %s", field.Type)
		}
	}

	return validateStruct(dst)
}

func validateStruct(dst any) error {
	if err := requestValidator.Struct(dst); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			first := validationErrors[0]
			field := first.Field()
			switch first.Tag() {
			case "required":
				return fmt.Errorf("%s is required", field)
			case "max":
				return fmt.Errorf("%s is too long", field)
			case "uuid":
				return fmt.Errorf("%s must be a UUID", field)
			default:
				return fmt.Errorf("invalid %s", field)
			}
		}

		return fmt.Errorf("invalid request payload")
	}

	return nil
}

// writeDecodeError maps a decode failure onto 400 or 413.
func writeDecodeError(w http.ResponseWriter, err error) {
	if errors.Is(err, errBodyTooLarge) {
		payloadTooLarge(w, "Request body too large")
		return
	}
	badRequest(w, err.Error())
}
