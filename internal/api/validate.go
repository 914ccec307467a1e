package api

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// newValidator builds a validator that reports fields by their JSON
// names so error details line up with request bodies.
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

// chatRequest is the POST /api/chat body. The conversation id is
// optional; a malformed value falls back to creating a fresh
// conversation rather than failing the request.
type chatRequest struct {
	Messages       []chatMessage `json:"messages" validate:"required,min=1,dive"`
	ConversationID string        `json:"conversationId"`
}

type chatMessage struct {
	Role  string     `json:"role" validate:"required,oneof=user assistant system"`
	Parts []chatPart `json:"parts" validate:"required,min=1,dive"`
}

// chatPart mirrors the widget's free-form part records; only text parts
// contribute to the transcript, the rest pass through unvalidated.
type chatPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// createEntryRequest is the POST /api/knowledge body.
type createEntryRequest struct {
	Title   string `json:"title" validate:"required,max=200"`
	Content string `json:"content" validate:"required"`
}

// updateEntryRequest is the PATCH /api/knowledge/{id} body. Omitted
// fields keep their stored values.
type updateEntryRequest struct {
	Title   *string `json:"title" validate:"omitempty,min=1,max=200"`
	Content *string `json:"content" validate:"omitempty,min=1"`
}

// validateStruct runs validator tags and flattens failures into a
// field-to-message map suitable for a 400 response body.
func validateStruct(v any) (map[string]string, error) {
	err := validate.Struct(v)
	if err == nil {
		return nil, nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, err
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fieldPath(fe)] = fieldMessage(fe)
	}
	return fields, nil
}

// fieldPath strips the top-level struct name from the namespace,
// leaving the JSON path of the failing field.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok && rest != "" {
		return rest
	}
	return fe.Field()
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must not be shorter than %s", fe.Param())
	case "max":
		return fmt.Sprintf("must not be longer than %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
