package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message,omitempty"`
}

const invalidBody = "Invalid request body"

var fieldNamesOnce sync.Once

// useJSONFieldNames makes the binding validator report fields by their json
// name, which is also the form name on every request type. It must run before
// the first struct is validated: the validator caches names per type.
func useJSONFieldNames() {
	fieldNamesOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}

		v.RegisterTagNameFunc(func(sf reflect.StructField) string {
			name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")

			switch name {
			case "-":
				return ""
			case "":
				return sf.Name
			}
			return name
		})
	})
}

func BindJSON(ctx *gin.Context, out any) bool {
	useJSONFieldNames()
	return bind(ctx, ctx.ShouldBindJSON(out))
}

// BindForm binds urlencoded or multipart fields using the form tags.
func BindForm(ctx *gin.Context, out any) bool {
	useJSONFieldNames()
	return bind(ctx, ctx.ShouldBind(out))
}

func bind(ctx *gin.Context, err error) bool {
	if err == nil {
		return true
	}

	message, details := parseBindError(err)
	RespondValidation(ctx, message, details)

	return false
}

// parseBindError returns the client message (every field message joined with
// ", ") and structured details.
func parseBindError(err error) (string, any) {
	var validationErrs validator.ValidationErrors

	if errors.As(err, &validationErrs) {
		fields := make([]FieldError, 0, len(validationErrs))
		messages := make([]string, 0, len(validationErrs))

		for _, fe := range validationErrs {
			msg := validationMessage(fe.Field(), fe.Tag(), fe.Param())

			fields = append(fields, FieldError{
				Field:   fe.Field(),
				Rule:    fe.Tag(),
				Param:   fe.Param(),
				Message: msg,
			})
			messages = append(messages, msg)
		}
		return strings.Join(messages, ", "), gin.H{"fields": fields}
	}

	var syntaxErr *json.SyntaxError

	if errors.As(err, &syntaxErr) {
		return invalidBody, gin.H{"json": "invalid_json_syntax"}
	}

	// Field is already the json path, e.g. "otp"
	var typeErr *json.UnmarshalTypeError

	if errors.As(err, &typeErr) {
		field := strings.TrimSpace(typeErr.Field)
		msg := fmt.Sprintf("%s must be a %s", fieldLabel(field), typeErr.Type.String())

		return msg, gin.H{
			"json":  "invalid_json_type",
			"field": field,
			"fields": []FieldError{
				{Field: field, Rule: "type", Message: msg},
			},
		}
	}

	if errors.Is(err, io.EOF) {
		return invalidBody, gin.H{"json": "empty_body"}
	}

	return invalidBody, gin.H{"reason": err.Error()}
}

var fieldLabels = map[string]string{
	"email":        "Email",
	"password":     "Password",
	"newPassword":  "New password",
	"fullName":     "Full name",
	"otp":          "OTP",
	"refreshToken": "Refresh token",
}

func fieldLabel(field string) string {
	if l, ok := fieldLabels[field]; ok {
		return l
	}
	return field
}

func validationMessage(field, rule, param string) string {
	label := fieldLabel(field)

	switch rule {
	case "required":
		return label + " is required"
	case "email":
		return "Invalid email address"
	case "min":
		return label + " must be at least " + param + " characters"
	case "max":
		return label + " must be at most " + param + " characters"
	case "len":
		if field == "otp" {
			return label + " must be " + param + " digits"
		}
		return label + " must be exactly " + param + " characters"
	default:
		if param != "" {
			return fmt.Sprintf("%s failed %s validation (%s)", label, rule, param)
		}
		return label + " failed " + rule + " validation"
	}
}
