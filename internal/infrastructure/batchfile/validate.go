package batchfile

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/erp/directdebit/internal/domain/directdebit"
	"github.com/go-playground/validator/v10"
)

// FieldError is one invalid field of a batch file
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) String() string {
	return e.Field + ": " + e.Message
}

// ValidationError lists every invalid field of a batch file
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.String())
	}
	return "invalid batch file: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, format string, args ...any) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// engine returns the shared validator, reporting yaml field names
func engine() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks the struct tags and the cross references of a batch
func Validate(f *File) error {
	verr := &ValidationError{}

	if err := engine().Struct(f); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, fe := range fieldErrs {
			verr.add(fieldPath(fe), "%s", message(fe))
		}
	}

	if f.Order.Flavor != "" {
		if _, err := directdebit.ParseFlavor(f.Order.Flavor); err != nil {
			verr.add("order.flavor", "%s", err.Error())
		}
	}
	if f.Order.DatePreference == string(directdebit.DatePreferenceFixed) && f.Order.ScheduledDate.Ptr() == nil {
		verr.add("order.scheduled_date", "Required when date_preference is fixed")
	}

	known := make(map[string]bool, len(f.Mandates))
	for _, m := range f.Mandates {
		known[m.Reference] = true
	}
	for i, l := range f.Lines {
		if !l.Amount.IsPositive() {
			verr.add(fmt.Sprintf("lines[%d].amount", i), "Must be greater than 0")
		}
		if l.Mandate != "" && !known[l.Mandate] {
			verr.add(fmt.Sprintf("lines[%d].mandate", i), "Unknown mandate %q", l.Mandate)
		}
	}

	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

// fieldPath drops the root struct name from the namespace
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "min":
		if fe.Kind() == reflect.String {
			return "Must be at least " + fe.Param() + " characters"
		}
		return "Must contain at least " + fe.Param() + " entries"
	case "max":
		return "Must be at most " + fe.Param() + " characters"
	case "len":
		return "Must be exactly " + fe.Param() + " characters"
	case "oneof":
		return "Must be one of: " + fe.Param()
	case "uuid":
		return "Invalid UUID format"
	case "unique":
		return "Duplicate " + strings.ToLower(fe.Param())
	default:
		return "Invalid value"
	}
}
