package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"taskflow/internal/dto"

	"github.com/go-playground/validator/v10"
)

// Schema names.
const (
	AuthRegister     = "auth.register"
	AuthLogin        = "auth.login"
	UserUpdate       = "user.update"
	TaskCreate       = "task.create"
	TaskUpdate       = "task.update"
	TaskList         = "task.list"
	TaskSearch       = "task.search"
	ProjectCreate    = "project.create"
	ProjectMember    = "project.member"
	NotificationList = "notification.list"
)

// ErrUnknownSchema means the caller asked for a schema that was never registered.
var ErrUnknownSchema = errors.New("unknown schema")

// Defaulter is implemented by payloads that fill omitted fields after decoding.
type Defaulter interface {
	ApplyDefaults()
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error lists every violated constraint of a payload.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Details converts the field errors into response details.
func (e *Error) Details() []dto.FieldDetail {
	out := make([]dto.FieldDetail, len(e.Fields))
	for i, f := range e.Fields {
		out[i] = dto.FieldDetail{Field: f.Field, Message: f.Message}
	}
	return out
}

func bodyError(msg string) *Error {
	return &Error{Fields: []FieldError{{Field: "body", Message: msg}}}
}

type Options struct {
	PasswordMinLength int
	// Now is used by the notpast rule. Defaults to time.Now.
	Now func() time.Time
}

// Validator holds the named schemas. It is immutable after New.
type Validator struct {
	v           *validator.Validate
	schemas     map[string]reflect.Type
	passwordMin int
	now         func() time.Time
}

func New(opts Options) *Validator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.PasswordMinLength < 1 {
		opts.PasswordMinLength = 6
	}
	s := &Validator{
		v:           validator.New(),
		passwordMin: opts.PasswordMinLength,
		now:         opts.Now,
		schemas: map[string]reflect.Type{
			AuthRegister:     reflect.TypeOf(dto.RegisterRequest{}),
			AuthLogin:        reflect.TypeOf(dto.LoginRequest{}),
			UserUpdate:       reflect.TypeOf(dto.UpdateProfileRequest{}),
			TaskCreate:       reflect.TypeOf(dto.CreateTaskRequest{}),
			TaskUpdate:       reflect.TypeOf(dto.UpdateTaskRequest{}),
			TaskList:         reflect.TypeOf(dto.ListTasksQuery{}),
			TaskSearch:       reflect.TypeOf(dto.SearchTasksQuery{}),
			ProjectCreate:    reflect.TypeOf(dto.CreateProjectRequest{}),
			ProjectMember:    reflect.TypeOf(dto.AddMemberRequest{}),
			NotificationList: reflect.TypeOf(dto.ListNotificationsQuery{}),
		},
	}
	s.register()
	return s
}

func (s *Validator) register() {
	s.v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	s.v.RegisterCustomTypeFunc(func(f reflect.Value) any {
		if d, ok := f.Interface().(dto.Date); ok {
			return d.Time
		}
		return nil
	}, dto.Date{})

	// Errors are impossible here: tags are valid identifiers and funcs are non-nil.
	_ = s.v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = s.v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return len([]rune(fl.Field().String())) >= s.passwordMin
	})
	// bcrypt rejects input longer than 72 bytes; max counts runes.
	_ = s.v.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
		n, err := strconv.Atoi(fl.Param())
		return err == nil && len(fl.Field().String()) <= n
	})
	_ = s.v.RegisterValidation("notpast", func(fl validator.FieldLevel) bool {
		t, ok := fl.Field().Interface().(time.Time)
		if !ok {
			return false
		}
		if t.IsZero() {
			return true
		}
		now := s.now().UTC()
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		return !t.Before(today)
	})

	s.v.RegisterStructValidation(func(sl validator.StructLevel) {
		q := sl.Current().Interface().(dto.ListTasksQuery)
		if q.DueAfter != nil && q.DueBefore != nil && !q.DueAfter.IsZero() && !q.DueBefore.IsZero() &&
			q.DueAfter.After(q.DueBefore.Time) {
			sl.ReportError(q.DueAfter, "dueAfter", "DueAfter", "dueafter", "")
		}
	}, dto.ListTasksQuery{})
	s.v.RegisterStructValidation(func(sl validator.StructLevel) {
		if sl.Current().Interface().(dto.UpdateTaskRequest).Empty() {
			sl.ReportError(nil, "body", "Body", "atleastone", "")
		}
	}, dto.UpdateTaskRequest{})
	s.v.RegisterStructValidation(func(sl validator.StructLevel) {
		r := sl.Current().Interface().(dto.UpdateProfileRequest)
		if r.Name == nil && r.Email == nil {
			sl.ReportError(nil, "body", "Body", "atleastone", "")
		}
	}, dto.UpdateProfileRequest{})
}

// Has reports whether schema name is registered.
func (s *Validator) Has(name string) bool {
	_, ok := s.schemas[name]
	return ok
}

// Validate decodes raw into the DTO registered under name, applies coercions
// and defaults, and checks every rule. The returned value is the DTO struct
// (not a pointer). raw is never modified.
//
// Failures for malformed or rule-violating input are *Error; an unregistered
// name is ErrUnknownSchema.
func (s *Validator) Validate(name string, raw []byte) (any, error) {
	t, ok := s.schemas[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSchema, name)
	}

	ptr := reflect.New(t)
	if len(strings.TrimSpace(string(raw))) > 0 {
		if err := json.Unmarshal(raw, ptr.Interface()); err != nil {
			return nil, decodeError(err)
		}
	}
	if d, ok := ptr.Interface().(Defaulter); ok {
		d.ApplyDefaults()
	}

	if err := s.v.Struct(ptr.Interface()); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, fmt.Errorf("validate %s: %w", name, err)
		}
		out := &Error{Fields: make([]FieldError, 0, len(verrs))}
		for _, fe := range verrs {
			out.Fields = append(out.Fields, FieldError{Field: fieldPath(fe), Message: s.message(fe)})
		}
		return nil, out
	}
	return ptr.Elem().Interface(), nil
}

func decodeError(err error) *Error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		if typeErr.Field == "" {
			return bodyError("must be a JSON object")
		}
		return &Error{Fields: []FieldError{{Field: typeErr.Field, Message: typeMessage(typeErr.Type)}}}
	}
	return bodyError("must be valid JSON")
}

func typeMessage(t reflect.Type) string {
	switch {
	case dto.IsInt(t):
		return "must be a number"
	case dto.IsBool(t):
		return "must be a boolean"
	case dto.IsDate(t):
		return "must be a date (YYYY-MM-DD) or RFC3339 datetime"
	case t.Kind() == reflect.String:
		return "must be a string"
	default:
		return "has an invalid type"
	}
}

// fieldPath drops the root struct name from the namespace: "CreateTaskRequest.title" -> "title".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func (s *Validator) message(fe validator.FieldError) string {
	tag := fe.Tag()
	switch {
	case tag == "required":
		return "is required"
	case tag == "email":
		return "must be a valid email address"
	case strings.HasPrefix(tag, "uuid"):
		return "must be a valid UUID"
	case tag == "url":
		return "must be a valid URL"
	case tag == "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case tag == "min":
		if fe.Kind() == reflect.String {
			return "must be at least " + fe.Param() + " characters"
		}
		return "must be at least " + fe.Param()
	case tag == "max":
		if fe.Kind() == reflect.String {
			return "must be at most " + fe.Param() + " characters"
		}
		return "must be at most " + fe.Param()
	case tag == "maxbytes":
		return "must be at most " + fe.Param() + " bytes"
	case tag == "notblank":
		return "must not be blank"
	case tag == "password":
		return fmt.Sprintf("must be at least %d characters", s.passwordMin)
	case tag == "notpast":
		return "must not be in the past"
	case tag == "dueafter":
		return "must not be after dueBefore"
	case tag == "atleastone":
		return "at least one field must be provided"
	default:
		return "is invalid"
	}
}
