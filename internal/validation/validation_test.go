package validation

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"taskflow/internal/dto"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

var fixedNow = time.Date(2026, 5, 10, 15, 0, 0, 0, time.UTC)

func newValidator() *Validator {
	return New(Options{PasswordMinLength: 8, Now: func() time.Time { return fixedNow }})
}

// fields runs Validate, expects *Error and returns field -> message.
func fields(t *testing.T, v *Validator, schema, raw string) map[string]string {
	t.Helper()
	_, err := v.Validate(schema, []byte(raw))
	require.Error(t, err)
	var verr *Error
	require.True(t, errors.As(err, &verr), "want *Error, got %T: %v", err, err)
	out := make(map[string]string, len(verr.Fields))
	for _, f := range verr.Fields {
		out[f.Field] = f.Message
	}
	return out
}

func TestValidate_RegisterOK(t *testing.T) {
	t.Parallel()
	v := newValidator()

	got, err := v.Validate(AuthRegister, []byte(`{"email":"a@b.io","password":"longenough","name":"Ann","extra":1}`))
	require.NoError(t, err)
	req, ok := got.(dto.RegisterRequest)
	require.True(t, ok)
	require.Equal(t, "a@b.io", req.Email)
	require.Equal(t, "Ann", req.Name)
}

func TestValidate_RegisterReportsEveryViolation(t *testing.T) {
	t.Parallel()
	v := newValidator()

	f := fields(t, v, AuthRegister, `{"email":"not-an-email","password":"short","name":"   "}`)
	require.Len(t, f, 3)
	require.Equal(t, "must be a valid email address", f["email"])
	require.Equal(t, "must be at least 8 characters", f["password"])
	require.Equal(t, "must not be blank", f["name"])
}

func TestValidate_PasswordByteLimit(t *testing.T) {
	t.Parallel()
	v := newValidator()

	// 40 runes, 80 bytes.
	long := strings.Repeat("é", 40)
	f := fields(t, v, AuthRegister, `{"email":"a@b.io","password":"`+long+`","name":"Ann"}`)
	require.Equal(t, map[string]string{"password": "must be at most 72 bytes"}, f)

	_, err := v.Validate(AuthRegister, []byte(`{"email":"a@b.io","password":"`+strings.Repeat("é", 36)+`","name":"Ann"}`))
	require.NoError(t, err)
}

func TestValidate_MissingFieldsAreRequired(t *testing.T) {
	t.Parallel()
	v := newValidator()

	f := fields(t, v, AuthLogin, `{}`)
	require.Equal(t, "is required", f["email"])
	require.Equal(t, "is required", f["password"])

	f = fields(t, v, AuthLogin, ``)
	require.Contains(t, f, "email")
}

func TestValidate_MalformedJSON(t *testing.T) {
	t.Parallel()
	v := newValidator()

	f := fields(t, v, AuthLogin, `{"email": "a@b.io",`)
	require.Equal(t, map[string]string{"body": "must be valid JSON"}, f)

	f = fields(t, v, AuthLogin, `[1,2]`)
	require.Equal(t, map[string]string{"body": "must be a JSON object"}, f)
}

func TestValidate_WrongTypeNamesField(t *testing.T) {
	t.Parallel()
	v := newValidator()

	f := fields(t, v, AuthLogin, `{"email": 5, "password": "x"}`)
	require.Equal(t, "must be a string", f["email"])
}

func TestValidate_UnknownSchema(t *testing.T) {
	t.Parallel()
	v := newValidator()

	_, err := v.Validate("nope", []byte(`{}`))
	require.ErrorIs(t, err, ErrUnknownSchema)
	var verr *Error
	require.False(t, errors.As(err, &verr))
	require.False(t, v.Has("nope"))
	require.True(t, v.Has(TaskCreate))
}

func TestValidate_DoesNotMutateInput(t *testing.T) {
	t.Parallel()
	v := newValidator()

	raw := []byte(`{"title":"Write docs"}`)
	orig := string(raw)
	got, err := v.Validate(TaskCreate, raw)
	require.NoError(t, err)
	require.Equal(t, orig, string(raw))

	req := got.(dto.CreateTaskRequest)
	require.Equal(t, "TODO", req.Status)
	require.Equal(t, "MEDIUM", req.Priority)
}

func TestValidate_TaskCreateEnumsAndDates(t *testing.T) {
	t.Parallel()
	v := newValidator()

	f := fields(t, v, TaskCreate, `{"title":"x","status":"WAITING","priority":"LOW","dueDate":"2026-05-09"}`)
	require.Equal(t, "must be one of: TODO, IN_PROGRESS, IN_REVIEW, DONE", f["status"])
	require.Equal(t, "must not be in the past", f["dueDate"])
	require.NotContains(t, f, "priority")

	got, err := v.Validate(TaskCreate, []byte(`{"title":"x","dueDate":"2026-05-10"}`))
	require.NoError(t, err)
	due := got.(dto.CreateTaskRequest).DueDate
	require.NotNil(t, due)
	require.Equal(t, time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC), due.Time)

	f = fields(t, v, TaskCreate, `{"title":"x","dueDate":"tomorrow"}`)
	require.Equal(t, "must be a date (YYYY-MM-DD) or RFC3339 datetime", f["dueDate"])

	f = fields(t, v, TaskCreate, `{"title":"x","projectId":"123"}`)
	require.Equal(t, "must be a valid UUID", f["projectId"])
}

func TestValidate_TaskUpdateNeedsAField(t *testing.T) {
	t.Parallel()
	v := newValidator()

	f := fields(t, v, TaskUpdate, `{}`)
	require.Equal(t, "at least one field must be provided", f["body"])

	got, err := v.Validate(TaskUpdate, []byte(`{"dueDate":"","assigneeId":""}`))
	require.NoError(t, err)
	req := got.(dto.UpdateTaskRequest)
	require.NotNil(t, req.DueDate)
	require.Nil(t, req.DueDate.Ptr())
	require.Equal(t, "", *req.AssigneeID)

	f = fields(t, v, TaskUpdate, `{"title":""}`)
	require.Equal(t, "must not be blank", f["title"])
}

func TestValidate_UserUpdate(t *testing.T) {
	t.Parallel()
	v := newValidator()

	f := fields(t, v, UserUpdate, `{}`)
	require.Contains(t, f, "body")

	f = fields(t, v, UserUpdate, `{"email":"nope"}`)
	require.Equal(t, "must be a valid email address", f["email"])

	got, err := v.Validate(UserUpdate, []byte(`{"name":"New"}`))
	require.NoError(t, err)
	require.Equal(t, "New", *got.(dto.UpdateProfileRequest).Name)
}

func TestValidate_QueryCoercion(t *testing.T) {
	t.Parallel()
	v := newValidator()

	raw, err := QueryJSON(url.Values{"page": {"2"}, "limit": {"50"}, "status": {"DONE"}, "dueAfter": {"2026-01-01"}, "empty": {""}})
	require.NoError(t, err)
	got, err := v.Validate(TaskList, raw)
	require.NoError(t, err)
	q := got.(dto.ListTasksQuery)
	require.Equal(t, dto.Int(2), q.Page)
	require.Equal(t, dto.Int(50), q.Limit)
	require.Equal(t, "DONE", q.Status)
	require.Equal(t, 2026, q.DueAfter.Year())

	got, err = v.Validate(TaskList, []byte(`{}`))
	require.NoError(t, err)
	require.Equal(t, dto.Int(1), got.(dto.ListTasksQuery).Page)
	require.Equal(t, dto.Int(20), got.(dto.ListTasksQuery).Limit)

	f := fields(t, v, TaskList, `{"page":"abc"}`)
	require.Equal(t, "must be a number", f["page"])

	f = fields(t, v, TaskList, `{"limit":"1000"}`)
	require.Equal(t, "must be at most 100", f["limit"])

	f = fields(t, v, NotificationList, `{"unread":"maybe"}`)
	require.Equal(t, "must be a boolean", f["unread"])

	got, err = v.Validate(NotificationList, []byte(`{"unread":"true"}`))
	require.NoError(t, err)
	require.True(t, bool(*got.(dto.ListNotificationsQuery).Unread))
}

func TestValidate_CrossFieldDueRange(t *testing.T) {
	t.Parallel()
	v := newValidator()

	f := fields(t, v, TaskList, `{"dueAfter":"2026-06-02","dueBefore":"2026-06-01"}`)
	require.Equal(t, "must not be after dueBefore", f["dueAfter"])

	_, err := v.Validate(TaskList, []byte(`{"dueAfter":"2026-06-01","dueBefore":"2026-06-02"}`))
	require.NoError(t, err)
}

func TestError_Message(t *testing.T) {
	t.Parallel()

	e := &Error{Fields: []FieldError{{Field: "email", Message: "is required"}, {Field: "name", Message: "must not be blank"}}}
	require.Equal(t, "validation failed: email: is required; name: must not be blank", e.Error())
	require.Len(t, e.Details(), 2)
}

func TestBodyMiddleware(t *testing.T) {
	t.Parallel()
	v := newValidator()

	r := gin.New()
	var handled bool
	r.POST("/login", v.Body(AuthLogin), func(c *gin.Context) {
		handled = true
		req := Payload[dto.LoginRequest](c)
		c.JSON(http.StatusOK, dto.OK(req.Email))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":"x"}`)))
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.False(t, handled)

	var env dto.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.False(t, env.Success)
	require.Equal(t, dto.KindValidation, env.Error)
	require.Len(t, env.Details, 2)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":"x@y.io","password":"p"}`)))
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, handled)
	require.Contains(t, w.Body.String(), `"data":"x@y.io"`)
}

func TestQueryMiddleware_UnknownSchemaIsInternal(t *testing.T) {
	t.Parallel()
	v := newValidator()

	r := gin.New()
	r.GET("/x", v.Query("missing"), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x?page=1", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Contains(t, w.Body.String(), dto.KindInternal)
}

func TestPayload_ZeroWhenMissing(t *testing.T) {
	t.Parallel()

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	require.Equal(t, dto.LoginRequest{}, Payload[dto.LoginRequest](c))

	c.Set(payloadKey, dto.LoginRequest{Email: "a"})
	require.Equal(t, dto.RegisterRequest{}, Payload[dto.RegisterRequest](c))
}
