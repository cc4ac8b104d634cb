package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"taskflow/internal/auth"
	"taskflow/internal/config"
	dom "taskflow/internal/domain"
	"taskflow/internal/dto"
	"taskflow/internal/logctx"
	"taskflow/internal/metrics"
	"taskflow/internal/repo"
	"taskflow/internal/service"
	"taskflow/internal/validation"
	"taskflow/mocks"

	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// HTTP-тесты всего конвейера: роутер -> валидация -> auth -> сервисы -> моки репозиториев.

const testSecret = "0123456789abcdef0123456789abcdef"

type testEnv struct {
	r        *gin.Engine
	tokens   *auth.TokenManager
	hasher   *auth.Hasher
	users    *mocks.MockUserRepo
	tasks    *mocks.MockTaskRepo
	projects *mocks.MockProjectRepo
	notes    *mocks.MockNotificationRepo
}

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	ctrl := gomock.NewController(t)
	e := testEnv{
		tokens:   auth.NewTokenManager(testSecret, time.Hour, "taskflow"),
		hasher:   auth.NewHasher(bcrypt.MinCost),
		users:    mocks.NewMockUserRepo(ctrl),
		tasks:    mocks.NewMockTaskRepo(ctrl),
		projects: mocks.NewMockProjectRepo(ctrl),
		notes:    mocks.NewMockNotificationRepo(ctrl),
	}

	var cfg config.Config
	cfg.App.Env = "test"
	cfg.App.Version = "1.2.3"

	notify := service.NewNotificationService(e.notes, nil)
	e.r = NewRouter(Deps{
		Config:        cfg,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		Validator:     validation.New(validation.Options{PasswordMinLength: 8}),
		Tokens:        e.tokens,
		Auth:          service.NewAuthService(e.users, e.hasher, e.tokens),
		Tasks:         service.NewTaskService(e.tasks, e.projects, e.users, notify, nil),
		Projects:      service.NewProjectService(e.projects, e.users, nil),
		Notifications: notify,
		Metrics:       metrics.New(),
	})
	return e
}

func (e testEnv) token(t *testing.T, id auth.Identity) string {
	t.Helper()
	tok, err := e.tokens.Issue(id)
	require.NoError(t, err)
	return tok
}

func (e testEnv) do(t *testing.T, method, path, body, token string) (*httptest.ResponseRecorder, dto.Envelope) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)

	var env dto.Envelope
	if w.Body.Len() > 0 && strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func detailFields(env dto.Envelope) []string {
	out := make([]string, len(env.Details))
	for i, d := range env.Details {
		out[i] = d.Field
	}
	return out
}

func TestPublicEndpoints(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)

	w, env := e.do(t, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, env.Success)
	require.NotEmpty(t, w.Header().Get(logctx.HeaderRequestID))

	w, env = e.do(t, http.MethodGet, "/version", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "1.2.3", env.Data.(map[string]any)["version"])

	w, env = e.do(t, http.MethodGet, "/nope", "", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, dto.KindNotFound, env.Error)

	w, _ = e.do(t, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "http_requests_total")
}

func TestSwaggerDoc(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)

	w, _ := e.do(t, http.MethodGet, "/swagger-doc.json", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	var doc struct {
		Info struct {
			Version string `json:"version"`
		} `json:"info"`
		BasePath string                    `json:"basePath"`
		Paths    map[string]map[string]any `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	require.Equal(t, "1.2.3", doc.Info.Version)
	require.Equal(t, "/api/v1", doc.BasePath)
	require.Contains(t, doc.Paths["/auth/register"], "post")
	require.Contains(t, doc.Paths["/tasks/{id}"], "delete")
	require.Contains(t, doc.Paths["/notifications/{id}/read"], "patch")

	w, _ = e.do(t, http.MethodGet, "/swagger", "", "")
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/swagger/index.html", w.Header().Get("Location"))
}

func TestRegister_Validation(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)

	w, env := e.do(t, http.MethodPost, "/api/v1/auth/register", `{"email":"nope","password":"short"}`, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, dto.KindValidation, env.Error)
	require.ElementsMatch(t, []string{"email", "password", "name"}, detailFields(env))

	w, env = e.do(t, http.MethodPost, "/api/v1/auth/register", `{"email":`, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, []string{"body"}, detailFields(env))
}

func TestRegisterLoginMe_Flow(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)

	var stored dom.User
	e.users.EXPECT().GetByEmail(gomock.Any(), "ann@example.com").Return(dom.User{}, repo.ErrNotFound)
	e.users.EXPECT().Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, u dom.User) (dom.User, error) {
			stored = u
			return u, nil
		})

	w, env := e.do(t, http.MethodPost, "/api/v1/auth/register",
		`{"email":"Ann@Example.com","password":"secret123","name":"Ann"}`, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	data := env.Data.(map[string]any)
	token := data["token"].(string)
	require.NotContains(t, w.Body.String(), "secret123")
	require.NotContains(t, w.Body.String(), stored.PasswordHash)

	e.users.EXPECT().GetByEmail(gomock.Any(), "ann@example.com").Return(stored, nil).Times(2)

	w, env = e.do(t, http.MethodPost, "/api/v1/auth/login", `{"email":"ann@example.com","password":"wrong-pass"}`, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, dto.KindInvalidCredentials, env.Error)

	w, _ = e.do(t, http.MethodPost, "/api/v1/auth/login", `{"email":"ann@example.com","password":"secret123"}`, "")
	require.Equal(t, http.StatusOK, w.Code)

	e.users.EXPECT().GetByID(gomock.Any(), stored.ID).Return(stored, nil)
	w, env = e.do(t, http.MethodGet, "/api/v1/auth/me", "", token)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ann@example.com", env.Data.(map[string]any)["email"])
}

func TestRegister_MultibytePasswordOverBcryptLimit(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)

	body := `{"email":"ann@example.com","password":"` + strings.Repeat("é", 40) + `","name":"Ann"}`
	w, env := e.do(t, http.MethodPost, "/api/v1/auth/register", body, "")
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	require.Equal(t, dto.KindValidation, env.Error)
	require.Equal(t, []string{"password"}, detailFields(env))
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)

	hash, err := e.hasher.Hash("secret123")
	require.NoError(t, err)
	e.users.EXPECT().GetByEmail(gomock.Any(), "ann@example.com").
		Return(dom.User{ID: uuid.New(), Email: "ann@example.com", PasswordHash: hash}, nil)
	e.users.EXPECT().GetByEmail(gomock.Any(), "ghost@example.com").Return(dom.User{}, repo.ErrNotFound)

	wrongPass, _ := e.do(t, http.MethodPost, "/api/v1/auth/login", `{"email":"ann@example.com","password":"wrong-pass"}`, "")
	unknown, _ := e.do(t, http.MethodPost, "/api/v1/auth/login", `{"email":"ghost@example.com","password":"wrong-pass"}`, "")

	require.Equal(t, http.StatusUnauthorized, wrongPass.Code)
	require.Equal(t, wrongPass.Code, unknown.Code)
	require.Equal(t, wrongPass.Body.Bytes(), unknown.Body.Bytes())
}

func TestRegister_Duplicate(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)

	e.users.EXPECT().GetByEmail(gomock.Any(), gomock.Any()).Return(dom.User{ID: uuid.New()}, nil)

	w, env := e.do(t, http.MethodPost, "/api/v1/auth/register",
		`{"email":"ann@example.com","password":"secret123","name":"Ann"}`, "")
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, dto.KindDuplicateEmail, env.Error)
}

func TestProtectedRoutes_RequireToken(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)

	w, env := e.do(t, http.MethodGet, "/api/v1/tasks", "", "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, dto.KindUnauthenticated, env.Error)
	require.Equal(t, "authorization required", env.Message)

	w, env = e.do(t, http.MethodGet, "/api/v1/tasks", "", "not-a-jwt")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "invalid or expired token", env.Message)

	expired := auth.NewTokenManager(testSecret, -time.Minute, "taskflow")
	tok, err := expired.Issue(auth.Identity{ID: uuid.New()})
	require.NoError(t, err)
	w, _ = e.do(t, http.MethodGet, "/api/v1/tasks", "", tok)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTasks_ValidationBeforeService(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	tok := e.token(t, auth.Identity{ID: uuid.New()})

	w, env := e.do(t, http.MethodPost, "/api/v1/tasks", `{"title":"x","dueDate":"2000-01-01"}`, tok)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, []string{"dueDate"}, detailFields(env))

	w, env = e.do(t, http.MethodPost, "/api/v1/tasks", `{"title":"x","priority":"SOMEDAY"}`, tok)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, []string{"priority"}, detailFields(env))

	w, env = e.do(t, http.MethodGet, "/api/v1/tasks?limit=abc", "", tok)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, []string{"limit"}, detailFields(env))

	w, env = e.do(t, http.MethodPatch, "/api/v1/tasks/"+uuid.NewString(), `{}`, tok)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, []string{"body"}, detailFields(env))

	w, env = e.do(t, http.MethodGet, "/api/v1/tasks/not-a-uuid", "", tok)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, []string{"id"}, detailFields(env))
}

func TestTasks_CreateAndList(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	me := auth.Identity{ID: uuid.New(), Name: "Ann"}
	tok := e.token(t, me)

	e.tasks.EXPECT().Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, task dom.Task) (dom.Task, error) {
			require.Equal(t, me.ID, task.CreatorID)
			require.Equal(t, dom.PriorityHigh, task.Priority)
			return task, nil
		})

	w, env := e.do(t, http.MethodPost, "/api/v1/tasks", `{"title":"Ship it","priority":"HIGH"}`, tok)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	data := env.Data.(map[string]any)
	require.Equal(t, "Ship it", data["title"])
	require.Equal(t, "TODO", data["status"])

	e.tasks.EXPECT().List(gomock.Any(), me.ID, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ uuid.UUID, f dom.TaskFilter) ([]dom.Task, int, error) {
			require.Equal(t, dom.Page{Number: 2, Limit: 5}, f.Page)
			require.Equal(t, dom.StatusTodo, f.Status)
			return []dom.Task{{ID: uuid.New(), Title: "a", Status: dom.StatusTodo}}, 6, nil
		})

	w, env = e.do(t, http.MethodGet, "/api/v1/tasks?page=2&limit=5&status=TODO", "", tok)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NotNil(t, env.Meta)
	require.Equal(t, dto.Meta{Page: 2, Limit: 5, Total: 6, TotalPages: 2}, *env.Meta)
}

func TestTasks_DeleteForbidden(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	me := auth.Identity{ID: uuid.New()}
	task := dom.Task{ID: uuid.New(), CreatorID: uuid.New(), AssigneeID: &me.ID}

	e.tasks.EXPECT().GetVisible(gomock.Any(), me.ID, task.ID).Return(task, nil)

	w, env := e.do(t, http.MethodDelete, "/api/v1/tasks/"+task.ID.String(), "", e.token(t, me))
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, dto.KindForbidden, env.Error)
}

func TestNotifications_UnreadFilter(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	me := auth.Identity{ID: uuid.New()}

	e.notes.EXPECT().List(gomock.Any(), me.ID, true, dom.Page{Number: 1, Limit: 20}).
		Return([]dom.Notification{{ID: uuid.New(), UserID: me.ID, Type: dom.NotificationTaskDue}}, 1, nil)

	w, env := e.do(t, http.MethodGet, "/api/v1/notifications?unread=true", "", e.token(t, me))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, env.Data, 1)
	require.Equal(t, 1, env.Meta.Total)
}

func TestProjects_AddMemberNonOwner(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	me := auth.Identity{ID: uuid.New()}
	pid := uuid.New()

	e.projects.EXPECT().MemberRole(gomock.Any(), pid, me.ID).Return(dom.RoleMember, nil)

	w, env := e.do(t, http.MethodPost, "/api/v1/projects/"+pid.String()+"/members", `{"email":"bob@example.com"}`, e.token(t, me))
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, dto.KindForbidden, env.Error)
}
