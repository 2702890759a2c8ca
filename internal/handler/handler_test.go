package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/resource-api/internal/model"
	"github.com/iliyamo/resource-api/internal/schema"
	"github.com/iliyamo/resource-api/internal/service"
	"github.com/iliyamo/resource-api/internal/utils"
)

type stubResources struct {
	query service.ListQuery
	body  map[string]any
	id    int64
	rec   schema.Record
	page  service.Page
	err   error
}

func (s *stubResources) List(_ context.Context, q service.ListQuery) (service.Page, error) {
	s.query = q
	return s.page, s.err
}

func (s *stubResources) Get(_ context.Context, id int64) (schema.Record, error) {
	s.id = id
	return s.rec, s.err
}

func (s *stubResources) Create(_ context.Context, body map[string]any) (schema.Record, error) {
	s.body = body
	return s.rec, s.err
}

func (s *stubResources) Update(_ context.Context, id int64, body map[string]any) (schema.Record, error) {
	s.id, s.body = id, body
	return s.rec, s.err
}

func (s *stubResources) Delete(_ context.Context, id int64) (schema.Record, error) {
	s.id = id
	return s.rec, s.err
}

type result struct {
	Success bool             `json:"success"`
	Data    json.RawMessage  `json:"data"`
	Total   *int64           `json:"total"`
	Message string           `json:"message"`
	Fields  []string         `json:"fields"`
	Errors  []schema.Problem `json:"errors"`
}

func serve(t *testing.T, method, path, body string, route func(e *echo.Echo)) (*httptest.ResponseRecorder, result) {
	t.Helper()
	e := echo.New()
	route(e)
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderAuthorization, "Bearer tok")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var out result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec, out
}

func resourceRoutes(h *ResourceHandler) func(e *echo.Echo) {
	return func(e *echo.Echo) {
		e.GET("/items", h.List)
		e.GET("/items/:id", h.Get)
		e.POST("/items", h.Create)
		e.PUT("/items/:id", h.Update)
		e.DELETE("/items/:id", h.Delete)
	}
}

func TestResourceList(t *testing.T) {
	stub := &stubResources{page: service.Page{Items: []schema.Record{{"id": int64(1)}}, Total: 42}}
	rec, out := serve(t, http.MethodGet, "/items?page=2&perPage=5&sort=name&order=desc&name=jo", "",
		resourceRoutes(NewResourceHandler(stub)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, out.Success)
	require.NotNil(t, out.Total)
	assert.Equal(t, int64(42), *out.Total)
	assert.JSONEq(t, `[{"id":1}]`, string(out.Data))
	assert.Equal(t, 2, stub.query.Page)
	assert.Equal(t, 5, stub.query.PerPage)
	assert.Equal(t, "name", stub.query.Sort)
	assert.True(t, stub.query.Desc)
	assert.Equal(t, map[string]string{"name": "jo"}, stub.query.Filters)
}

func TestResourceListBadPaging(t *testing.T) {
	rec, out := serve(t, http.MethodGet, "/items?page=0", "", resourceRoutes(NewResourceHandler(&stubResources{})))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, out.Success)
	assert.Equal(t, []string{"page"}, out.Fields)
}

func TestResourceCreateKeepsNumbersExact(t *testing.T) {
	stub := &stubResources{rec: schema.Record{"id": int64(9), "name": "Lamp"}}
	rec, out := serve(t, http.MethodPost, "/items", `{"name":"Lamp","stock":9007199254740993}`,
		resourceRoutes(NewResourceHandler(stub)))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "record created", out.Message)
	assert.Equal(t, json.Number("9007199254740993"), stub.body["stock"])
}

func TestResourceBadInput(t *testing.T) {
	h := NewResourceHandler(&stubResources{})

	rec, out := serve(t, http.MethodGet, "/items/abc", "", resourceRoutes(h))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid id", out.Message)

	rec, out = serve(t, http.MethodPut, "/items/3", `[1,2]`, resourceRoutes(h))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid body", out.Message)

	rec, _ = serve(t, http.MethodDelete, "/items/-1", "", resourceRoutes(h))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestErrorKindsMapToStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
		msg    string
	}{
		{&service.Error{Kind: service.KindValidation, Message: "name must not be empty", Fields: []string{"name"}}, http.StatusBadRequest, "name must not be empty"},
		{&service.Error{Kind: service.KindDuplicate, Message: "email already exists"}, http.StatusConflict, "email already exists"},
		{&service.Error{Kind: service.KindNotFound, Message: "Product not found"}, http.StatusNotFound, "Product not found"},
		{&service.Error{Kind: service.KindUnauthorized, Message: "nope"}, http.StatusUnauthorized, "nope"},
		{&service.Error{Kind: service.KindInternal, Message: "db down", Err: errors.New("dial tcp")}, http.StatusInternalServerError, "internal error"},
		{errors.New("raw"), http.StatusInternalServerError, "internal error"},
	}
	for _, tc := range cases {
		stub := &stubResources{err: tc.err}
		rec, out := serve(t, http.MethodGet, "/items/7", "", resourceRoutes(NewResourceHandler(stub)))
		assert.Equal(t, tc.status, rec.Code, tc.msg)
		assert.Equal(t, tc.msg, out.Message)
		assert.False(t, out.Success)
		assert.NotContains(t, rec.Body.String(), "dial tcp")
		assert.Equal(t, int64(7), stub.id)
	}
}

type stubAuth struct {
	reg      service.RegisterInput
	login    service.LoginInput
	client   service.Client
	token    string
	userID   uint64
	claims   *utils.Claims
	sessions []model.Session
	err      error
}

func (s *stubAuth) Register(_ context.Context, in service.RegisterInput) (schema.Record, error) {
	s.reg = in
	return schema.Record{"id": int64(1), "name": in.Name}, s.err
}

func (s *stubAuth) Login(_ context.Context, in service.LoginInput, c service.Client) (service.LoginResult, error) {
	s.login, s.client = in, c
	return service.LoginResult{Token: "tok"}, s.err
}

func (s *stubAuth) Check(_ context.Context, token string) (*utils.Claims, error) {
	s.token = token
	return s.claims, s.err
}

func (s *stubAuth) Logoff(_ context.Context, token string) error {
	s.token = token
	return s.err
}

func (s *stubAuth) Sessions(_ context.Context, userID uint64) ([]model.Session, error) {
	s.userID = userID
	return s.sessions, s.err
}

func authRoutes(h *AuthHandler, claims *utils.Claims) func(e *echo.Echo) {
	return func(e *echo.Echo) {
		e.POST("/register", h.Register)
		e.POST("/login", h.Login)
		e.GET("/check", h.Check)
		e.POST("/logoff", h.Logoff)
		withClaims := func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				if claims != nil {
					c.Set("claims", claims)
				}
				return next(c)
			}
		}
		e.GET("/sessions", h.Sessions, withClaims)
		e.GET("/me", h.Me, withClaims)
	}
}

func TestRegisterIgnoresRole(t *testing.T) {
	stub := &stubAuth{}
	rec, out := serve(t, http.MethodPost, "/register",
		`{"name":"John","email":"john@example.com","password":"secret123","role":"admin"}`,
		authRoutes(NewAuthHandler(stub), nil))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "user registered", out.Message)
	assert.Equal(t, "john@example.com", stub.reg.LoginKey)
	assert.Empty(t, stub.reg.Role)
}

func TestLoginPassesClient(t *testing.T) {
	stub := &stubAuth{}
	rec, out := serve(t, http.MethodPost, "/login", `{"loginKey":"5511999999999","password":"secret123"}`,
		authRoutes(NewAuthHandler(stub), nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"token":"tok","expires_at":"0001-01-01T00:00:00Z","user":null}`, string(out.Data))
	assert.Equal(t, "5511999999999", stub.login.LoginKey)
	assert.Equal(t, "192.0.2.1", stub.client.IP)
}

func TestLoginFailure(t *testing.T) {
	stub := &stubAuth{err: &service.Error{Kind: service.KindUnauthorized, Message: "invalid credentials"}}
	rec, out := serve(t, http.MethodPost, "/login", `{"loginKey":"a@b.co","password":"x"}`,
		authRoutes(NewAuthHandler(stub), nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid credentials", out.Message)
}

func testClaims() *utils.Claims {
	return &utils.Claims{
		Login: "john@example.com", Name: "John", Role: model.RoleUser,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "7",
			ID:        "sid",
			ExpiresAt: jwt.NewNumericDate(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)),
		},
	}
}

func TestCheckAndLogoffUseBearer(t *testing.T) {
	stub := &stubAuth{claims: testClaims()}
	h := NewAuthHandler(stub)

	rec, out := serve(t, http.MethodGet, "/check", "", authRoutes(h, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tok", stub.token)
	assert.JSONEq(t, `{"user_id":"7","login":"john@example.com","name":"John","role":"user","session_id":"sid","expires_at":"2030-01-01T00:00:00Z"}`, string(out.Data))

	stub.token = ""
	rec, out = serve(t, http.MethodPost, "/logoff", "", authRoutes(h, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "logged off", out.Message)
	assert.Equal(t, "tok", stub.token)
}

func TestSessionsRequireClaims(t *testing.T) {
	stub := &stubAuth{sessions: []model.Session{{ID: 1, Status: model.SessionActive, UserID: 7}}}

	rec, _ := serve(t, http.MethodGet, "/sessions", "", authRoutes(NewAuthHandler(stub), nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, out := serve(t, http.MethodGet, "/sessions", "", authRoutes(NewAuthHandler(stub), testClaims()))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(7), stub.userID)
	assert.Contains(t, string(out.Data), `"status":"active"`)
	assert.NotContains(t, string(out.Data), "tok")

	rec, _ = serve(t, http.MethodGet, "/me", "", authRoutes(NewAuthHandler(stub), testClaims()))
	assert.Equal(t, http.StatusOK, rec.Code)
}

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	e := echo.New()
	for _, tc := range []struct {
		err    error
		status int
	}{{nil, http.StatusOK}, {errors.New("down"), http.StatusServiceUnavailable}} {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/healthz", nil), rec)
		require.NoError(t, Health(pinger{tc.err})(c))
		assert.Equal(t, tc.status, rec.Code)
	}
}
