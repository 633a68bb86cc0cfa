package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	leavedesksdk "leavedesk/sdk/go"

	"leavedesk/internal/domain"
	"leavedesk/internal/engine"
	"leavedesk/internal/repo"
	"leavedesk/internal/session"
)

// Config for the HTTP API handler.
type Config struct {
	// NewEngine builds the engine serving one bearer token.
	NewEngine EngineFactory
	// Repo backs the activity log. A nil DB disables /activity.
	Repo            repo.Repo
	BasePath        string
	PageSize        int
	EngineCacheSize int
	Log             zerolog.Logger
	Now             func() time.Time
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"invalid_state"`
	Message string         `json:"message" example:"This leave cannot be processed"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"leave_id\":\"42\"}"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

type api struct {
	pool     *enginePool
	repo     repo.Repo
	pageSize int
	log      zerolog.Logger
}

// New returns an HTTP handler exposing the Leavedesk view API.
func New(cfg Config) (http.Handler, error) {
	if cfg.NewEngine == nil {
		return nil, errors.New("server: engine factory is required")
	}
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = engine.DefaultPageSize
	}
	pool, err := newEnginePool(cfg.EngineCacheSize, cfg.NewEngine)
	if err != nil {
		return nil, err
	}
	a := &api{pool: pool, repo: cfg.Repo, pageSize: pageSize, log: cfg.Log}

	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// request schema failures are the caller's fault
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, now))
	hcfg := huma.DefaultConfig("Leavedesk API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = ""
	hapi := humachi.New(router, hcfg)
	group := huma.NewGroup(hapi, basePath)

	registerHealth(group)
	a.registerAuth(group)
	a.registerMe(group)
	a.registerDashboard(group)
	a.registerLeaves(group)
	a.registerLists(group)
	a.registerActions(group)
	a.registerActivity(group)
	registerDocs(router, hapi, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// handleError maps engine and backend failures onto the envelope. The
// message is always the one the CLI would print.
func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	msg := engine.UserMessage(err)
	var (
		stateErr *engine.InvalidStateError
		valErr   *engine.ValidationError
		aggErr   *engine.AggregateError
		netErr   *leavedesksdk.NetworkError
		apiErr   *leavedesksdk.APIError
	)
	switch {
	case errors.Is(err, session.ErrNotLoggedIn):
		return newAPIError(http.StatusUnauthorized, "unauthorized", msg, nil)
	case engine.IsSessionError(err):
		return newAPIError(http.StatusUnauthorized, "session_expired", msg, nil)
	case errors.As(err, &aggErr):
		failed := make([]string, 0, len(aggErr.Failures))
		for _, f := range aggErr.Failures {
			failed = append(failed, string(f.Role))
		}
		return newAPIError(http.StatusBadGateway, "backend_unavailable", msg, map[string]any{"roles": failed})
	case errors.As(err, &netErr):
		return newAPIError(http.StatusBadGateway, "backend_unreachable", msg, nil)
	case errors.As(err, &stateErr):
		return newAPIError(http.StatusUnprocessableEntity, "invalid_state", msg, map[string]any{"leave_id": string(stateErr.LeaveID), "status": stateErr.Status})
	case errors.As(err, &valErr):
		var details map[string]any
		if valErr.Field != "" {
			details = map[string]any{"field": valErr.Field}
		}
		return newAPIError(http.StatusUnprocessableEntity, "validation_failed", msg, details)
	case errors.Is(err, engine.ErrBusy):
		return newAPIError(http.StatusConflict, "busy", msg, nil)
	case errors.As(err, &apiErr):
		status := http.StatusBadGateway
		if apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			status = apiErr.StatusCode
		}
		return newAPIError(status, "backend_error", msg, map[string]any{"upstream_status": apiErr.StatusCode})
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
	}
}

// fail is handleError plus eviction of engines whose token the backend no
// longer accepts.
func (a *api) fail(pr Principal, err error) huma.StatusError {
	if engine.IsSessionError(err) {
		a.pool.cache.Remove(pr.Token)
	}
	return handleError(err)
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

// registerDocs serves the OpenAPI document under basePath and a Swagger UI
// page at /docs. The document is built on first request, once every route
// is registered.
func registerDocs(r chi.Router, api huma.API, basePath string) {
	docURL := path.Join("/", basePath, "openapi.json")
	document := sync.OnceValues(func() ([]byte, error) {
		oas := api.OpenAPI()
		documentErrors(oas)
		documentAuth(oas, basePath)
		return json.Marshal(oas)
	})
	r.Get(docURL, func(w http.ResponseWriter, _ *http.Request) {
		data, err := document()
		if err != nil {
			respondStatusError(w, newAPIError(http.StatusInternalServerError, "", "openapi document unavailable", nil))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(data)
	})
	r.Get("/docs", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprintf(w, docsPage, docURL)
	})
}

func operations(item *huma.PathItem) []*huma.Operation {
	var ops []*huma.Operation
	for _, op := range []*huma.Operation{item.Get, item.Post, item.Put, item.Patch, item.Delete} {
		if op != nil {
			ops = append(ops, op)
		}
	}
	return ops
}

// documentErrors makes the error envelope every operation's default response.
func documentErrors(oas *huma.OpenAPI) {
	envelope := oas.Components.Schemas.Schema(reflect.TypeOf(apiError{}), true, "Error")
	for _, item := range oas.Paths {
		for _, op := range operations(item) {
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content:     map[string]*huma.MediaType{"application/json": {Schema: envelope}},
			}
		}
	}
}

// documentAuth requires the bearer scheme everywhere except health and login.
func documentAuth(oas *huma.OpenAPI, basePath string) {
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{Type: "http", Scheme: "bearer", BearerFormat: "JWT"}
	bearer := []map[string][]string{{"bearerAuth": {}}}
	oas.Security = bearer
	public := map[string]bool{
		path.Join("/", basePath, "health"):     true,
		path.Join("/", basePath, "auth/login"): true,
	}
	for route, item := range oas.Paths {
		for _, op := range operations(item) {
			if public[route] {
				op.Security = []map[string][]string{}
			} else {
				op.Security = bearer
			}
		}
	}
}

const docsPage = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8"/>
<title>Leavedesk API</title>
<link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css"/>
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
<script>window.onload = () => SwaggerUIBundle({url: '%s', dom_id: '#swagger-ui'});</script>
</body>
</html>`

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func (a *api) registerAuth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Summary:     "Exchange credentials for a backend token",
		Errors:      []int{http.StatusUnauthorized, http.StatusUnprocessableEntity, http.StatusBadGateway},
	}, func(ctx context.Context, input *struct {
		Body LoginRequest
	}) (*struct {
		Body LoginResponse `json:"body"`
	}, error) {
		e := a.pool.anonymous()
		defer e.Close()
		res, err := e.Login(ctx, input.Body.Email, input.Body.Password)
		if err != nil {
			return nil, handleError(err)
		}
		resp := LoginResponse{Token: res.Token, Email: strings.TrimSpace(input.Body.Email), Roles: nonNilSlice(res.Roles)}
		if claims, err := session.ParseClaims(res.Token); err == nil {
			if claims.Email != "" {
				resp.Email = claims.Email
			}
			if len(res.Roles) == 0 && len(claims.Roles) > 0 {
				resp.Roles = claims.Roles
			}
		}
		return &struct {
			Body LoginResponse `json:"body"`
		}{Body: resp}, nil
	})
}

func (a *api) registerMe(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current user",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body UserResponse `json:"body"`
	}, error) {
		e, pr, authErr := a.pool.engineFor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		resp := UserResponse{Email: pr.Email, Roles: nonNilSlice(pr.Roles)}
		u, err := e.Me(ctx)
		switch {
		case err == nil:
			resp.Name, resp.Designation = u.Name, u.Designation
			if len(u.Roles) > 0 {
				resp.Roles = u.Roles
			}
		case engine.IsSessionError(err):
			return nil, a.fail(pr, err)
		default:
			// the profile is decoration; the token already names the user
			a.log.Debug().Err(err).Str("email", pr.Email).Msg("profile lookup failed")
		}
		return &struct {
			Body UserResponse `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "change-password",
		Method:      http.MethodPut,
		Path:        "/me/password",
		Summary:     "Change the current user's password",
		Errors:      []int{http.StatusUnauthorized, http.StatusUnprocessableEntity, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body PasswordRequest
	}) (*struct {
		Body OutcomeResponse `json:"body"`
	}, error) {
		e, pr, authErr := a.pool.engineFor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		out, err := e.ChangePassword(ctx, engine.PasswordChange{
			Old:     input.Body.OldPassword,
			New:     input.Body.NewPassword,
			Confirm: input.Body.ConfirmPassword,
		})
		if err != nil {
			return nil, a.fail(pr, err)
		}
		return &struct {
			Body OutcomeResponse `json:"body"`
		}{Body: outcomeResponse(out, e.Renderer())}, nil
	})
}

func (a *api) registerDashboard(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "dashboard",
		Method:      http.MethodGet,
		Path:        "/dashboard",
		Summary:     "Pending counts per officer role",
		Errors:      []int{http.StatusUnauthorized, http.StatusBadGateway},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body domain.DashboardCounts `json:"body"`
	}, error) {
		e, pr, authErr := a.pool.engineFor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		counts, err := e.Dashboard(ctx)
		if err != nil {
			return nil, a.fail(pr, err)
		}
		return &struct {
			Body domain.DashboardCounts `json:"body"`
		}{Body: counts}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "entitlements",
		Method:      http.MethodGet,
		Path:        "/entitlements",
		Summary:     "Leave balances",
		Errors:      []int{http.StatusUnauthorized, http.StatusBadGateway},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body EntitlementsResponse `json:"body"`
	}, error) {
		e, pr, authErr := a.pool.engineFor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		b, err := e.Entitlements(ctx)
		if err != nil {
			return nil, a.fail(pr, err)
		}
		if b.Entitlements == nil {
			b.Entitlements = []domain.Entitlement{}
		}
		return &struct {
			Body EntitlementsResponse `json:"body"`
		}{Body: EntitlementsResponse{Entitlements: b.Entitlements, ShortLeave: b.ShortLeave}}, nil
	})
}

func (a *api) registerLeaves(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "my-leaves",
		Method:      http.MethodGet,
		Path:        "/leaves/mine",
		Summary:     "The caller's own leave requests",
		Errors:      []int{http.StatusUnauthorized, http.StatusBadGateway},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []LeaveView `json:"body"`
	}, error) {
		e, pr, authErr := a.pool.engineFor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		leaves, err := e.MyLeaves(ctx)
		if err != nil {
			return nil, a.fail(pr, err)
		}
		return &struct {
			Body []LeaveView `json:"body"`
		}{Body: mapLeaves(leaves, e.Renderer())}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "submit-leave",
		Method:        http.MethodPost,
		Path:          "/leaves",
		Summary:       "Apply for leave",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusUnauthorized, http.StatusUnprocessableEntity, http.StatusConflict, http.StatusBadGateway},
	}, func(ctx context.Context, input *struct {
		Body engine.SubmitRequest
	}) (*struct {
		Body OutcomeResponse `json:"body"`
	}, error) {
		e, pr, authErr := a.pool.engineFor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		out, err := e.Submit(ctx, input.Body)
		if err != nil {
			return nil, a.fail(pr, err)
		}
		return &struct {
			Body OutcomeResponse `json:"body"`
		}{Body: outcomeResponse(out, e.Renderer())}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "cancel-leave",
		Method:      http.MethodPost,
		Path:        "/leaves/{id}/cancel",
		Summary:     "Cancel one of the caller's leaves",
		Errors:      []int{http.StatusUnauthorized, http.StatusUnprocessableEntity, http.StatusConflict, http.StatusBadGateway},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body CancelRequest
	}) (*struct {
		Body OutcomeResponse `json:"body"`
	}, error) {
		e, pr, authErr := a.pool.engineFor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		l, err := e.FindMine(ctx, domain.ID(input.ID))
		if err != nil {
			return nil, a.fail(pr, err)
		}
		out, err := e.Cancel(ctx, l, input.Body.Reason)
		if err != nil {
			return nil, a.fail(pr, err)
		}
		return &struct {
			Body OutcomeResponse `json:"body"`
		}{Body: outcomeResponse(out, e.Renderer())}, nil
	})
}

type listQuery struct {
	Page         int    `query:"page" default:"1" minimum:"1"`
	PageSize     int    `query:"page_size" minimum:"0" maximum:"100"`
	PrevPageSize int    `query:"prev_page_size" minimum:"0" maximum:"100" doc:"Page size the view last rendered; a different page_size returns to page 1"`
	Query        string `query:"q"`
	Type         string `query:"type"`
	Status       string `query:"status"`
	Role         string `query:"role"`
}

func (q listQuery) filter() engine.Filter {
	return engine.Filter{Query: q.Query, LeaveType: q.Type, Status: q.Status, Role: q.Role}
}

func (a *api) listResponse(res engine.Result, q listQuery, e *engine.Engine) LeaveListResponse {
	pager := engine.Resume(q.Page, q.PageSize, q.PrevPageSize, a.pageSize)
	page := engine.Of(pager, q.filter().Apply(res.Items))
	return LeaveListResponse{
		Items: mapItems(page.Items, e.Renderer()),
		Page: PageInfo{
			Page:       page.Page,
			PageSize:   page.PageSize,
			TotalPages: page.TotalPages,
			Total:      page.Total,
		},
		Failures: failuresResponse(res.Failures),
	}
}

func (a *api) registerLists(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "approvals",
		Method:      http.MethodGet,
		Path:        "/approvals",
		Summary:     "Leaves waiting for the caller, across all officer roles",
		Errors:      []int{http.StatusUnauthorized, http.StatusBadGateway},
	}, func(ctx context.Context, input *listQuery) (*struct {
		Body LeaveListResponse `json:"body"`
	}, error) {
		e, pr, authErr := a.pool.engineFor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := e.Pending(ctx)
		if err != nil {
			return nil, a.fail(pr, err)
		}
		return &struct {
			Body LeaveListResponse `json:"body"`
		}{Body: a.listResponse(res, *input, e)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "history",
		Method:      http.MethodGet,
		Path:        "/history",
		Summary:     "Leaves the caller has already acted on",
		Errors:      []int{http.StatusUnauthorized, http.StatusBadGateway},
	}, func(ctx context.Context, input *listQuery) (*struct {
		Body LeaveListResponse `json:"body"`
	}, error) {
		e, pr, authErr := a.pool.engineFor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := e.History(ctx)
		if err != nil {
			return nil, a.fail(pr, err)
		}
		return &struct {
			Body LeaveListResponse `json:"body"`
		}{Body: a.listResponse(res, *input, e)}, nil
	})
}

func (a *api) registerActions(api huma.API) {
	for _, action := range []string{engine.ActionApprove, engine.ActionReject} {
		verb := strings.ToLower(action)
		huma.Register(api, huma.Operation{
			OperationID: verb + "-leave",
			Method:      http.MethodPost,
			Path:        "/leaves/{id}/" + verb,
			Summary:     strings.ToUpper(verb[:1]) + verb[1:] + " a pending leave",
			Errors:      []int{http.StatusUnauthorized, http.StatusUnprocessableEntity, http.StatusConflict, http.StatusBadGateway},
		}, func(ctx context.Context, input *struct {
			ID   string `path:"id"`
			Body ActionRequest
		}) (*struct {
			Body OutcomeResponse `json:"body"`
		}, error) {
			e, pr, authErr := a.pool.engineFor(ctx)
			if authErr != nil {
				return nil, authErr
			}
			l, err := e.FindPending(ctx, domain.ID(input.ID))
			if err != nil {
				return nil, a.fail(pr, err)
			}
			out, err := e.Act(ctx, l, action, input.Body.Comments)
			if err != nil {
				return nil, a.fail(pr, err)
			}
			return &struct {
				Body OutcomeResponse `json:"body"`
			}{Body: outcomeResponse(out, e.Renderer())}, nil
		})
	}
}

func (a *api) registerActivity(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "activity",
		Method:      http.MethodGet,
		Path:        "/activity",
		Summary:     "The caller's recent activity, newest first",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Type    string `query:"type"`
		LeaveID string `query:"leave_id"`
		Limit   int    `query:"limit" default:"50"`
		Cursor  string `query:"cursor"`
	}) (*struct {
		Body paginatedActivity `json:"body"`
	}, error) {
		pr, ok := principalFromContext(ctx)
		if !ok {
			return nil, newAPIError(http.StatusUnauthorized, "unauthorized", session.ErrNotLoggedIn.Error(), nil)
		}
		if a.repo.DB == nil {
			return &struct {
				Body paginatedActivity `json:"body"`
			}{Body: paginatedActivity{Items: []ActivityResponse{}}}, nil
		}
		limit := normalizeLimit(input.Limit)
		var before int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil || parsed <= 0 {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			before = parsed
		}
		items, err := a.repo.LatestEvents(ctx, limit+1, repo.EventFilter{
			Type:    input.Type,
			LeaveID: input.LeaveID,
			Actor:   pr.Email,
			Before:  before,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedActivity{Items: []ActivityResponse{}}
		if len(items) > limit {
			items = items[:limit]
			resp.NextCursor = strconv.FormatInt(items[limit-1].ID, 10)
		}
		for _, evt := range items {
			resp.Items = append(resp.Items, activityResponse(evt))
		}
		return &struct {
			Body paginatedActivity `json:"body"`
		}{Body: resp}, nil
	})
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}
