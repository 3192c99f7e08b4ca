package handlers

import (
	"context"
	_ "embed"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/xeipuuv/gojsonschema"

	"git.home.luguber.info/inful/sitedeploy/internal/dispatcher"
	"git.home.luguber.info/inful/sitedeploy/internal/foundation/errors"
	"git.home.luguber.info/inful/sitedeploy/internal/metrics"
	"git.home.luguber.info/inful/sitedeploy/internal/server/responses"
)

// maxRequestBody bounds POST /project bodies.
const maxRequestBody = 64 << 10

//go:embed schemas/create-project.schema.json
var createProjectSchema []byte

// Dispatcher queues deployments.
type Dispatcher interface {
	Dispatch(ctx context.Context, repoURL string) (*dispatcher.Deployment, error)
}

// CreateProjectRequest is the POST /project body.
type CreateProjectRequest struct {
	GitURL string `json:"gitUrl"`
}

// DeployHandlers serves the deployment API.
type DeployHandlers struct {
	dispatcher   Dispatcher
	schema       *gojsonschema.Schema
	recorder     metrics.Recorder
	errorAdapter *errors.HTTPErrorAdapter
}

// NewDeployHandlers compiles the request schema once.
func NewDeployHandlers(d Dispatcher, recorder metrics.Recorder, logger *slog.Logger) (*DeployHandlers, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(createProjectSchema))
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryInternal, "failed to compile request schema").Build()
	}
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &DeployHandlers{
		dispatcher:   d,
		schema:       schema,
		recorder:     recorder,
		errorAdapter: errors.NewHTTPErrorAdapter(logger),
	}, nil
}

// HandleCreateProject handles POST /project.
func (h *DeployHandlers) HandleCreateProject(w http.ResponseWriter, r *http.Request) {
	req, err := h.decode(r)
	if err != nil {
		h.recorder.IncDispatch(metrics.DispatchInvalid)
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	dep, err := h.dispatcher.Dispatch(r.Context(), req.GitURL)
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	resp := responses.QueuedResponse{
		Status: responses.StatusQueued,
		Data:   responses.QueuedData{ProjectSlug: string(dep.ProjectID), URL: dep.URL},
	}
	if err := writeJSON(w, http.StatusOK, resp); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r,
			errors.WrapError(err, errors.CategoryInternal, "failed to write response").Build())
	}
}

func (h *DeployHandlers) decode(r *http.Request) (*CreateProjectRequest, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody+1))
	if err != nil {
		return nil, errors.ValidationError("failed to read request body").WithCause(err).Build()
	}
	if len(body) > maxRequestBody {
		return nil, errors.ValidationError("request body too large").
			WithContext("limit_bytes", maxRequestBody).Build()
	}
	if !json.Valid(body) {
		return nil, errors.ValidationError("request body must be valid JSON").Build()
	}

	result, err := h.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, errors.ValidationError("request body could not be validated").WithCause(err).Build()
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}
		return nil, errors.ValidationError("invalid request body").
			WithContext("problems", problems).Build()
	}

	var req CreateProjectRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, errors.ValidationError("invalid request body").WithCause(err).Build()
	}
	return &req, nil
}
