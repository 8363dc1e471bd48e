package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/iamvkosarev/easymatter-bot/internal/catalog"
	"github.com/iamvkosarev/easymatter-bot/internal/codegen"
	"github.com/iamvkosarev/easymatter-bot/internal/interpretation"
	"github.com/iamvkosarev/easymatter-bot/internal/model"
	"go.uber.org/zap"
)

const (
	appDescription = "Conversational materials design assistant that turns plain-language requirements into MatterGen scripts"

	defaultPopularLimit = 5
)

type propertyPayload struct {
	Key         string `json:"key"`
	DisplayName string `json:"display_name"`
	Value       string `json:"value"`
	Unit        string `json:"unit,omitempty"`
	Editable    bool   `json:"editable"`
}

type templateResponse struct {
	ID                string            `json:"id"`
	DisplayName       string            `json:"display_name"`
	Description       string            `json:"description"`
	Category          string            `json:"category"`
	Seed              string            `json:"seed"`
	Properties        []propertyPayload `json:"properties"`
	SuggestedElements []string          `json:"suggested_elements,omitempty"`
	Explanations      map[string]string `json:"explanations,omitempty"`
	Prompts           map[string]string `json:"prompts,omitempty"`
}

type listTemplatesResponse struct {
	Templates  []templateResponse `json:"templates"`
	Categories []string           `json:"categories"`
}

type exampleResponse struct {
	Name       string            `json:"name"`
	Properties map[string]string `json:"properties"`
	Materials  []string          `json:"materials,omitempty"`
}

type examplesResponse struct {
	TemplateID string            `json:"template_id"`
	Examples   []exampleResponse `json:"examples"`
}

type codegenRequest struct {
	Properties        []propertyPayload `json:"properties"`
	Parameters        map[string]any    `json:"parameters,omitempty"`
	CodeType          string            `json:"code_type,omitempty"`
	Materials         []string          `json:"materials,omitempty"`
	IncludeFineTuning bool              `json:"include_fine_tuning,omitempty"`
}

type codegenResponse struct {
	Filename              string   `json:"filename"`
	Code                  string   `json:"code"`
	ColabURL              string   `json:"colab_url"`
	CodeType              string   `json:"code_type"`
	ExecutionTimeEstimate string   `json:"execution_time_estimate"`
	MemoryRequirements    string   `json:"memory_requirements"`
	Warnings              []string `json:"warnings"`
	Tips                  []string `json:"tips"`
}

type errorResponse struct {
	Error   string   `json:"error"`
	Missing []string `json:"missing,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "message": "EasyMatter API is running"})
}

func (s *Server) handleInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(
		w, http.StatusOK, map[string]string{
			"app_name":    s.app.Name,
			"version":     s.app.Version,
			"description": appDescription,
		},
	)
}

func (s *Server) handleChatQuery(w http.ResponseWriter, r *http.Request) {
	var req interpretation.QueryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		badRequest(w, "text is required")
		return
	}

	result, err := s.Interpreter.Interpret(r.Context(), req.Text, req.InterpretationContext())
	if err != nil {
		if errors.Is(err, model.ErrServiceUnavailable) || errors.Is(err, model.ErrMalformedResponse) {
			s.Logger.Warn("interpretation provider failed", zap.Error(err))
			writeJSON(w, http.StatusBadGateway, errorResponse{Error: "interpretation service unavailable"})
			return
		}
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, interpretation.NewQueryResponse(result))
}

// handlePropertyGuidance explains a property for the requested user level.
// Fields may come as query parameters or as a JSON body.
func (s *Server) handlePropertyGuidance(w http.ResponseWriter, r *http.Request) {
	req := interpretation.GuidanceRequest{
		PropertyName: r.URL.Query().Get("property_name"),
		UserLevel:    r.URL.Query().Get("user_level"),
	}
	if req.PropertyName == "" && r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			badRequest(w, "invalid JSON body")
			return
		}
	}
	property := strings.TrimSpace(req.PropertyName)
	if property == "" {
		badRequest(w, "property_name is required")
		return
	}
	level, err := model.ParseUserLevel(req.UserLevel)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	if s.Explainer != nil {
		text, err := s.Explainer.ExplainProperty(r.Context(), property, level)
		if err == nil {
			writeJSON(w, http.StatusOK, interpretation.GuidanceResponse{Text: text})
			return
		}
		if !errors.Is(err, model.ErrServiceUnavailable) && !errors.Is(err, model.ErrMalformedResponse) {
			s.internalError(w, err)
			return
		}
		s.Logger.Warn("property guidance provider failed", zap.String("property", property), zap.Error(err))
	}
	if text, ok := s.templateExplanation(property); ok {
		writeJSON(w, http.StatusOK, interpretation.GuidanceResponse{Text: text})
		return
	}
	writeJSON(w, http.StatusBadGateway, errorResponse{Error: "interpretation service unavailable"})
}

func (s *Server) templateExplanation(property string) (string, bool) {
	key := model.CanonicalKey(model.PropertyKey(property))
	for _, template := range s.Catalog.List("") {
		if text, ok := template.Explanations[key]; ok {
			return text, true
		}
	}
	return "", false
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates := s.Catalog.List(r.URL.Query().Get("category"))
	resp := listTemplatesResponse{
		Templates:  make([]templateResponse, 0, len(templates)),
		Categories: s.Catalog.Categories(),
	}
	for _, template := range templates {
		resp.Templates = append(resp.Templates, toTemplateResponse(template))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePopularTemplates(w http.ResponseWriter, r *http.Request) {
	limit := defaultPopularLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			badRequest(w, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	templates := s.Catalog.Popular(limit)
	resp := make([]templateResponse, 0, len(templates))
	for _, template := range templates {
		resp = append(resp, toTemplateResponse(template))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTemplateExamples(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	examples, err := s.Catalog.Examples(id)
	if err != nil {
		if errors.Is(err, catalog.ErrTemplateNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "template not found"})
			return
		}
		s.internalError(w, err)
		return
	}
	resp := examplesResponse{TemplateID: id, Examples: make([]exampleResponse, 0, len(examples))}
	for _, example := range examples {
		resp.Examples = append(
			resp.Examples, exampleResponse{
				Name:       example.Name,
				Properties: example.Properties,
				Materials:  example.Materials,
			},
		)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	template, err := s.Catalog.Get(r.PathValue("id"))
	if err != nil {
		if errors.Is(err, catalog.ErrTemplateNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "template not found"})
			return
		}
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTemplateResponse(template))
}

func (s *Server) handleCodegen(w http.ResponseWriter, r *http.Request) {
	artifact, opts, ok := s.generate(w, r)
	if !ok {
		return
	}
	info := codegen.Estimate(opts)
	writeJSON(
		w, http.StatusOK, codegenResponse{
			Filename:              artifact.Filename,
			Code:                  artifact.Code,
			ColabURL:              codegen.ColabURL(artifact.Code),
			CodeType:              string(opts.CodeType),
			ExecutionTimeEstimate: info.ExecutionTime,
			MemoryRequirements:    info.Memory,
			Warnings:              info.Warnings,
			Tips:                  info.Tips,
		},
	)
}

func (s *Server) handleNotebook(w http.ResponseWriter, r *http.Request) {
	artifact, opts, ok := s.generate(w, r)
	if !ok {
		return
	}
	notebook, err := codegen.Notebook(artifact.Code, opts)
	if err != nil {
		s.internalError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/x-ipynb+json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+codegen.NotebookFilename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(notebook)
}

// generate writes the error response itself and reports whether the artifact is usable.
func (s *Server) generate(w http.ResponseWriter, r *http.Request) (model.Artifact, codegen.NotebookOptions, bool) {
	var req codegenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "invalid JSON body")
		return model.Artifact{}, codegen.NotebookOptions{}, false
	}
	codeType, err := codegen.ParseCodeType(req.CodeType)
	if err != nil {
		badRequest(w, err.Error())
		return model.Artifact{}, codegen.NotebookOptions{}, false
	}
	opts := codegen.NotebookOptions{
		CodeType:          codeType,
		Materials:         req.Materials,
		IncludeFineTuning: req.IncludeFineTuning,
	}

	properties := make([]model.PropertyEntry, 0, len(req.Properties))
	for _, p := range req.Properties {
		properties = append(
			properties, model.PropertyEntry{
				Key:         model.CanonicalKey(p.Key),
				DisplayName: p.DisplayName,
				Value:       p.Value,
				Unit:        p.Unit,
				Editable:    p.Editable,
			},
		)
		opts.Properties = append(opts.Properties, model.CanonicalKey(p.Key))
	}

	artifact, err := s.Generator.Artifact(properties, req.Parameters)
	if err != nil {
		var templateErr *model.TemplateError
		if errors.As(err, &templateErr) {
			writeJSON(
				w, http.StatusUnprocessableEntity, errorResponse{Error: templateErr.Error(), Missing: templateErr.Missing},
			)
			return model.Artifact{}, codegen.NotebookOptions{}, false
		}
		s.internalError(w, err)
		return model.Artifact{}, codegen.NotebookOptions{}, false
	}
	return artifact, opts, true
}

func toTemplateResponse(template catalog.DesignTemplate) templateResponse {
	properties := make([]propertyPayload, 0, len(template.Properties))
	for _, p := range template.Properties {
		properties = append(
			properties, propertyPayload{
				Key:         p.Key,
				DisplayName: p.DisplayName,
				Value:       p.Value,
				Unit:        p.Unit,
				Editable:    p.Editable,
			},
		)
	}
	return templateResponse{
		ID:                template.ID,
		DisplayName:       template.DisplayName,
		Description:       template.Description,
		Category:          template.Category,
		Seed:              template.Seed,
		Properties:        properties,
		SuggestedElements: template.SuggestedElements,
		Explanations:      template.Explanations,
		Prompts:           template.Prompts,
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.Logger.Error("http handler failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
}
