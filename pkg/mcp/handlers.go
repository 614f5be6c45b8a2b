package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/addonlens/addonlens/pkg/parser"
)

// JSON views keep tool output stable regardless of internal struct changes.

type modelView struct {
	Name        string       `json:"name,omitempty"`
	ClassName   string       `json:"class_name"`
	FilePath    string       `json:"file_path"`
	Module      string       `json:"module"`
	IsExtension bool         `json:"is_extension"`
	Inherit     string       `json:"inherit,omitempty"`
	Kind        string       `json:"kind"`
	Line        int          `json:"line"`
	ApplyOn     string       `json:"apply_on,omitempty"`
	Collection  string       `json:"collection,omitempty"`
	Fields      []fieldView  `json:"fields,omitempty"`
	Methods     []methodView `json:"methods,omitempty"`
}

type fieldView struct {
	Name       string         `json:"name"`
	Kind       string         `json:"kind"`
	Properties map[string]any `json:"properties,omitempty"`
	Line       int            `json:"line"`
	Doc        string         `json:"doc,omitempty"`
}

type methodView struct {
	Name       string   `json:"name"`
	Params     []string `json:"params,omitempty"`
	Decorators []string `json:"decorators,omitempty"`
	Line       int      `json:"line"`
	Doc        string   `json:"doc,omitempty"`
}

func toModelView(desc *parser.ModelDescriptor) modelView {
	view := modelView{
		Name:        desc.Name,
		ClassName:   desc.ClassName,
		FilePath:    desc.FilePath,
		Module:      desc.ModuleName,
		IsExtension: desc.IsExtension,
		Inherit:     desc.Inherit,
		Kind:        desc.Kind.String(),
		Line:        desc.Line,
		ApplyOn:     desc.ApplyOn,
		Collection:  desc.Collection,
	}
	for _, field := range desc.Fields {
		view.Fields = append(view.Fields, toFieldView(field))
	}
	for _, method := range desc.Methods {
		view.Methods = append(view.Methods, toMethodView(method))
	}
	return view
}

func toFieldView(field *parser.FieldDescriptor) fieldView {
	view := fieldView{
		Name: field.Name,
		Kind: field.Kind,
		Line: field.Line,
		Doc:  field.Doc,
	}
	if len(field.Properties) > 0 {
		view.Properties = make(map[string]any, len(field.Properties))
		for _, prop := range field.Properties {
			view.Properties[prop.Name] = prop.Value
		}
	}
	return view
}

func toMethodView(method *parser.MethodDescriptor) methodView {
	return methodView{
		Name:       method.Name,
		Params:     method.Params,
		Decorators: method.Decorators,
		Line:       method.Line,
		Doc:        method.Doc,
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleGetModels(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	if name == "" {
		return mcp.NewToolResultError("name is required"), nil
	}

	descriptors := s.registry.Models(name)
	if len(descriptors) == 0 {
		return mcp.NewToolResultError(fmt.Sprintf("model not found: %s", name)), nil
	}

	views := make([]modelView, 0, len(descriptors))
	for _, desc := range descriptors {
		views = append(views, toModelView(desc))
	}
	return jsonResult(views)
}

func (s *Server) handleGetInheritingModels(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	if name == "" {
		return mcp.NewToolResultError("name is required"), nil
	}

	descriptors := s.registry.InheritingModels(name)
	views := make([]modelView, 0, len(descriptors))
	for _, desc := range descriptors {
		views = append(views, toModelView(desc))
	}
	return jsonResult(views)
}

func (s *Server) handleGetModelFields(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	if name == "" {
		return mcp.NewToolResultError("name is required"), nil
	}

	fields := s.registry.AllFieldsForModel(name)
	views := make(map[string][]fieldView, len(fields))
	for fieldName, occurrences := range fields {
		for _, field := range occurrences {
			views[fieldName] = append(views[fieldName], toFieldView(field))
		}
	}
	return jsonResult(views)
}

func (s *Server) handleGetModelMethods(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	if name == "" {
		return mcp.NewToolResultError("name is required"), nil
	}

	methods := s.registry.AllMethodsForModel(name)
	views := make(map[string][]methodView, len(methods))
	for methodName, occurrences := range methods {
		for _, method := range occurrences {
			views[methodName] = append(views[methodName], toMethodView(method))
		}
	}
	return jsonResult(views)
}

func (s *Server) handleListModels(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.registry.AllModelNames())
}

func (s *Server) handleListComponents(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.registry.AllComponentNames())
}

func (s *Server) handleCacheStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats := s.registry.CacheStats()
	return jsonResult(map[string]any{
		"model_descriptors":     stats.ModelDescriptors,
		"unique_models":         stats.UniqueModels,
		"component_descriptors": stats.ComponentDescriptors,
		"unique_components":     stats.UniqueComponents,
		"tracked_files":         stats.TrackedFiles,
		"initialized":           stats.Initialized,
		"refreshing":            stats.Refreshing,
		"parse_memo_hits":       stats.ParseMemoHits,
		"parse_memo_misses":     stats.ParseMemoMisses,
	})
}

func (s *Server) handleRefresh(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.registry.FullRefresh(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("refresh failed: %v", err)), nil
	}
	stats := s.registry.CacheStats()
	return mcp.NewToolResultText(fmt.Sprintf(
		"refresh complete: %d models across %d descriptors, %d files tracked",
		stats.UniqueModels, stats.ModelDescriptors, stats.TrackedFiles)), nil
}
