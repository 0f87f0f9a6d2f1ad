package openapi

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	settings "github.com/goliatone/go-settings"
)

type documentBuilder struct {
	config   generatorConfig
	location string
	kind     settings.LocationKind
}

func newDocumentBuilder(config generatorConfig, location string, kind settings.LocationKind) *documentBuilder {
	return &documentBuilder{config: config, location: location, kind: kind}
}

func (b *documentBuilder) build(fields []settings.Field) (map[string]any, error) {
	name := b.componentName()
	document := map[string]any{
		"openapi": b.config.openAPIVersion,
		"info":    b.buildInfo(),
		"paths":   b.buildPaths(name),
		"components": map[string]any{
			"schemas": map[string]any{
				name: b.locationSchema(fields),
			},
		},
	}
	if err := validateDocument(document); err != nil {
		return nil, err
	}
	return document, nil
}

func (b *documentBuilder) locationSchema(fields []settings.Field) map[string]any {
	properties := map[string]any{}
	for _, field := range fields {
		if schema, ok := FieldSchema(field); ok {
			properties[field.StorageKey] = schema
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if b.location != "" {
		schema["x-location"] = b.location
		schema["x-location-kind"] = string(b.kind)
	}
	return schema
}

func (b *documentBuilder) buildInfo() map[string]any {
	info := map[string]any{
		"title":   b.config.info.Title,
		"version": b.config.info.Version,
	}
	if b.config.info.Description != "" {
		info["description"] = b.config.info.Description
	}
	return info
}

func (b *documentBuilder) path() string {
	if b.config.operation.Path != "" {
		return b.config.operation.Path
	}
	if b.kind == settings.LocationMetabox {
		return "/items/{id}/" + b.location
	}
	if b.location == "" {
		return "/settings"
	}
	return "/settings/" + b.location
}

func (b *documentBuilder) method() string {
	method := strings.ToLower(b.config.operation.Method)
	if method == "" {
		method = "post"
	}
	return method
}

func (b *documentBuilder) buildPaths(component string) map[string]any {
	path := b.path()
	responses := make(map[string]any, len(b.config.responses))
	statuses := make([]string, 0, len(b.config.responses))
	for status := range b.config.responses {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)
	for _, status := range statuses {
		responses[status] = map[string]any{
			"description": b.config.responses[status].Description,
		}
	}

	operation := map[string]any{
		"operationId": b.operationID(path),
		"requestBody": map[string]any{
			"required": true,
			"content": map[string]any{
				b.config.contentType: map[string]any{
					"schema": map[string]any{"$ref": "#/components/schemas/" + component},
				},
			},
		},
		"responses": responses,
	}
	if summary := strings.TrimSpace(b.config.operation.Summary); summary != "" {
		operation["summary"] = summary
	}
	if strings.Contains(path, "{id}") {
		operation["parameters"] = []any{
			map[string]any{
				"name":     "id",
				"in":       "path",
				"required": true,
				"schema":   map[string]any{"type": "string"},
			},
		}
	}

	return map[string]any{
		path: map[string]any{
			b.method(): operation,
		},
	}
}

func (b *documentBuilder) operationID(path string) string {
	if b.config.operation.OperationID != "" {
		return b.config.operation.OperationID
	}
	return fmt.Sprintf("%s:%s", b.method(), path)
}

func (b *documentBuilder) componentName() string {
	if name := sanitizeComponentName(b.config.rootComponent); name != "" {
		return name
	}
	if name := sanitizeComponentName(b.location); name != "" {
		return name
	}
	return "Settings"
}

var componentNameRegexp = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

func sanitizeComponentName(name string) string {
	name = strings.Trim(componentNameRegexp.ReplaceAllString(name, "_"), "_")
	if name == "" {
		return ""
	}
	if name[0] >= '0' && name[0] <= '9' {
		name = "_" + name
	}
	return name
}

func validateDocument(document map[string]any) error {
	if document == nil {
		return fmt.Errorf("openapi: document cannot be nil")
	}
	openapi, _ := document["openapi"].(string)
	if openapi == "" {
		return fmt.Errorf("openapi: document missing version string")
	}
	info, _ := document["info"].(map[string]any)
	if info == nil {
		return fmt.Errorf("openapi: document missing info section")
	}
	if title, _ := info["title"].(string); title == "" {
		return fmt.Errorf("openapi: info.title must be set")
	}
	if version, _ := info["version"].(string); version == "" {
		return fmt.Errorf("openapi: info.version must be set")
	}
	paths, _ := document["paths"].(map[string]any)
	if len(paths) == 0 {
		return fmt.Errorf("openapi: document must define at least one path")
	}
	for pathKey, pathValue := range paths {
		pathItem, _ := pathValue.(map[string]any)
		if len(pathItem) == 0 {
			return fmt.Errorf("openapi: path %q missing operations", pathKey)
		}
		for method, operationValue := range pathItem {
			operation, _ := operationValue.(map[string]any)
			if operation == nil {
				return fmt.Errorf("openapi: operation %s %s invalid payload", method, pathKey)
			}
			if _, ok := operation["operationId"].(string); !ok {
				return fmt.Errorf("openapi: operation %s %s missing operationId", method, pathKey)
			}
			requestBody, _ := operation["requestBody"].(map[string]any)
			content, _ := requestBody["content"].(map[string]any)
			if len(content) == 0 {
				return fmt.Errorf("openapi: operation %s %s requestBody missing content", method, pathKey)
			}
			if _, ok := operation["responses"].(map[string]any); !ok {
				return fmt.Errorf("openapi: operation %s %s missing responses", method, pathKey)
			}
		}
	}
	return nil
}
