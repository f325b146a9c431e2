// Package swaggerkit builds the OpenAPI document from operations modules describe
// and mounts swagger UI over it
package swaggerkit

import (
	"encoding/json"
	"net/http"
	"slices"
	"strings"
	"sync"
)

// Operation is one documented endpoint. Path is relative to /api/v1
type Operation struct {
	Method  string
	Path    string
	Summary string
	Tag     string

	// Body names the request fields, if any, e.g. {"cooldown": "integer"}
	Body map[string]string
}

// SpecMutator lets modules tweak the assembled spec before it is served
type SpecMutator func(map[string]any)

var (
	mu       sync.Mutex
	ops      []Operation
	mutators []SpecMutator
)

// Describe records operations under tag. Modules call it from New
func Describe(tag string, list ...Operation) {
	mu.Lock()
	defer mu.Unlock()
	for _, op := range list {
		op.Tag = tag
		op.Method = strings.ToLower(op.Method)
		i := slices.IndexFunc(ops, func(o Operation) bool { return o.Method == op.Method && o.Path == op.Path })
		if i >= 0 {
			ops[i] = op
			continue
		}
		ops = append(ops, op)
	}
}

// Register adds a spec mutator
func Register(m SpecMutator) {
	if m == nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	mutators = append(mutators, m)
}

// Spec assembles the OpenAPI 3 document
func Spec(title, version string) map[string]any {
	mu.Lock()
	defer mu.Unlock()

	paths := map[string]any{}
	for _, op := range ops {
		item, _ := paths[op.Path].(map[string]any)
		if item == nil {
			item = map[string]any{}
			paths[op.Path] = item
		}
		item[op.Method] = operationDoc(op)
	}

	spec := map[string]any{
		"openapi": "3.0.3",
		"info":    map[string]any{"title": title, "version": version},
		"servers": []any{map[string]any{"url": "/api/v1"}},
		"paths":   paths,
		"components": map[string]any{"schemas": map[string]any{
			"Envelope": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"status_code": map[string]any{"type": "integer"},
					"status":      map[string]any{"type": "string"},
					"code":        map[string]any{"type": "integer"},
					"error":       map[string]any{"type": "string"},
					"field":       map[string]any{"type": "string"},
					"request_id":  map[string]any{"type": "string"},
					"data":        map[string]any{},
				},
			},
		}},
	}
	for _, m := range mutators {
		m(spec)
	}
	return spec
}

func operationDoc(op Operation) map[string]any {
	envelope := map[string]any{"$ref": "#/components/schemas/Envelope"}
	content := map[string]any{"application/json": map[string]any{"schema": envelope}}
	doc := map[string]any{
		"summary": op.Summary,
		"tags":    []string{op.Tag},
		"responses": map[string]any{
			"200":     map[string]any{"description": "OK", "content": content},
			"default": map[string]any{"description": "Error", "content": content},
		},
	}
	var params []any
	for seg := range strings.SplitSeq(op.Path, "/") {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			params = append(params, map[string]any{
				"name": strings.Trim(seg, "{}"), "in": "path", "required": true,
				"schema": map[string]any{"type": "string"},
			})
		}
	}
	if params != nil {
		doc["parameters"] = params
	}
	if len(op.Body) > 0 {
		props := map[string]any{}
		for name, typ := range op.Body {
			props[name] = map[string]any{"type": typ}
		}
		doc["requestBody"] = map[string]any{
			"required": true,
			"content": map[string]any{"application/json": map[string]any{
				"schema": map[string]any{"type": "object", "properties": props},
			}},
		}
	}
	return doc
}

func serveDocJSON(title, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_ = json.NewEncoder(w).Encode(Spec(title, version))
	}
}

// reset clears registrations for tests
func reset() {
	mu.Lock()
	defer mu.Unlock()
	ops, mutators = nil, nil
}
