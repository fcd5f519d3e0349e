package openapi

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/unkn0wn-root/mizuview/internal/errdef"
)

// Parse loads an inferred OpenAPI document. Validation failures are not
// fatal: inferred specs are often incomplete, so only load errors are.
func Parse(ctx context.Context, service string, data []byte) (*Spec, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = false
	loader.Context = ctx

	document, err := loader.LoadFromData(data)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeParse, err, "load OpenAPI spec for %s", service)
	}

	spec := &Spec{
		Service: service,
		Servers: convertServers(document.Servers),
	}
	if document.Info != nil {
		spec.Title = document.Info.Title
		spec.Version = document.Info.Version
		spec.Description = document.Info.Description
	}
	spec.Operations = collectOperations(document)
	return spec, nil
}

func collectOperations(doc *openapi3.T) []Operation {
	if doc.Paths == nil {
		return nil
	}

	pathMap := doc.Paths.Map()
	paths := make([]string, 0, len(pathMap))
	for path := range pathMap {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var ops []Operation
	for _, path := range paths {
		item := doc.Paths.Value(path)
		if item == nil {
			continue
		}
		methodOrder := []struct {
			method string
			op     *openapi3.Operation
		}{
			{"GET", item.Get},
			{"PUT", item.Put},
			{"POST", item.Post},
			{"DELETE", item.Delete},
			{"OPTIONS", item.Options},
			{"HEAD", item.Head},
			{"PATCH", item.Patch},
			{"TRACE", item.Trace},
		}
		for _, entry := range methodOrder {
			if entry.op == nil {
				continue
			}
			ops = append(ops, normalizeOperation(path, entry.method, entry.op, item.Parameters))
		}
	}
	return ops
}

func normalizeOperation(path, method string, raw *openapi3.Operation, baseParams openapi3.Parameters) Operation {
	return Operation{
		ID:          raw.OperationID,
		Method:      method,
		Path:        path,
		Summary:     raw.Summary,
		Description: raw.Description,
		Tags:        append([]string(nil), raw.Tags...),
		Deprecated:  raw.Deprecated,
		Parameters:  mergeParameters(baseParams, raw.Parameters),
		Responses:   convertResponses(raw.Responses),
	}
}

func convertServers(servers openapi3.Servers) []Server {
	if len(servers) == 0 {
		return nil
	}
	result := make([]Server, 0, len(servers))
	for _, srv := range servers {
		if srv == nil {
			continue
		}
		result = append(result, Server{URL: resolveServerURL(srv), Description: srv.Description})
	}
	return result
}

func resolveServerURL(server *openapi3.Server) string {
	resolved := server.URL
	for name, variable := range server.Variables {
		if variable == nil {
			continue
		}
		replacement := variable.Default
		if replacement == "" && len(variable.Enum) > 0 {
			replacement = variable.Enum[0]
		}
		resolved = strings.ReplaceAll(resolved, fmt.Sprintf("{%s}", name), replacement)
	}
	return resolved
}

// mergeParameters lets operation parameters override path-level ones with
// the same location and name.
func mergeParameters(baseParams, opParams openapi3.Parameters) []Parameter {
	combined := make(map[string]Parameter)
	add := func(ref *openapi3.ParameterRef) {
		if ref == nil || ref.Value == nil {
			return
		}
		combined[ref.Value.In+":"+ref.Value.Name] = Parameter{
			Name:     ref.Value.Name,
			Location: ref.Value.In,
			Required: ref.Value.Required,
		}
	}
	for _, ref := range baseParams {
		add(ref)
	}
	for _, ref := range opParams {
		add(ref)
	}
	if len(combined) == 0 {
		return nil
	}

	keys := make([]string, 0, len(combined))
	for key := range combined {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	params := make([]Parameter, 0, len(keys))
	for _, key := range keys {
		params = append(params, combined[key])
	}
	return params
}

func convertResponses(responses *openapi3.Responses) []Response {
	if responses == nil || responses.Len() == 0 {
		return nil
	}
	codes := make([]string, 0, responses.Len())
	for code := range responses.Map() {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	result := make([]Response, 0, len(codes))
	for _, code := range codes {
		ref := responses.Value(code)
		if ref == nil || ref.Value == nil {
			continue
		}
		resp := Response{StatusCode: code}
		if ref.Value.Description != nil {
			resp.Description = *ref.Value.Description
		}
		result = append(result, resp)
	}
	return result
}
