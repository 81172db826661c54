package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/JonMunkholm/crmsync/internal/core"
)

const (
	// maxJSONBody bounds create and update request bodies.
	maxJSONBody = 1 << 20

	defaultPageSize = 50
	maxPageSize     = 500
)

// parseIntParam parses a non-negative integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 0 {
		return defaultVal
	}
	return i
}

// parseListOptions reads ?limit&offset and turns every other query
// parameter except ?active into an equality filter
// (?status=active&industry=Retail).
func parseListOptions(r *http.Request) core.ListOptions {
	opts := core.ListOptions{
		Limit:  parseIntParam(r, "limit", defaultPageSize),
		Offset: parseIntParam(r, "offset", 0),
	}
	if opts.Limit == 0 || opts.Limit > maxPageSize {
		opts.Limit = maxPageSize
	}

	for key, values := range r.URL.Query() {
		if key == "limit" || key == "offset" || key == "active" || len(values) == 0 {
			continue
		}
		opts.Filters = append(opts.Filters, core.Filter{Field: core.Field(key), Value: values[0]})
	}
	return opts
}

// parseID reads the {id} URL parameter.
func parseID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, core.ValidationError{Field: "id", Value: raw, Message: "invalid uuid"}
	}
	return id, nil
}

// decodeValues reads a JSON object of field values. Numbers and booleans
// are accepted and turned into their string form.
func decodeValues(w http.ResponseWriter, r *http.Request) (core.Values, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)

	var raw map[string]any
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return nil, errFileTooLarge
		}
		return nil, errBadJSON
	}

	v := make(core.Values, len(raw))
	for k, val := range raw {
		switch t := val.(type) {
		case nil:
			v[k] = ""
		case string:
			v[k] = t
		case json.Number:
			v[k] = t.String()
		case bool:
			v[k] = strconv.FormatBool(t)
		default:
			return nil, core.ValidationError{Field: k, Message: "value must be a string, number or boolean"}
		}
	}
	return v, nil
}

// fieldInfo describes one importable column.
type fieldInfo struct {
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Required   bool     `json:"required"`
	Aliases    []string `json:"aliases,omitempty"`
	EnumValues []string `json:"enum_values,omitempty"`
}

// kindInfo describes an entity kind for clients building import files.
type kindInfo struct {
	Kind   core.Kind   `json:"kind"`
	Label  string      `json:"label"`
	Fields []fieldInfo `json:"fields"`
}

func describeKind(def core.EntityDefinition) kindInfo {
	info := kindInfo{Kind: def.Info.Kind, Label: def.Info.Label}
	for _, spec := range def.FieldSpecs {
		info.Fields = append(info.Fields, fieldInfo{
			Name:       string(spec.Name),
			Type:       spec.Type.String(),
			Required:   spec.Required,
			Aliases:    spec.Aliases,
			EnumValues: spec.EnumValues,
		})
	}
	return info
}
