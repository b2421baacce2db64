// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package model

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

type ParamType string

const (
	TypeBool   ParamType = "bool"
	TypeInt    ParamType = "int"
	TypeString ParamType = "string"
	TypeEnum   ParamType = "enum"
	TypeFloat  ParamType = "float"
	TypePath   ParamType = "path"
)

// ParamSpec describes one tunable hyper-parameter.
type ParamSpec struct {
	Name        ParamName
	Description string
	Type        ParamType
	Min         *float64
	Max         *float64
	Enum        []string
	Default     any
	Optional    bool
}

// Schema is the declarative descriptor of a model's hyper-parameters. It is
// consumed by configuration loading and rendered for external editors.
type Schema []ParamSpec

func (s Schema) Lookup(name ParamName) (ParamSpec, bool) {
	return lo.Find(s, func(spec ParamSpec) bool {
		return spec.Name == name
	})
}

// Defaults returns default values of all parameters that have one.
func (s Schema) Defaults() Params {
	params := make(Params)
	for _, spec := range s {
		if spec.Default != nil {
			params[spec.Name] = spec.Default
		}
	}
	return params
}

// Parse converts string values into typed Params. Unset parameters take their
// defaults. Unknown names, malformed values and out of bound values are
// rejected.
func (s Schema) Parse(values map[string]string) (Params, error) {
	params := s.Defaults()
	for name, text := range values {
		spec, ok := s.Lookup(ParamName(name))
		if !ok {
			return nil, errors.NotValidf("parameter %s", name)
		}
		value, err := spec.Parse(text)
		if err != nil {
			return nil, errors.Trace(err)
		}
		params[spec.Name] = value
	}
	for _, spec := range s {
		if _, exist := params[spec.Name]; !exist && !spec.Optional {
			return nil, errors.NotValidf("missing parameter %s", spec.Name)
		}
	}
	return params, nil
}

// Validate checks typed Params against the schema.
func (s Schema) Validate(params Params) error {
	for name, value := range params {
		spec, ok := s.Lookup(name)
		if !ok {
			return errors.NotValidf("parameter %s", name)
		}
		if _, err := spec.Parse(format(value)); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

func format(value any) string {
	switch value := value.(type) {
	case string:
		return value
	case float32:
		return strconv.FormatFloat(float64(value), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(value, 'g', -1, 64)
	default:
		b, _ := json.Marshal(value)
		return string(b)
	}
}

// Parse converts the string form of a value.
func (spec ParamSpec) Parse(text string) (any, error) {
	text = strings.TrimSpace(text)
	switch spec.Type {
	case TypeBool:
		value, err := strconv.ParseBool(text)
		if err != nil {
			return nil, errors.NewNotValid(err, string(spec.Name))
		}
		return value, nil
	case TypeInt:
		value, err := strconv.Atoi(text)
		if err != nil {
			return nil, errors.NewNotValid(err, string(spec.Name))
		}
		if err = spec.checkBounds(float64(value)); err != nil {
			return nil, err
		}
		return value, nil
	case TypeFloat:
		value, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, errors.NewNotValid(err, string(spec.Name))
		}
		if err = spec.checkBounds(value); err != nil {
			return nil, err
		}
		return value, nil
	case TypeEnum:
		if !lo.Contains(spec.Enum, text) {
			return nil, errors.NotValidf("%s %q, expect one of %v", spec.Name, text, spec.Enum)
		}
		return text, nil
	case TypePath:
		if _, err := os.Stat(text); err != nil {
			return nil, errors.NewNotValid(err, string(spec.Name))
		}
		return text, nil
	case TypeString:
		return text, nil
	default:
		return nil, errors.NotSupportedf("parameter type %s", spec.Type)
	}
}

func (spec ParamSpec) checkBounds(value float64) error {
	if spec.Min != nil && value < *spec.Min {
		return errors.NotValidf("%s %v less than %v", spec.Name, value, *spec.Min)
	}
	if spec.Max != nil && value > *spec.Max {
		return errors.NotValidf("%s %v greater than %v", spec.Name, value, *spec.Max)
	}
	return nil
}

// JSONSchema renders the schema as an object schema for settings editors.
func (s Schema) JSONSchema(title string) *jsonschema.Schema {
	properties := jsonschema.NewProperties()
	var required []string
	for _, spec := range s {
		property := &jsonschema.Schema{
			Description: spec.Description,
			Default:     spec.Default,
		}
		switch spec.Type {
		case TypeBool:
			property.Type = "boolean"
		case TypeInt:
			property.Type = "integer"
		case TypeFloat:
			property.Type = "number"
		case TypeEnum:
			property.Type = "string"
			property.Enum = lo.ToAnySlice(spec.Enum)
		case TypePath:
			property.Type = "string"
			property.Format = "path"
		default:
			property.Type = "string"
		}
		if spec.Min != nil {
			property.Minimum = json.Number(strconv.FormatFloat(*spec.Min, 'g', -1, 64))
		}
		if spec.Max != nil {
			property.Maximum = json.Number(strconv.FormatFloat(*spec.Max, 'g', -1, 64))
		}
		properties.Set(string(spec.Name), property)
		if !spec.Optional {
			required = append(required, string(spec.Name))
		}
	}
	return &jsonschema.Schema{
		Version:              jsonschema.Version,
		Title:                title,
		Type:                 "object",
		Properties:           properties,
		Required:             required,
		AdditionalProperties: jsonschema.FalseSchema,
	}
}
