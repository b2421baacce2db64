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

package main

import (
	"encoding/json"
	"fmt"

	"github.com/gorse-io/ratelab/recommend"
	"github.com/invopop/jsonschema"
	"github.com/juju/errors"
	"github.com/spf13/cobra"
)

var schemaCommand = &cobra.Command{
	Use:   "schema [type]",
	Short: "Print JSON schemas of algorithm hyper-parameters",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		text, err := exportSchema(args)
		if err != nil {
			fatal("failed to export schema", err)
		}
		fmt.Println(text)
	},
}

func init() {
	rootCommand.AddCommand(schemaCommand)
}

// exportSchema renders the schema of one algorithm type, or of every type
// keyed by type when none is given.
func exportSchema(types []string) (string, error) {
	if len(types) == 0 {
		types = recommend.Types
	}
	schemas := make(map[string]*jsonschema.Schema, len(types))
	for _, typ := range types {
		schema, err := recommend.Schema(typ)
		if err != nil {
			return "", errors.Trace(err)
		}
		schemas[typ] = schema.JSONSchema(typ)
	}
	var value any = schemas
	if len(types) == 1 {
		value = schemas[types[0]]
	}
	text, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return "", errors.Trace(err)
	}
	return string(text), nil
}
