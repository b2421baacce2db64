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
	"context"

	"github.com/gorse-io/ratelab/dataset"
	"github.com/gorse-io/ratelab/storage"
	"github.com/juju/errors"
	"github.com/spf13/cobra"
)

var importCommand = &cobra.Command{
	Use:   "import <csv> <dsn>",
	Short: "Import ratings from a CSV file into a database table",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		sep, _ := cmd.Flags().GetString("sep")
		header, _ := cmd.Flags().GetBool("header")
		table, _ := cmd.Flags().GetString("table")
		if err := importRatings(context.Background(), args[0], sep, header, args[1], table); err != nil {
			fatal("failed to import ratings", err)
		}
	},
}

func init() {
	rootCommand.AddCommand(importCommand)
	importCommand.Flags().String("sep", ",", "separator of the CSV file")
	importCommand.Flags().Bool("header", false, "skip the first line")
	importCommand.Flags().String("table", "ratings", "table to import into")
}

func importRatings(ctx context.Context, path, sep string, header bool, dsn, table string) error {
	data, err := dataset.LoadCSV(path, sep, header)
	if err != nil {
		return errors.Trace(err)
	}
	db, err := storage.Open(dsn)
	if err != nil {
		return errors.Trace(err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	return errors.Trace(storage.SaveRatings(ctx, db, table, data))
}
