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

package dataset

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gorse-io/ratelab/base"
	"github.com/juju/errors"
)

// LoadCSV reads "user,item,rating[,timestamp]" lines. Timestamps are unix
// seconds and populate the Timestamps side channel.
func LoadCSV(path, sep string, header bool) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer file.Close()
	data := NewDataset()
	timestamps := make(map[Rating]time.Time)
	err = base.ReadLines(bufio.NewScanner(file), sep, func(line int, fields []string) error {
		if header && line == 0 {
			return nil
		}
		if len(fields) < 3 {
			return errors.NotValidf("line %d of %s has %d fields", line+1, path, len(fields))
		}
		userId, err := strconv.ParseInt(strings.TrimSpace(fields[0]), 10, 32)
		if err != nil {
			return errors.Annotatef(err, "line %d", line+1)
		}
		itemId, err := strconv.ParseInt(strings.TrimSpace(fields[1]), 10, 32)
		if err != nil {
			return errors.Annotatef(err, "line %d", line+1)
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 32)
		if err != nil {
			return errors.Annotatef(err, "line %d", line+1)
		}
		if previous := data.GetRating(int32(userId), int32(itemId)); previous != NotRated {
			delete(timestamps, Rating{UserId: int32(userId), ItemId: int32(itemId), Value: previous})
		}
		rating := data.AddRating(int32(userId), int32(itemId), float32(value))
		if len(fields) > 3 {
			seconds, err := strconv.ParseInt(strings.TrimSpace(fields[3]), 10, 64)
			if err != nil {
				return errors.Annotatef(err, "line %d", line+1)
			}
			timestamps[rating] = time.Unix(seconds, 0)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	if len(timestamps) > 0 {
		data.AddExtraInformation(Timestamps, timestamps)
	}
	return data, nil
}
