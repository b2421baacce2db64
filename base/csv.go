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

package base

import (
	"bufio"
	"strings"

	"github.com/juju/errors"
)

// ReadLines parses fields of each line of a csv stream. Quoted fields may
// contain the separator, doubled quotes and line breaks. Parsing stops at the
// first error returned by handler.
func ReadLines(sc *bufio.Scanner, sep string, handler func(line int, fields []string) error) error {
	lineCount := 0
	fields := make([]string, 0)
	builder := strings.Builder{}
	quoted := false
	sepRunes := []rune(sep)
	for sc.Scan() {
		line := []rune(sc.Text())
		if quoted {
			builder.WriteString("\r\n")
		}
		for i := 0; i < len(line); i++ {
			switch {
			case !quoted && hasPrefix(line[i:], sepRunes):
				fields = append(fields, builder.String())
				builder.Reset()
				i += len(sepRunes) - 1
			case line[i] == '"' && quoted:
				if i+1 < len(line) && line[i+1] == '"' {
					i++
					builder.WriteRune('"')
				} else {
					quoted = false
				}
			case line[i] == '"':
				quoted = true
			default:
				builder.WriteRune(line[i])
			}
		}
		if quoted {
			continue
		}
		fields = append(fields, builder.String())
		builder.Reset()
		if len(fields) > 1 || fields[0] != "" {
			if err := handler(lineCount, fields); err != nil {
				return errors.Trace(err)
			}
			lineCount++
		}
		fields = make([]string, 0, len(fields))
	}
	if quoted {
		return errors.NotValidf("unterminated quote")
	}
	return errors.Trace(sc.Err())
}

func hasPrefix(line, prefix []rune) bool {
	if len(prefix) == 0 || len(line) < len(prefix) {
		return false
	}
	for i := range prefix {
		if line[i] != prefix[i] {
			return false
		}
	}
	return true
}
