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

package progress

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ProgressTestSuite struct {
	suite.Suite
	tracer *Tracer
}

func (suite *ProgressTestSuite) SetupTest() {
	suite.tracer = NewTracer("evaluate")
}

func (suite *ProgressTestSuite) TestLeafProgress() {
	_, span := suite.tracer.Start(context.Background(), "sgd", 10)
	list := suite.tracer.List()
	suite.Len(list, 1)
	suite.Equal("evaluate", list[0].Tracer)
	suite.Equal("sgd", list[0].Name)
	suite.Equal(StatusRunning, list[0].Status)
	suite.Equal(10, list[0].Total)
	suite.Zero(list[0].Count)

	span.Add(3)
	suite.Equal(3, suite.tracer.List()[0].Count)

	span.End()
	list = suite.tracer.List()
	suite.Equal(StatusComplete, list[0].Status)
	suite.Equal(10, list[0].Count)
	suite.False(list[0].FinishTime.Before(list[0].StartTime))

	span.Fail(errors.New("diverged"))
	list = suite.tracer.List()
	suite.Equal(StatusFailed, list[0].Status)
	suite.Equal("diverged", list[0].Error)
}

func (suite *ProgressTestSuite) TestChildProgress() {
	ctx, root := suite.tracer.Start(context.Background(), "round", 2)
	_, child := Start(ctx, "epochs", 50)
	child.Add(20)
	list := suite.tracer.List()
	suite.Len(list, 1)
	suite.Equal("epochs", list[0].Name)
	suite.Equal(20, list[0].Count)
	suite.Equal(50, list[0].Total)

	child.End()
	root.Add(1)
	list = suite.tracer.List()
	suite.Equal("round", list[0].Name)
	suite.Equal(1, list[0].Count)
}

func (suite *ProgressTestSuite) TestDetachedSpan() {
	ctx := context.Background()
	newCtx, span := Start(ctx, "orphan", 5)
	suite.Equal(ctx, newCtx)
	span.Add(5)
	suite.Equal(5, span.Count())
	suite.Empty(suite.tracer.List())
}

func TestProgressTestSuite(t *testing.T) {
	suite.Run(t, new(ProgressTestSuite))
}
