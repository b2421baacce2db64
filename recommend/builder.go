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

package recommend

import (
	"github.com/gorse-io/ratelab/dataset"
	"github.com/gorse-io/ratelab/model"
	"github.com/gorse-io/ratelab/model/fm"
	"github.com/gorse-io/ratelab/model/mf"
	"github.com/juju/errors"
)

// Algorithm types.
const (
	TypeSGD         = "sgd"
	TypeParallelSGD = "parallel_sgd"
	TypeSVDpp       = "svdpp"
	TypeFM          = "fm"
)

var Types = []string{TypeSGD, TypeParallelSGD, TypeSVDpp, TypeFM}

// Builder creates a recommender for a training set.
type Builder func(trainSet *dataset.Dataset) (Recommender, error)

// NewFactorizer creates a factorizer of an MF algorithm type.
func NewFactorizer(typ string, params model.Params) (mf.Factorizer, error) {
	switch typ {
	case TypeSGD:
		return mf.NewSGD(params), nil
	case TypeParallelSGD:
		return mf.NewParallelSGD(params), nil
	case TypeSVDpp:
		return mf.NewSVDpp(params), nil
	}
	return nil, errors.NotSupportedf("factorizer %s", typ)
}

// Schema returns the hyper-parameter schema of an algorithm type.
func Schema(typ string) (model.Schema, error) {
	if typ == TypeFM {
		machine, err := fm.New(nil, nil)
		if err != nil {
			return nil, errors.Trace(err)
		}
		return machine.Schema(), nil
	}
	factorizer, err := NewFactorizer(typ, nil)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return factorizer.Schema(), nil
}

// NewBuilder parses string hyper-parameters with the schema of an algorithm
// type. Configuration errors are reported here rather than at training time.
func NewBuilder(typ string, values map[string]string, source fm.ContextSource) (Builder, error) {
	schema, err := Schema(typ)
	if err != nil {
		return nil, errors.Trace(err)
	}
	params, err := schema.Parse(values)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if typ == TypeFM {
		if _, err = fm.New(params, source); err != nil {
			return nil, errors.Trace(err)
		}
		return func(trainSet *dataset.Dataset) (Recommender, error) {
			machine, err := fm.New(params.Copy(), source)
			if err != nil {
				return nil, errors.Trace(err)
			}
			return NewFM(machine, trainSet), nil
		}, nil
	}
	return func(trainSet *dataset.Dataset) (Recommender, error) {
		factorizer, err := NewFactorizer(typ, params.Copy())
		if err != nil {
			return nil, errors.Trace(err)
		}
		return NewMF(factorizer, trainSet), nil
	}, nil
}
