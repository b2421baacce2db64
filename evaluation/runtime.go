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

package evaluation

import "time"

// RuntimeResult records wall-clock costs of one algorithm in one round.
type RuntimeResult struct {
	Algorithm   string
	Round       int
	TrainTime   time.Duration
	PredictTime time.Duration
}

func NewRuntimeResult(algorithm string, round int) *RuntimeResult {
	return &RuntimeResult{Algorithm: algorithm, Round: round}
}

func (r *RuntimeResult) SetTrainTime(d time.Duration) {
	r.TrainTime = d
}

func (r *RuntimeResult) SetPredictTime(d time.Duration) {
	r.PredictTime = d
}

// OverallTime is the sum of train and predict time.
func (r *RuntimeResult) OverallTime() time.Duration {
	return r.TrainTime + r.PredictTime
}
