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

package mf

import (
	"github.com/chewxy/math32"
	"github.com/gorse-io/ratelab/common/floats"
	"github.com/gorse-io/ratelab/common/sparse"
	"github.com/gorse-io/ratelab/dataset"
)

// Factorization is the artifact of a Factorizer. The prediction \hat{r}_{ui}
// is set as:
//
//	\hat{r}_{ui} = μ + b_u + b_i + q_i^T(p_u + |N(u)|^{-1/2} Σ_{j∈N(u)} y_j)
//
// where the implicit term only exists for SVD++ factorizations.
type Factorization struct {
	UserIndex  *dataset.Index
	ItemIndex  *dataset.Index
	UserFactor [][]float32 // p_u
	ItemFactor [][]float32 // q_i
	UserBias   []float32   // b_u
	ItemBias   []float32   // b_i
	GlobalBias float32     // μ

	// SVD++
	ImplicitFactor [][]float32 // y_j
	history        []sparse.IdSet
}

// NFactors returns the dimension of latent factors.
func (f *Factorization) NFactors() int {
	if len(f.ItemFactor) > 0 {
		return len(f.ItemFactor[0])
	}
	if len(f.UserFactor) > 0 {
		return len(f.UserFactor[0])
	}
	return 0
}

// Predict predicts the rating of a pair by sparse ids. It returns false if
// either id is outside the training id space.
func (f *Factorization) Predict(userId, itemId int32) (float32, bool) {
	userIdx := f.UserIndex.ToNumber(userId)
	itemIdx := f.ItemIndex.ToNumber(itemId)
	if userIdx == dataset.NotId || itemIdx == dataset.NotId {
		return 0, false
	}
	return f.InternalPredict(userIdx, itemIdx), true
}

// InternalPredict predicts the rating of a pair by dense indices.
func (f *Factorization) InternalPredict(userIdx, itemIdx int32) float32 {
	ret := f.GlobalBias + f.UserBias[userIdx] + f.ItemBias[itemIdx]
	if f.ImplicitFactor != nil {
		buf := make([]float32, f.NFactors())
		f.userVector(userIdx, buf)
		return ret + floats.Dot(buf, f.ItemFactor[itemIdx])
	}
	return ret + floats.Dot(f.UserFactor[userIdx], f.ItemFactor[itemIdx])
}

// implicitSum writes |N(u)|^{-1/2} Σ_{j∈N(u)} y_j into dst and returns the
// normalization factor. The sum is rebuilt on every call by walking the
// user's history.
func (f *Factorization) implicitSum(userIdx int32, dst []float32) float32 {
	floats.Zero(dst)
	history := f.history[userIdx]
	if history.Len() == 0 {
		return 0
	}
	for it := history.Iterator(); it.HasNext(); {
		floats.Add(dst, f.ImplicitFactor[it.Next()])
	}
	norm := 1 / math32.Sqrt(float32(history.Len()))
	floats.MulConst(dst, norm)
	return norm
}

// userVector writes p_u plus the implicit term into dst.
func (f *Factorization) userVector(userIdx int32, dst []float32) {
	f.implicitSum(userIdx, dst)
	floats.Add(dst, f.UserFactor[userIdx])
}

func (f *Factorization) isFinite() bool {
	return !math32.IsNaN(f.GlobalBias) && !math32.IsInf(f.GlobalBias, 0) &&
		floats.IsFinite(f.UserBias) &&
		floats.IsFinite(f.ItemBias) &&
		floats.MatIsFinite(f.UserFactor) &&
		floats.MatIsFinite(f.ItemFactor) &&
		floats.MatIsFinite(f.ImplicitFactor)
}
