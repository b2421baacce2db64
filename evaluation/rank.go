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

import (
	"github.com/chewxy/math32"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/ratelab/dataset"
)

// Scorer scores a ranked list against the relevant items of a user.
type Scorer func(targetSet mapset.Set[int32], rankList []int32) float32

// NDCG means Normalized Discounted Cumulative Gain.
func NDCG(targetSet mapset.Set[int32], rankList []int32) float32 {
	// IDCG = \sum^{|REL|}_{i=1} \frac {1} {\log_2(i+1)}
	idcg := float32(0)
	for i := 0; i < targetSet.Cardinality() && i < len(rankList); i++ {
		idcg += 1.0 / math32.Log2(float32(i)+2.0)
	}
	// DCG = \sum^{N}_{i=1} \frac {2^{rel_i}-1} {\log_2(i+1)}
	dcg := float32(0)
	for i, itemId := range rankList {
		if targetSet.Contains(itemId) {
			dcg += 1.0 / math32.Log2(float32(i)+2.0)
		}
	}
	if idcg == 0 {
		return 0
	}
	return dcg / idcg
}

// Precision is the fraction of relevant items among the recommended items.
//
//	\frac{|relevant documents| \cap |retrieved documents|} {|{retrieved documents}|}
func Precision(targetSet mapset.Set[int32], rankList []int32) float32 {
	if len(rankList) == 0 {
		return 0
	}
	return float32(hits(targetSet, rankList)) / float32(len(rankList))
}

// Recall is the fraction of relevant items that have been recommended over the total
// amount of relevant items.
//
//	\frac{|relevant documents| \cap |retrieved documents|} {|{relevant documents}|}
func Recall(targetSet mapset.Set[int32], rankList []int32) float32 {
	return float32(hits(targetSet, rankList)) / float32(targetSet.Cardinality())
}

func hits(targetSet mapset.Set[int32], rankList []int32) int {
	hit := 0
	for _, itemId := range rankList {
		if targetSet.Contains(itemId) {
			hit++
		}
	}
	return hit
}

// RankEvaluator averages a Scorer over users with at least one relevant test
// item. Lists are cut to TopN.
type RankEvaluator struct {
	name               string
	scorer             Scorer
	TopN               int
	RelevanceThreshold float32
	testSet            *dataset.Dataset
	sum                float32
	count              int
}

func NewRankEvaluator(name string, scorer Scorer, topN int, threshold float32) *RankEvaluator {
	return &RankEvaluator{name: name, scorer: scorer, TopN: topN, RelevanceThreshold: threshold}
}

func NewNDCG(topN int, threshold float32) *RankEvaluator {
	return NewRankEvaluator("NDCG", NDCG, topN, threshold)
}

func NewPrecision(topN int, threshold float32) *RankEvaluator {
	return NewRankEvaluator("Precision", Precision, topN, threshold)
}

func NewRecall(topN int, threshold float32) *RankEvaluator {
	return NewRankEvaluator("Recall", Recall, topN, threshold)
}

func (e *RankEvaluator) Name() string {
	return e.name
}

func (e *RankEvaluator) Initialize(_, testSet *dataset.Dataset) {
	e.testSet = testSet
	e.sum, e.count = 0, 0
}

func (e *RankEvaluator) AddRecommendations(userId int32, items []int32) {
	targetSet := mapset.NewThreadUnsafeSet[int32]()
	for _, itemId := range e.testSet.UserRatedItems(userId) {
		if relevant(e.testSet, userId, itemId, e.RelevanceThreshold) {
			targetSet.Add(itemId)
		}
	}
	if targetSet.Cardinality() == 0 {
		return
	}
	e.sum += e.scorer(targetSet, items[:min(e.TopN, len(items))])
	e.count++
}

func (e *RankEvaluator) AddPrediction(dataset.Rating, float32) {}

func (e *RankEvaluator) GetEvaluationResult() float32 {
	if e.count == 0 {
		return 0
	}
	return e.sum / float32(e.count)
}
