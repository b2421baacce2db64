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

package fm

import (
	"context"
	"fmt"
	"iter"
	"math"
	"math/rand/v2"

	"github.com/gorse-io/ratelab/base/log"
	"github.com/gorse-io/ratelab/base/progress"
	"github.com/juju/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat/distuv"
)

// Priors of the hierarchical model sampled by mcmc.
const (
	priorAlpha = 1.0
	priorBeta  = 1.0
	priorGamma = 1.0
	priorMu    = 0.0
)

// coordinateTrainer solves one parameter at a time against cached residuals
// e_i = y_i - \hat y_i. The same update serves als (point estimate) and mcmc
// (draw from the conditional posterior).
type coordinateTrainer struct {
	fm      *FactorizationMachine
	data    *designMatrix
	columns [][]entry
	e       []float64 // residuals
	q       []float64 // \sum_j v_{j,f} x_j of the current factor
	rows    []int32
	hs      []float64
	// mcmc state, nil src means als
	src    rand.Source
	alpha  float64
	lambda struct {
		w float64
		v []float64
	}
	mu struct {
		w float64
		v []float64
	}
}

func newCoordinateTrainer(fm *FactorizationMachine, data *designMatrix) *coordinateTrainer {
	t := &coordinateTrainer{
		fm:      fm,
		data:    data,
		columns: data.columns(),
		e:       make([]float64, data.Count()),
		q:       make([]float64, data.Count()),
	}
	return t
}

// residuals recomputes e from the current parameters.
func (t *coordinateTrainer) residuals() {
	for i := range t.e {
		indices, values := t.data.Row(i)
		t.e[i] = float64(t.data.targets[i]) - float64(predict(t.fm.W0, t.fm.W, t.fm.V, indices, values, nil))
	}
}

func (t *coordinateTrainer) sse() float64 {
	var sum float64
	for _, e := range t.e {
		sum += e * e
	}
	return sum
}

// solve replaces theta given the design values h of the parameter on rows.
// The new value minimizes the regularized squared error, or is drawn from the
// conditional posterior N(mu', 1/precision) when sampling.
func (t *coordinateTrainer) solve(theta float64, rows []int32, hs []float64, lambda, mu float64) float64 {
	var num, den float64
	for k, row := range rows {
		h := hs[k]
		num += (t.e[row] + theta*h) * h
		den += h * h
	}
	var next float64
	if t.src == nil {
		if den+lambda == 0 {
			return theta
		}
		next = num / (den + lambda)
	} else {
		precision := t.alpha*den + lambda
		if precision == 0 {
			return theta
		}
		mean := (t.alpha*num + mu*lambda) / precision
		next = distuv.Normal{Mu: mean, Sigma: math.Sqrt(1 / precision), Src: t.src}.Rand()
	}
	delta := next - theta
	for k, row := range rows {
		t.e[row] -= delta * hs[k]
	}
	return next
}

func (t *coordinateTrainer) updateBias(lambda float64) {
	if cap(t.rows) < t.data.Count() {
		t.rows = make([]int32, 0, t.data.Count())
		t.hs = make([]float64, 0, t.data.Count())
	}
	t.rows, t.hs = t.rows[:0], t.hs[:0]
	for i := 0; i < t.data.Count(); i++ {
		t.rows = append(t.rows, int32(i))
		t.hs = append(t.hs, 1)
	}
	t.fm.W0 = float32(t.solve(float64(t.fm.W0), t.rows, t.hs, lambda, 0))
}

func (t *coordinateTrainer) gather(column []entry) {
	t.rows, t.hs = t.rows[:0], t.hs[:0]
	for _, e := range column {
		t.rows = append(t.rows, e.row)
	}
}

func (t *coordinateTrainer) updateWeights(lambda, mu float64) {
	for l, column := range t.columns {
		t.gather(column)
		for _, e := range column {
			t.hs = append(t.hs, float64(e.value))
		}
		t.fm.W[l] = float32(t.solve(float64(t.fm.W[l]), t.rows, t.hs, lambda, mu))
	}
}

func (t *coordinateTrainer) updateFactor(f int, lambda, mu float64) {
	for i := range t.q {
		indices, values := t.data.Row(i)
		var sum float64
		for j, index := range indices {
			sum += float64(t.fm.V[index][f] * values[j])
		}
		t.q[i] = sum
	}
	for l, column := range t.columns {
		v := float64(t.fm.V[l][f])
		t.gather(column)
		for _, e := range column {
			x := float64(e.value)
			t.hs = append(t.hs, x*(t.q[e.row]-v*x))
		}
		next := t.solve(v, t.rows, t.hs, lambda, mu)
		delta := next - v
		for _, e := range column {
			t.q[e.row] += delta * float64(e.value)
		}
		t.fm.V[l][f] = float32(next)
	}
}

// learnALS runs alternating least squares by coordinate descent.
func (fm *FactorizationMachine) learnALS(ctx context.Context, data *designMatrix) error {
	t := newCoordinateTrainer(fm, data)
	_, span := progress.Start(ctx, "FactorizationMachine.ALS", fm.nEpochs)
	for epoch := 1; epoch <= fm.nEpochs; epoch++ {
		if err := ctx.Err(); err != nil {
			span.Fail(err)
			return errors.Trace(err)
		}
		t.residuals()
		if fm.useBias {
			t.updateBias(float64(fm.reg0))
		}
		if fm.useWeights {
			t.updateWeights(float64(fm.reg1), 0)
		}
		for f := 0; f < fm.nFactors; f++ {
			t.updateFactor(f, float64(fm.reg2), 0)
		}
		if !fm.isFinite() {
			log.Logger().Error("fm diverged", zap.String("method", fm.method), zap.Int("epoch", epoch))
			span.Fail(ErrDiverged)
			return ErrDiverged
		}
		log.Logger().Debug(fmt.Sprintf("fit fm %v/%v", epoch, fm.nEpochs),
			zap.String("method", fm.method),
			zap.Float64("rmse", math.Sqrt(t.sse()/float64(data.Count()))))
		span.Add(1)
	}
	span.End()
	return nil
}

// gamma draws from Gamma(shape, rate).
func (t *coordinateTrainer) gamma(shape, rate float64) float64 {
	return distuv.Gamma{Alpha: shape, Beta: rate, Src: t.src}.Rand()
}

// weightSeq yields the elements of w as float64.
func weightSeq(w []float32) iter.Seq[float64] {
	return func(yield func(float64) bool) {
		for _, x := range w {
			if !yield(float64(x)) {
				return
			}
		}
	}
}

// factorSeq yields the f-th factor of every row of v.
func factorSeq(v [][]float32, f int) iter.Seq[float64] {
	return func(yield func(float64) bool) {
		for _, row := range v {
			if !yield(float64(row[f])) {
				return
			}
		}
	}
}

// sampleHyper draws the precision and the mean shared by a group of
// parameters.
func (t *coordinateTrainer) sampleHyper(values iter.Seq[float64], mu float64) (float64, float64) {
	var (
		count float64
		sum   float64
		sqr   float64
	)
	for theta := range values {
		count++
		sum += theta
		sqr += (theta - mu) * (theta - mu)
	}
	lambda := t.gamma((priorAlpha+count+1)/2, (priorGamma+sqr+priorBeta*(mu-priorMu)*(mu-priorMu))/2)
	mean := (priorBeta*priorMu + sum) / (priorBeta + count)
	mu = distuv.Normal{Mu: mean, Sigma: math.Sqrt(1 / ((priorBeta + count) * lambda)), Src: t.src}.Rand()
	return lambda, mu
}

// learnMCMC runs Gibbs sampling of the Bayesian factorization machine. The
// last NumSamples draws are kept and averaged at prediction time.
func (fm *FactorizationMachine) learnMCMC(ctx context.Context, data *designMatrix) error {
	rng := fm.GetRandomGenerator()
	t := newCoordinateTrainer(fm, data)
	t.src = rand.NewPCG(rng.Uint64(), rng.Uint64())
	t.lambda.w = float64(fm.reg1)
	t.lambda.v = make([]float64, fm.nFactors)
	t.mu.v = make([]float64, fm.nFactors)
	for f := range t.lambda.v {
		t.lambda.v[f] = float64(fm.reg2)
	}
	_, span := progress.Start(ctx, "FactorizationMachine.MCMC", fm.nEpochs)
	for epoch := 1; epoch <= fm.nEpochs; epoch++ {
		if err := ctx.Err(); err != nil {
			span.Fail(err)
			return errors.Trace(err)
		}
		t.residuals()
		t.alpha = t.gamma((priorAlpha+float64(data.Count()))/2, (priorGamma+t.sse())/2)
		if fm.useBias {
			t.updateBias(float64(fm.reg0))
		}
		if fm.useWeights {
			t.lambda.w, t.mu.w = t.sampleHyper(weightSeq(fm.W), t.mu.w)
			t.updateWeights(t.lambda.w, t.mu.w)
		}
		for f := 0; f < fm.nFactors; f++ {
			t.lambda.v[f], t.mu.v[f] = t.sampleHyper(factorSeq(fm.V, f), t.mu.v[f])
			t.updateFactor(f, t.lambda.v[f], t.mu.v[f])
		}
		if !fm.isFinite() {
			log.Logger().Error("fm diverged", zap.String("method", fm.method), zap.Int("epoch", epoch))
			span.Fail(ErrDiverged)
			return ErrDiverged
		}
		fm.retain()
		log.Logger().Debug(fmt.Sprintf("fit fm %v/%v", epoch, fm.nEpochs),
			zap.String("method", fm.method),
			zap.Float64("alpha", t.alpha),
			zap.Float64("rmse", math.Sqrt(t.sse()/float64(data.Count()))))
		span.Add(1)
	}
	span.End()
	return nil
}

// retain appends a copy of the current draw and drops the oldest one beyond
// NumSamples.
func (fm *FactorizationMachine) retain() {
	s := sample{w0: fm.W0, w: append([]float32(nil), fm.W...), v: make([][]float32, len(fm.V))}
	for i := range fm.V {
		s.v[i] = append([]float32(nil), fm.V[i]...)
	}
	fm.samples = append(fm.samples, s)
	if len(fm.samples) > fm.numSamples {
		fm.samples = fm.samples[len(fm.samples)-fm.numSamples:]
	}
}
