package embedding

import "math"

// Adam はパラメータごとの一次・二次モーメントを持つ最適化器。
//
// ステップカウンタ t は全パラメータで共有され、Update の呼び出し1回ごとに
// 1つ進む。バイアス補正は学習率側にまとめて掛ける:
//
//	lr_t = lr * sqrt(1 - β2^t) / (1 - β1^t)
//	θ -= lr_t * m / sqrt(v + ε)
type Adam struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64

	m, v []float64
	t    int

	// β^t の累積積。math.Pow を毎回呼ばずに済む
	beta1Pow, beta2Pow float64
}

// NewAdam returns an optimizer for size parameters.
func NewAdam(size int, learningRate, beta1, beta2, epsilon float64) *Adam {
	return &Adam{
		LearningRate: learningRate,
		Beta1:        beta1,
		Beta2:        beta2,
		Epsilon:      epsilon,
		m:            make([]float64, size),
		v:            make([]float64, size),
		beta1Pow:     1,
		beta2Pow:     1,
	}
}

// Update advances the shared step counter and returns the delta to subtract
// from parameter idx given its gradient.
func (a *Adam) Update(idx int, grad float64) float64 {
	a.t++
	a.beta1Pow *= a.Beta1
	a.beta2Pow *= a.Beta2

	a.m[idx] = a.Beta1*a.m[idx] + (1-a.Beta1)*grad
	a.v[idx] = a.Beta2*a.v[idx] + (1-a.Beta2)*grad*grad

	lr := a.LearningRate * math.Sqrt(1-a.beta2Pow) / (1 - a.beta1Pow)
	return lr * a.m[idx] / math.Sqrt(a.v[idx]+a.Epsilon)
}

// Steps returns the number of updates applied so far.
func (a *Adam) Steps() int { return a.t }
