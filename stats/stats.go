// Package stats computes goodness-of-fit statistics of a simulated series
// against observations. Pairs with a missing value on either side are
// skipped.
package stats

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

func pairs(obs, sim []float64) (o, s []float64) {
	n := len(obs)
	if len(sim) < n {
		n = len(sim)
	}
	o, s = make([]float64, 0, n), make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(obs[i]) || math.IsNaN(sim[i]) {
			continue
		}
		o = append(o, obs[i])
		s = append(s, sim[i])
	}
	return
}

func residuals(obs, sim []float64) []float64 {
	o, s := pairs(obs, sim)
	floats.Sub(o, s)
	return o
}

// SSE is the sum of squared residuals.
func SSE(obs, sim []float64) float64 {
	r := residuals(obs, sim)
	return floats.Dot(r, r)
}

func RMSE(obs, sim []float64) float64 {
	r := residuals(obs, sim)
	if len(r) == 0 {
		return math.NaN()
	}
	return math.Sqrt(floats.Dot(r, r) / float64(len(r)))
}

// Bias is the mean of sim - obs; positive when the model overestimates.
func Bias(obs, sim []float64) float64 {
	r := residuals(obs, sim)
	if len(r) == 0 {
		return math.NaN()
	}
	return -stat.Mean(r, nil)
}

// AvgDev is the mean absolute residual.
func AvgDev(obs, sim []float64) float64 {
	r := residuals(obs, sim)
	if len(r) == 0 {
		return math.NaN()
	}
	return floats.Norm(r, 1) / float64(len(r))
}

// NSE is the Nash-Sutcliffe efficiency.
func NSE(obs, sim []float64) float64 {
	o, s := pairs(obs, sim)
	if len(o) < 2 {
		return math.NaN()
	}
	mo := stat.Mean(o, nil)
	num, den := 0., 0.
	for i := range o {
		num += (o[i] - s[i]) * (o[i] - s[i])
		den += (o[i] - mo) * (o[i] - mo)
	}
	return 1 - num/den
}

// KGE is the Kling-Gupta efficiency, 1 - sqrt((r-1)^2 + (a-1)^2 + (b-1)^2)
// with r the correlation, a the ratio of standard deviations and b the ratio
// of means.
func KGE(obs, sim []float64) float64 {
	o, s := pairs(obs, sim)
	if len(o) < 2 {
		return math.NaN()
	}
	r := stat.Correlation(o, s, nil)
	a := stat.StdDev(s, nil) / stat.StdDev(o, nil)
	b := stat.Mean(s, nil) / stat.Mean(o, nil)
	return 1 - math.Sqrt((r-1)*(r-1)+(a-1)*(a-1)+(b-1)*(b-1))
}

// EVP is the explained variance percentage, floored at zero.
func EVP(obs, sim []float64) float64 {
	o, s := pairs(obs, sim)
	if len(o) < 2 {
		return math.NaN()
	}
	vo := stat.Variance(o, nil)
	floats.Sub(s, o)
	return math.Max(0, 100*(vo-stat.Variance(s, nil))/vo)
}

// RSquared is the squared Pearson correlation.
func RSquared(obs, sim []float64) float64 {
	o, s := pairs(obs, sim)
	if len(o) < 2 {
		return math.NaN()
	}
	r := stat.Correlation(o, s, nil)
	return r * r
}

// AIC is the Akaike information criterion of a least-squares fit with k
// parameters: n ln(SSE/n) + 2k.
func AIC(obs, sim []float64, k int) float64 {
	r := residuals(obs, sim)
	n := float64(len(r))
	return n*math.Log(floats.Dot(r, r)/n) + 2*float64(k)
}

// BIC is n ln(SSE/n) + k ln(n).
func BIC(obs, sim []float64, k int) float64 {
	r := residuals(obs, sim)
	n := float64(len(r))
	return n*math.Log(floats.Dot(r, r)/n) + float64(k)*math.Log(n)
}

type Summary struct {
	N        int     `yaml:"n"`
	RMSE     float64 `yaml:"rmse"`
	SSE      float64 `yaml:"sse"`
	Bias     float64 `yaml:"bias"`
	AvgDev   float64 `yaml:"avg_dev"`
	NSE      float64 `yaml:"nse"`
	KGE      float64 `yaml:"kge"`
	EVP      float64 `yaml:"evp"`
	RSquared float64 `yaml:"rsq"`
	AIC      float64 `yaml:"aic"`
	BIC      float64 `yaml:"bic"`
}

// Summarize computes all statistics for a fit with k varying parameters.
func Summarize(obs, sim []float64, k int) Summary {
	o, _ := pairs(obs, sim)
	return Summary{
		N:        len(o),
		RMSE:     RMSE(obs, sim),
		SSE:      SSE(obs, sim),
		Bias:     Bias(obs, sim),
		AvgDev:   AvgDev(obs, sim),
		NSE:      NSE(obs, sim),
		KGE:      KGE(obs, sim),
		EVP:      EVP(obs, sim),
		RSquared: RSquared(obs, sim),
		AIC:      AIC(obs, sim, k),
		BIC:      BIC(obs, sim, k),
	}
}
