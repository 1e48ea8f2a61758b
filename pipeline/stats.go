/*
DESCRIPTION
  stats.go provides summary statistics of the frame rates measured when
  benchmarking the motion mask filter.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package pipeline

import (
	"sort"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Stats summarises frame rate samples in frames per second.
type Stats struct {
	Samples int
	Mean    float64
	StdDev  float64
	Median  float64
	Min     float64
	Max     float64
}

// fpsStats holds frame rate samples.
type fpsStats struct {
	mu      sync.Mutex
	samples []float64
}

func (s *fpsStats) add(fps float64) {
	s.mu.Lock()
	s.samples = append(s.samples, fps)
	s.mu.Unlock()
}

func (s *fpsStats) summary() Stats {
	s.mu.Lock()
	x := append([]float64(nil), s.samples...)
	s.mu.Unlock()

	if len(x) == 0 {
		return Stats{}
	}
	sort.Float64s(x)
	st := Stats{
		Samples: len(x),
		Median:  stat.Quantile(0.5, stat.Empirical, x, nil),
		Min:     floats.Min(x),
		Max:     floats.Max(x),
	}
	st.Mean, st.StdDev = stat.MeanStdDev(x, nil)
	if len(x) == 1 {
		st.StdDev = 0
	}
	return st
}
