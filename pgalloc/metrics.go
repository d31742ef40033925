// Copyright The gnumach-go Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pgalloc

import (
	"bytes"
	"io"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"
)

// WriteMetrics renders a Prometheus text-exposition snapshot of the
// allocator's per-segment capacity/free counts and the direct-map
// mem_size/mem_free totals (§6 info_all/mem_size/mem_free). This is
// additive instrumentation: it never runs on an Alloc/Free fast path. It
// reads the segments' atomic free-page counters and, through MemFree, each
// per-CPU cache's page count under that cache's lock.
func (a *Allocator) WriteMetrics(w io.Writer) error {
	families := []*dto.MetricFamily{
		a.segGauge("pgalloc_segment_pages_total", "Total pages in a loaded segment.", func(s *segment) float64 {
			return float64(len(s.pages))
		}),
		a.segGauge("pgalloc_segment_pages_free", "Free pages in a loaded segment's buddy free lists, not counting pages held in per-CPU caches.", func(s *segment) float64 {
			return float64(s.nrFreePages.Load())
		}),
		scalarGauge("pgalloc_mem_size_bytes", "Byte capacity of segments up to DIRECTMAP.", float64(a.MemSize())),
		scalarGauge("pgalloc_mem_free_pages", "Free pages in segments up to DIRECTMAP.", float64(a.MemFree())),
	}

	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, expfmt.FmtText)
	for _, fam := range families {
		if err := enc.Encode(fam); err != nil {
			return err
		}
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func (a *Allocator) segGauge(name, help string, value func(*segment) float64) *dto.MetricFamily {
	fam := &dto.MetricFamily{
		Name: proto.String(name),
		Help: proto.String(help),
		Type: dto.MetricType_GAUGE.Enum(),
	}
	for i, seg := range a.segs {
		fam.Metric = append(fam.Metric, &dto.Metric{
			Label: []*dto.LabelPair{
				{Name: proto.String("segment"), Value: proto.String(a.SegName(i))},
			},
			Gauge: &dto.Gauge{Value: proto.Float64(value(seg))},
		})
	}
	return fam
}

func scalarGauge(name, help string, value float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: proto.String(name),
		Help: proto.String(help),
		Type: dto.MetricType_GAUGE.Enum(),
		Metric: []*dto.Metric{
			{Gauge: &dto.Gauge{Value: proto.Float64(value)}},
		},
	}
}
