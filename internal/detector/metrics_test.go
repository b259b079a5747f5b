package detector

import (
	"context"
	"errors"
	"testing"

	"github.com/0xlemi/pitchfinder/internal/observe"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func counterTotal(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("metric %q is not an int64 sum", name)
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

func TestControllerMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	met, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatal(err)
	}

	src := &fakeSource{tail: errors.New("unplugged")}
	src.push(sines(440, 0, 5)...)
	src.push(silence(1)...)
	c := newTestController(t, src, func(o *Options) { o.Metrics = met })
	tickN(t, c, 6)
	if err := c.Tick(); err == nil {
		t.Fatal("expected read failure")
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatal(err)
	}

	tests := map[string]int64{
		"pitchfinder.frames":          6,
		"pitchfinder.stable_readings": 1,
		"pitchfinder.note_changes":    1,
		"pitchfinder.active_streams":  0,
		"pitchfinder.stream_errors":   1,
	}
	for name, want := range tests {
		if got := counterTotal(t, rm, name); got != want {
			t.Errorf("%s = %d, want %d", name, got, want)
		}
	}
}
