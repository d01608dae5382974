package influx

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/theirongolddev/tburn/internal/model"
)

type fakeWriter struct {
	points []*write.Point
	err    error
}

func (f *fakeWriter) WritePoint(_ context.Context, point ...*write.Point) error {
	f.points = append(f.points, point...)
	return f.err
}

func testSnapshot() *model.Snapshot {
	h0 := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	return &model.Snapshot{
		At:   time.Date(2025, 3, 10, 14, 5, 0, 0, time.UTC),
		Home: model.HomeInfo{ID: "home-1", Currency: "NOK"},
		Values: map[model.MetricKey]*float64{
			model.EstSubsidy:      model.Float(0.42),
			model.PeakConsumption: nil,
			model.GridPrice:       model.Float(0.3),
		},
		Enabled:    []model.MetricKey{model.PeakConsumption, model.EstSubsidy, model.GridPrice},
		GridPrices: map[time.Time]float64{h0.Add(time.Hour): 0.31, h0: 0.3},
	}
}

func TestPoints(t *testing.T) {
	points := Points(testSnapshot())
	if len(points) != 3 {
		t.Fatalf("points = %d, want 3 (metrics + 2 grid hours)", len(points))
	}

	m := points[0]
	if m.Name() != metricsMeasurement {
		t.Fatalf("measurement = %q, want %q", m.Name(), metricsMeasurement)
	}
	fields := make(map[string]interface{})
	for _, f := range m.FieldList() {
		fields[f.Key] = f.Value
	}
	if _, ok := fields["peak_consumption"]; ok {
		t.Fatal("absent metric written as a field")
	}
	if v, ok := fields["est_subsidy"].(float64); !ok || v != 0.42 {
		t.Fatalf("est_subsidy field = %v, want 0.42", fields["est_subsidy"])
	}
	tags := make(map[string]string)
	for _, tag := range m.TagList() {
		tags[tag.Key] = tag.Value
	}
	if tags["home_id"] != "home-1" || tags["currency"] != "NOK" {
		t.Fatalf("tags = %v", tags)
	}

	if points[1].Name() != gridMeasurement || !points[1].Time().Before(points[2].Time()) {
		t.Fatalf("grid points not in hour order")
	}
}

func TestPoints_GridDisabled(t *testing.T) {
	snap := testSnapshot()
	snap.Enabled = []model.MetricKey{model.EstSubsidy}
	if got := len(Points(snap)); got != 1 {
		t.Fatalf("points = %d, want 1", got)
	}
	if Points(nil) != nil {
		t.Fatal("Points(nil) != nil")
	}
}

func TestPublish(t *testing.T) {
	w := &fakeWriter{}
	c := &Client{writer: w}
	if err := c.Publish(context.Background(), testSnapshot()); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(w.points) != 3 {
		t.Fatalf("written = %d, want 3", len(w.points))
	}

	w.err = errors.New("bucket not found")
	if err := c.Publish(context.Background(), testSnapshot()); !errors.Is(err, w.err) {
		t.Fatalf("err = %v, want wrapped writer error", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
