// Package influx writes snapshots to an InfluxDB v2 bucket.
package influx

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/theirongolddev/tburn/internal/config"
	"github.com/theirongolddev/tburn/internal/model"
)

const (
	metricsMeasurement = "tibber_metrics"
	gridMeasurement    = "tibber_grid_price"
)

type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// Client is a daemon sink backed by the blocking write API.
type Client struct {
	client influxdb2.Client
	writer pointWriter
}

// NewClient connects to InfluxDB and verifies it is reachable.
func NewClient(ctx context.Context, cfg config.InfluxDBConfig) (*Client, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	if _, err := client.Health(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("influx: connecting to %s: %w", cfg.URL, err)
	}

	return &Client{
		client: client,
		writer: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
	}, nil
}

// Name implements daemon.Sink.
func (c *Client) Name() string { return "influxdb" }

// Publish writes the snapshot's present metrics and grid prices.
func (c *Client) Publish(ctx context.Context, snap *model.Snapshot) error {
	points := Points(snap)
	if len(points) == 0 {
		return nil
	}
	if err := c.writer.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("influx: writing %d points: %w", len(points), err)
	}
	return nil
}

// Close closes the InfluxDB client.
func (c *Client) Close() error {
	if c.client != nil {
		c.client.Close()
	}
	return nil
}

// Points converts a snapshot into line-protocol points. Absent metrics are
// left out rather than written as zero.
func Points(snap *model.Snapshot) []*write.Point {
	if snap == nil {
		return nil
	}
	tags := map[string]string{"home_id": snap.Home.ID}
	if snap.Home.Currency != "" {
		tags["currency"] = snap.Home.Currency
	}

	fields := make(map[string]interface{})
	for _, key := range snap.Enabled {
		if v := snap.Value(key); v != nil {
			fields[string(key)] = *v
		}
	}

	var points []*write.Point
	if len(fields) > 0 {
		points = append(points, write.NewPoint(metricsMeasurement, tags, fields, snap.At))
	}

	if snap.IsEnabled(model.GridPrice) {
		for _, hour := range snap.SortedGridHours() {
			points = append(points, write.NewPoint(
				gridMeasurement,
				map[string]string{"home_id": snap.Home.ID},
				map[string]interface{}{"grid_price": snap.GridPrices[hour]},
				hour,
			))
		}
	}
	return points
}
