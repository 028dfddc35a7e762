//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/profile-tile-etl/internal/adapter/archive"
	kafkaadapter "github.com/couchcryptid/profile-tile-etl/internal/adapter/kafka"
	"github.com/couchcryptid/profile-tile-etl/internal/adapter/netcdf"
	"github.com/couchcryptid/profile-tile-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/profile-tile-etl/internal/config"
	"github.com/couchcryptid/profile-tile-etl/internal/domain"
	"github.com/couchcryptid/profile-tile-etl/internal/observability"
	"github.com/couchcryptid/profile-tile-etl/internal/pipeline"
)

var jan1990 = domain.NewMonth(1990, time.January)

// startKafka runs a single-node broker and returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := kafka.Run(ctx, "confluentinc/confluent-local:7.5.0", kafka.WithClusterID("test-cluster"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("terminate kafka container: %v", err)
		}
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// createTopic creates a single-partition topic through the cluster controller.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	cc, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer cc.Close()

	require.NoError(t, cc.CreateTopics(kafkago.TopicConfig{Topic: topic, NumPartitions: 1, ReplicationFactor: 1}))
}

type notification struct {
	Event   domain.TileWritten
	Key     string
	Headers map[string]string
}

func readNotification(ctx context.Context, t *testing.T, consumer *kafkago.Reader) notification {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read notification")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var tw domain.TileWritten
	require.NoError(t, json.Unmarshal(msg.Value, &tw))
	return notification{Event: tw, Key: string(msg.Key), Headers: headers}
}

func newConsumer(broker, topic string) *kafkago.Reader {
	return kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       topic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
		MaxWait:     500 * time.Millisecond,
	})
}

// TestNotifierRoundTrip publishes one notification and reads it back.
func TestNotifierRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, "tiles-roundtrip")

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaTopic: "tiles-roundtrip"}
	notifier := kafkaadapter.NewNotifier(cfg, slog.Default())
	defer notifier.Close()

	written := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tw := domain.TileWritten{
		RunID:     "run-1",
		Chunk:     "1990-01",
		Tile:      "10E_10N",
		Path:      "/out/1990-01/10E_10N.nc",
		Rows:      42,
		WrittenAt: written,
	}
	require.NoError(t, notifier.TileWritten(ctx, tw))

	consumer := newConsumer(broker, "tiles-roundtrip")
	defer consumer.Close()

	got := readNotification(ctx, t, consumer)
	assert.Equal(t, tw, got.Event)
	assert.Equal(t, "1990-01/10E_10N", got.Key)
	assert.Equal(t, "run-1", got.Headers["run_id"])
	assert.Equal(t, written.Format(time.RFC3339), got.Headers["written_at"])
}

func profile(station int64, lon, lat float64, at time.Time, levels int) domain.ProfileRecord {
	rec := domain.ProfileRecord{
		StationID:    station,
		Organization: "ME",
		DataType:     "BA",
		Platform:     "0001",
		Cruise:       "AT01",
		PositionFlag: 1,
		TimeFlag:     1,
		Longitude:    lon,
		Latitude:     lat,
		Time:         float64(at.Unix()),
	}
	for _, m := range []*domain.Measurement{&rec.Depth, &rec.Temperature, &rec.Salinity} {
		m.Fill = 99999
		m.Values = make([]float64, levels)
		m.Flags = make([]int, levels)
	}
	for i := range levels {
		rec.Depth.Values[i] = float64(10 * (i + 1))
		rec.Temperature.Values[i] = 20 - float64(i)
		rec.Salinity.Values[i] = 35
		rec.Depth.Flags[i], rec.Temperature.Flags[i], rec.Salinity.Flags[i] = 1, 1, 1
	}
	return rec
}

// TestPipelineEndToEnd runs one chunk from profile files to tile files,
// ledger records, and notifications on a real broker.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 180*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, "tiles-e2e")

	input := t.TempDir()
	archiveDir := filepath.Join(input, domain.ArchiveName("at", jan1990))
	require.NoError(t, os.MkdirAll(archiveDir, 0o755))
	day := time.Date(1990, 1, 10, 0, 0, 0, 0, time.UTC)
	profiles := []domain.ProfileRecord{
		profile(101, 12, 14, day, 3),
		profile(102, 15, 18, day.Add(time.Hour), 2),
		profile(103, -35, 40, day.Add(2*time.Hour), 4),
	}
	for _, p := range profiles {
		name := fmt.Sprintf("gtspp_%d_ba.nc", p.StationID)
		require.NoError(t, netcdf.WriteProfile(filepath.Join(archiveDir, name), p, netcdf.ProfileOptions{}))
	}

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaTopic: "tiles-e2e"}
	notifier := kafkaadapter.NewNotifier(cfg, slog.Default())
	defer notifier.Close()

	ledger, err := sqlite.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer ledger.Close()

	output := t.TempDir()
	p := pipeline.New(
		archive.DirExpander{Root: input},
		netcdf.NewReader("gtspp", domain.DefaultPolicy().Missing),
		netcdf.NewWriter(output, "run-e2e"),
		pipeline.Options{
			Regions:  []string{"at"},
			Workers:  2,
			Policy:   domain.DefaultPolicy(),
			RunID:    "run-e2e",
			Notifier: notifier,
			Ledger:   ledger,
		},
		slog.Default(),
		observability.NewMetricsForTesting(),
	)

	stats, err := p.Run(ctx, jan1990, jan1990)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.ProfilesAccepted)
	assert.Equal(t, int64(9), stats.RowsWritten)
	assert.Equal(t, int64(2), stats.TilesWritten)

	tile, err := netcdf.ReadTile(filepath.Join(output, "1990-01", "10E_10N.nc"))
	require.NoError(t, err)
	assert.Equal(t, 5, tile.Len())

	summary, ok, err := ledger.Chunk(ctx, jan1990)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(9), summary.Rows)
	assert.Len(t, summary.Tiles, 2)

	consumer := newConsumer(broker, "tiles-e2e")
	defer consumer.Close()

	tiles := map[string]int{}
	for range 2 {
		n := readNotification(ctx, t, consumer)
		assert.Equal(t, "run-e2e", n.Event.RunID)
		assert.Equal(t, "1990-01", n.Event.Chunk)
		tiles[n.Event.Tile] = n.Event.Rows
	}
	assert.Equal(t, map[string]int{"10E_10N": 5, "-40E_40N": 4}, tiles)
}
