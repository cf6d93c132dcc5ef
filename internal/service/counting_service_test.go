package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatecount-service/internal/domain/gate"
	"gatecount-service/internal/service"
	"gatecount-service/internal/servicetest"
)

var testTime = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

func testGateConfig() gate.GateConfig {
	return gate.GateConfig{
		Mode:            gate.ModeGate,
		GateA:           &gate.LineSegment{P1: gate.Point{X: 0.1, Y: 0.5}, P2: gate.Point{X: 0.1, Y: 0.9}},
		GateB:           &gate.LineSegment{P1: gate.Point{X: 0.3, Y: 0.5}, P2: gate.Point{X: 0.3, Y: 0.9}},
		DirectionLabels: gate.DirectionLabels{AToB: "northbound", BToA: "southbound"},
	}
}

func crossingTrajectory(cameraID, trackID string) gate.TrajectoryPayload {
	return gate.TrajectoryPayload{
		CameraID: cameraID,
		TrackID:  trackID,
		Points: []gate.TrajectoryPoint{
			{Time: testTime, Point: gate.Point{X: 0.05, Y: 0.7}},
			{Time: testTime.Add(time.Second), Point: gate.Point{X: 0.2, Y: 0.7}},
			{Time: testTime.Add(2 * time.Second), Point: gate.Point{X: 0.35, Y: 0.7}},
		},
	}
}

func newTestServices(t *testing.T) (*servicetest.Store, *service.GateService, *service.CountingService) {
	t.Helper()
	store := servicetest.NewStore()
	log := zerolog.Nop()
	gates := service.NewGateService(store, log)
	counting := service.NewCountingService(store, gates, log, "vehicle")
	return store, gates, counting
}

func activateConfig(t *testing.T, gates *service.GateService, cameraID string, cfg gate.GateConfig) *service.ActiveGate {
	t.Helper()
	ctx := context.Background()
	_, err := gates.SaveDraft(ctx, cameraID, cfg)
	require.NoError(t, err)
	handle, err := gates.Activate(ctx, cameraID)
	require.NoError(t, err)
	return handle
}

func TestProcessTrajectoryRecordsCrossing(t *testing.T) {
	store, gates, counting := newTestServices(t)
	handle := activateConfig(t, gates, "cam-1", testGateConfig())

	result, err := counting.ProcessTrajectory(context.Background(), crossingTrajectory("cam-1", "trk-1"))
	require.NoError(t, err)

	assert.True(t, result.Crossed)
	assert.Equal(t, gate.DirectionAToB, result.Direction)
	assert.Equal(t, "northbound", result.DirectionLabel)
	assert.Equal(t, handle.Version, result.ConfigVersion)
	require.NotNil(t, result.CrossingTime)
	assert.Equal(t, testTime.Add(2*time.Second), *result.CrossingTime)

	crossings := store.Crossings()
	require.Len(t, crossings, 1)
	record := crossings[0]
	assert.Equal(t, "cam-1", record.CameraID)
	assert.Equal(t, "trk-1", record.TrackID)
	assert.Equal(t, handle.Version, record.ConfigVersion)
	require.NotNil(t, record.ObjectClass)
	assert.Equal(t, "vehicle", *record.ObjectClass) // default class applied
	assert.Equal(t, int64(1), store.CountFor("cam-1", "2026-06-01", "a_to_b", "vehicle"))
}

func TestProcessTrajectoryNoCrossing(t *testing.T) {
	store, gates, counting := newTestServices(t)
	activateConfig(t, gates, "cam-1", testGateConfig())

	payload := crossingTrajectory("cam-1", "trk-1")
	payload.Points = payload.Points[:2] // ends between the gate lines

	result, err := counting.ProcessTrajectory(context.Background(), payload)
	require.NoError(t, err)
	assert.False(t, result.Crossed)
	assert.Empty(t, store.Crossings())
}

func TestProcessTrajectoryNoActiveGate(t *testing.T) {
	_, _, counting := newTestServices(t)

	_, err := counting.ProcessTrajectory(context.Background(), crossingTrajectory("cam-unknown", "trk-1"))
	assert.ErrorIs(t, err, service.ErrNoActiveGate)
}

func TestProcessTrajectoryMalformedDropped(t *testing.T) {
	store, gates, counting := newTestServices(t)
	activateConfig(t, gates, "cam-1", testGateConfig())

	payload := crossingTrajectory("cam-1", "trk-1")
	payload.Points[2].Time = payload.Points[0].Time // not strictly increasing

	_, err := counting.ProcessTrajectory(context.Background(), payload)
	assert.ErrorIs(t, err, service.ErrInvalidInput)
	assert.Empty(t, store.Crossings())
}

func TestActivateRejectsInvalidDraft(t *testing.T) {
	_, gates, _ := newTestServices(t)
	ctx := context.Background()

	cfg := testGateConfig()
	cfg.DirectionLabels.AToB = "" // incomplete
	_, err := gates.SaveDraft(ctx, "cam-1", cfg)
	require.NoError(t, err) // drafts may be incomplete

	_, err = gates.Activate(ctx, "cam-1")
	assert.ErrorIs(t, err, service.ErrInvalidInput)

	_, err = gates.ResolveActive("cam-1")
	assert.ErrorIs(t, err, service.ErrNoActiveGate)
}

func TestActivateWithoutDraft(t *testing.T) {
	_, gates, _ := newTestServices(t)
	_, err := gates.Activate(context.Background(), "cam-1")
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestSaveDraftRejectsUnknownMode(t *testing.T) {
	_, gates, _ := newTestServices(t)
	_, err := gates.SaveDraft(context.Background(), "cam-1", gate.GateConfig{Mode: "zone"})
	assert.ErrorIs(t, err, service.ErrInvalidInput)
}

func TestLoadActiveConfigsSeedsRegistry(t *testing.T) {
	store, gates, _ := newTestServices(t)
	activateConfig(t, gates, "cam-1", testGateConfig())

	// A fresh service over the same store sees the persisted active config.
	restarted := service.NewGateService(store, zerolog.Nop())
	require.NoError(t, restarted.LoadActiveConfigs(context.Background()))

	handle, err := restarted.ResolveActive("cam-1")
	require.NoError(t, err)
	assert.Equal(t, gate.ModeGate, handle.Config.Mode)
}

func TestSessionPinsConfigAcrossSwap(t *testing.T) {
	store, gates, counting := newTestServices(t)
	oldHandle := activateConfig(t, gates, "cam-1", testGateConfig())
	ctx := context.Background()

	// Track starts under the old config.
	pt := gate.TrajectoryPoint{Time: testTime, Point: gate.Point{X: 0.05, Y: 0.7}}
	_, err := counting.AppendPoint(ctx, "cam-1", "trk-1", "cyclist", pt)
	require.NoError(t, err)

	// Operator swaps in a new config with flipped labels mid-track.
	newCfg := testGateConfig()
	newCfg.DirectionLabels = gate.DirectionLabels{AToB: "southbound", BToA: "northbound"}
	newHandle := activateConfig(t, gates, "cam-1", newCfg)
	require.NotEqual(t, oldHandle.Version, newHandle.Version)

	// In-flight track completes under the pinned old config.
	pt2 := gate.TrajectoryPoint{Time: testTime.Add(time.Second), Point: gate.Point{X: 0.2, Y: 0.7}}
	_, err = counting.AppendPoint(ctx, "cam-1", "trk-1", "cyclist", pt2)
	require.NoError(t, err)
	pt3 := gate.TrajectoryPoint{Time: testTime.Add(2 * time.Second), Point: gate.Point{X: 0.35, Y: 0.7}}
	result, err := counting.AppendPoint(ctx, "cam-1", "trk-1", "cyclist", pt3)
	require.NoError(t, err)

	assert.True(t, result.Crossed)
	assert.Equal(t, oldHandle.Version, result.ConfigVersion)
	assert.Equal(t, "northbound", result.DirectionLabel)

	crossings := store.Crossings()
	require.Len(t, crossings, 1)
	assert.Equal(t, oldHandle.Version, crossings[0].ConfigVersion)
	require.NotNil(t, crossings[0].ObjectClass)
	assert.Equal(t, "cyclist", *crossings[0].ObjectClass)

	// A new trajectory resolves the swapped config.
	result, err = counting.ProcessTrajectory(ctx, crossingTrajectory("cam-1", "trk-2"))
	require.NoError(t, err)
	assert.Equal(t, newHandle.Version, result.ConfigVersion)
	assert.Equal(t, "southbound", result.DirectionLabel)
}

func TestEndTrackDiscardsSession(t *testing.T) {
	_, gates, counting := newTestServices(t)
	activateConfig(t, gates, "cam-1", testGateConfig())
	ctx := context.Background()

	pt := gate.TrajectoryPoint{Time: testTime, Point: gate.Point{X: 0.05, Y: 0.7}}
	_, err := counting.AppendPoint(ctx, "cam-1", "trk-1", "", pt)
	require.NoError(t, err)

	require.NoError(t, counting.EndTrack(ctx, "trk-1"))
	assert.ErrorIs(t, counting.EndTrack(ctx, "trk-1"), service.ErrNotFound)
}

func TestAppendPointMalformedDropsSession(t *testing.T) {
	_, gates, counting := newTestServices(t)
	activateConfig(t, gates, "cam-1", testGateConfig())
	ctx := context.Background()

	pt := gate.TrajectoryPoint{Time: testTime, Point: gate.Point{X: 0.05, Y: 0.7}}
	_, err := counting.AppendPoint(ctx, "cam-1", "trk-1", "", pt)
	require.NoError(t, err)

	// Same timestamp again: malformed, session dropped.
	_, err = counting.AppendPoint(ctx, "cam-1", "trk-1", "", pt)
	assert.ErrorIs(t, err, service.ErrInvalidInput)
	assert.ErrorIs(t, counting.EndTrack(ctx, "trk-1"), service.ErrNotFound)
}

func TestConcurrentSessionsAreIndependent(t *testing.T) {
	store, gates, counting := newTestServices(t)
	activateConfig(t, gates, "cam-1", testGateConfig())
	ctx := context.Background()

	xs := []float64{0.05, 0.2, 0.35}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			trackID := fmt.Sprintf("trk-%d", n)
			for j, x := range xs {
				pt := gate.TrajectoryPoint{
					Time:  testTime.Add(time.Duration(j) * time.Second),
					Point: gate.Point{X: x, Y: 0.7},
				}
				_, err := counting.AppendPoint(ctx, "cam-1", trackID, "", pt)
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	assert.Len(t, store.Crossings(), 8)
	assert.Equal(t, int64(8), store.CountFor("cam-1", "2026-06-01", "a_to_b", "vehicle"))
}

func TestFindEventsInvalidTimeFormat(t *testing.T) {
	_, _, counting := newTestServices(t)
	bad := "yesterday"
	_, err := counting.FindEvents(context.Background(), nil, &bad, nil, 10, 0)
	assert.ErrorIs(t, err, service.ErrInvalidInput)
}

func TestFindEventsAndCounts(t *testing.T) {
	_, gates, counting := newTestServices(t)
	activateConfig(t, gates, "cam-1", testGateConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := counting.ProcessTrajectory(ctx, crossingTrajectory("cam-1", fmt.Sprintf("trk-%d", i)))
		require.NoError(t, err)
	}

	camera := "cam-1"
	events, err := counting.FindEvents(ctx, &camera, nil, nil, 50, 0)
	require.NoError(t, err)
	assert.Len(t, events, 3)
	for _, e := range events {
		assert.Equal(t, gate.DirectionAToB, e.Direction)
		assert.Equal(t, "northbound", e.DirectionLabel)
	}

	counts, err := counting.FindCounts(ctx, &camera, nil, nil)
	require.NoError(t, err)
	require.Len(t, counts, 1)
	assert.Equal(t, "2026-06-01", counts[0].Day)
	assert.Equal(t, int64(3), counts[0].Count)
}
