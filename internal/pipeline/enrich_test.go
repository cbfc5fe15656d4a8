package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/quake-data-etl/internal/domain"
)

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubFetcher returns a canned pyramid and records its calls.
type stubFetcher struct {
	pyramid []domain.AgeGroupSample
	err     error

	calls  int
	lastAt [3]float64
}

func (f *stubFetcher) FetchPyramid(_ context.Context, lat, lng, radiusKm float64) ([]domain.AgeGroupSample, error) {
	f.calls++
	f.lastAt = [3]float64{lat, lng, radiusKm}
	return f.pyramid, f.err
}

var densePyramid = []domain.AgeGroupSample{
	{Age: "0 to 4", Male: 400_000, Female: 400_000},
	{Age: "5 to 9", Male: 500_000, Female: 700_000},
}

func TestEnricher_Enrich(t *testing.T) {
	frozen := time.Date(2024, 4, 27, 6, 0, 0, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(frozen))
	defer domain.SetClock(nil)

	fetcher := &stubFetcher{pyramid: densePyramid}
	e := NewEnricher(fetcher, discardLogger())

	raw := domain.RawEvent{
		ID:        12,
		GlobalID:  "us7000abcd",
		Magnitude: floatPtr(4.5),
		Place:     strPtr("5 km W of Volcano, Hawaii"),
		Latitude:  floatPtr(19.4),
		Longitude: floatPtr(-155.3),
		Depth:     floatPtr(2.1),
	}

	processed := e.Enrich(context.Background(), raw)

	assert.Equal(t, "us7000abcd", processed.GlobalID)
	require.NotNil(t, processed.NearestCity)
	assert.Equal(t, "Volcano, Hawaii", *processed.NearestCity)
	require.NotNil(t, processed.DistanceToNearestCityKm)
	assert.InDelta(t, 5, *processed.DistanceToNearestCityKm, 1e-9)

	assert.InDelta(t, 2_000_000, processed.Demographics100Km.TotalPopulation, 1e-9)

	// M4.5, 5 km from a city of two million.
	assert.True(t, processed.IsSignificant)
	assert.Equal(t, frozen, processed.ProcessedAt)

	assert.Equal(t, 1, fetcher.calls)
	assert.Equal(t, [3]float64{19.4, -155.3, 100}, fetcher.lastAt)
}

func TestEnricher_Enrich_Idempotent(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2024, 4, 27, 6, 0, 0, 0, time.UTC)))
	defer domain.SetClock(nil)

	e := NewEnricher(&stubFetcher{pyramid: densePyramid}, discardLogger())
	raw := domain.RawEvent{
		GlobalID:  "us7000abcd",
		Magnitude: floatPtr(5.1),
		Place:     strPtr("16 km S of Volcano, Hawaii"),
		Latitude:  floatPtr(19.4),
		Longitude: floatPtr(-155.3),
	}

	first := e.Enrich(context.Background(), raw)
	second := e.Enrich(context.Background(), raw)

	assert.Equal(t, first, second)
}

func TestEnricher_Enrich_DegradedDemographics(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("worldpop unreachable")}
	e := NewEnricher(fetcher, discardLogger())

	processed := e.Enrich(context.Background(), domain.RawEvent{
		GlobalID:  "us7000abcd",
		Magnitude: floatPtr(4.5),
		Place:     strPtr("5 km W of Volcano, Hawaii"),
		Latitude:  floatPtr(19.4),
		Longitude: floatPtr(-155.3),
	})

	// Without population data the dense-population clause cannot fire.
	assert.Equal(t, domain.Demographics{}, processed.Demographics100Km)
	assert.False(t, processed.IsSignificant)
}

func TestEnricher_Enrich_NoCoordinates(t *testing.T) {
	fetcher := &stubFetcher{pyramid: densePyramid}
	e := NewEnricher(fetcher, discardLogger())

	processed := e.Enrich(context.Background(), domain.RawEvent{
		GlobalID:  "nc73000000",
		Magnitude: floatPtr(6.5),
	})

	assert.Equal(t, 0, fetcher.calls)
	assert.Equal(t, domain.Demographics{}, processed.Demographics100Km)
	// Major magnitude is significant on its own.
	assert.True(t, processed.IsSignificant)
}

func TestEnricher_Enrich_NilFetcher(t *testing.T) {
	e := NewEnricher(nil, discardLogger())

	processed := e.Enrich(context.Background(), domain.RawEvent{
		GlobalID:  "nc73000000",
		Latitude:  floatPtr(19.4),
		Longitude: floatPtr(-155.3),
	})

	assert.Equal(t, domain.Demographics{}, processed.Demographics100Km)
	assert.False(t, processed.IsSignificant)
}
