package platform_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobpower/powerbalancer/pkg/platform"
)

func TestNoopFacadeSampleReflectsFixedSignal(t *testing.T) {
	ctx := context.Background()
	f := platform.NewNoopFacade(map[string]float64{
		"EPOCH_RUNTIME/package/0": 2.5,
	})

	h, err := f.PushSignal(ctx, platform.SignalEpochRuntime, "package", 0)
	require.NoError(t, err)

	require.NoError(t, f.ReadBatch(ctx))
	v, err := f.Sample(h)
	require.NoError(t, err)
	assert.Equal(t, 2.5, v)
}

func TestNoopFacadeWriteControlNeverClips(t *testing.T) {
	ctx := context.Background()
	f := platform.NewNoopFacade(map[string]float64{})

	actual, err := f.WriteControl(ctx, platform.ControlPowerPackageLimit, "package", 0, 120)
	require.NoError(t, err)
	assert.Equal(t, 120.0, actual)

	v, err := f.ReadSignal(ctx, platform.ControlPowerPackageLimit, "package", 0)
	require.NoError(t, err)
	assert.Equal(t, 120.0, v)
}

func TestNoopFacadeUnknownHandleErrors(t *testing.T) {
	f := platform.NewNoopFacade(map[string]float64{})
	_, err := f.Sample(platform.Handle(999))
	assert.Error(t, err)
}

func TestHTTPFacadeReadSignalRoundTrips(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/signal", r.URL.Path)
		assert.Equal(t, platform.SignalEpochRuntime, r.URL.Query().Get("name"))
		_ = json.NewEncoder(w).Encode(map[string]float64{"value": 3.0})
	}))
	defer srv.Close()

	f := platform.NewHTTPFacade(srv.URL, 0)
	v, err := f.ReadSignal(context.Background(), platform.SignalEpochRuntime, "package", 1)
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)
}

func TestHTTPFacadeWriteControlReportsClippedActual(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/control", r.URL.Path)
		assert.Equal(t, "200", r.URL.Query().Get("value"))
		_ = json.NewEncoder(w).Encode(map[string]float64{"actual": 150})
	}))
	defer srv.Close()

	f := platform.NewHTTPFacade(srv.URL, 0)
	actual, err := f.WriteControl(context.Background(), platform.ControlPowerPackageLimit, "package", 0, 200)
	require.NoError(t, err)
	assert.Equal(t, 150.0, actual)
}

func TestHTTPFacadeBatchedControlFlushesStagedValue(t *testing.T) {
	var gotValue string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotValue = r.URL.Query().Get("value")
		_ = json.NewEncoder(w).Encode(map[string]float64{"actual": 90})
	}))
	defer srv.Close()

	ctx := context.Background()
	f := platform.NewHTTPFacade(srv.URL, 0)

	h, err := f.PushControl(ctx, platform.ControlPowerPackageLimit, "package", 0)
	require.NoError(t, err)
	require.NoError(t, f.Adjust(h, 90))
	require.NoError(t, f.WriteBatch(ctx))

	assert.Equal(t, "90", gotValue)
}

func TestHTTPFacadeErrorStatusIsSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := platform.NewHTTPFacade(srv.URL, 0)
	_, err := f.ReadSignal(context.Background(), platform.SignalEpochRuntime, "package", 0)
	assert.Error(t, err)
}

func TestNewFacadeFactory(t *testing.T) {
	noop, err := platform.NewFacade(platform.FactoryConfig{Mode: platform.ModeNoop})
	require.NoError(t, err)
	assert.IsType(t, &platform.NoopFacade{}, noop)

	httpFacade, err := platform.NewFacade(platform.FactoryConfig{Mode: platform.ModeHTTP, BaseURL: "http://127.0.0.1:0"})
	require.NoError(t, err)
	assert.IsType(t, &platform.HTTPFacade{}, httpFacade)

	_, err = platform.NewFacade(platform.FactoryConfig{Mode: platform.ModeHTTP})
	assert.Error(t, err)

	_, err = platform.NewFacade(platform.FactoryConfig{Mode: "bogus"})
	assert.Error(t, err)
}
