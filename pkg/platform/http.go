package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// HTTPFacade talks to a sidecar process (platformsim, or a real
// per-node measurement agent) over JSON HTTP, one call per signal/control.
// This mirrors the teacher's ShutdownHTTPController/WakeOnLanController
// request/response shape.
type HTTPFacade struct {
	BaseURL string
	Timeout time.Duration
	Client  *http.Client

	pushed map[Handle]pushedItem
	next   Handle
}

type pushedItem struct {
	name, domain string
	idx          int
	control      bool
	lastValue    float64
}

// NewHTTPFacade constructs an HTTPFacade pointed at a platform sidecar.
func NewHTTPFacade(baseURL string, timeout time.Duration) *HTTPFacade {
	return &HTTPFacade{
		BaseURL: baseURL,
		Timeout: timeout,
		Client:  http.DefaultClient,
		pushed:  map[Handle]pushedItem{},
	}
}

type signalResponse struct {
	Value float64 `json:"value"`
}

type controlResponse struct {
	Actual float64 `json:"actual"`
}

func (f *HTTPFacade) PushSignal(_ context.Context, name, domain string, idx int) (Handle, error) {
	f.next++
	f.pushed[f.next] = pushedItem{name: name, domain: domain, idx: idx}
	return f.next, nil
}

func (f *HTTPFacade) Sample(h Handle) (float64, error) {
	item, ok := f.pushed[h]
	if !ok {
		return 0, fmt.Errorf("platform: unknown signal handle %d", h)
	}
	return item.lastValue, nil
}

// ReadBatch refreshes every pushed signal. The reference sidecar has no
// true batch endpoint, so this issues one request per pushed signal — the
// batching contract (one platform round-trip per tick from the caller's
// perspective) is what the core relies on, not wire-level coalescing.
func (f *HTTPFacade) ReadBatch(ctx context.Context) error {
	for h, item := range f.pushed {
		if item.control {
			continue
		}
		v, err := f.ReadSignal(ctx, item.name, item.domain, item.idx)
		if err != nil {
			return err
		}
		item.lastValue = v
		f.pushed[h] = item
	}
	return nil
}

func (f *HTTPFacade) PushControl(_ context.Context, name, domain string, idx int) (Handle, error) {
	f.next++
	f.pushed[f.next] = pushedItem{name: name, domain: domain, idx: idx, control: true}
	return f.next, nil
}

func (f *HTTPFacade) Adjust(h Handle, value float64) error {
	item, ok := f.pushed[h]
	if !ok || !item.control {
		return fmt.Errorf("platform: unknown control handle %d", h)
	}
	item.lastValue = value
	f.pushed[h] = item
	return nil
}

func (f *HTTPFacade) WriteBatch(ctx context.Context) error {
	for h, item := range f.pushed {
		if !item.control {
			continue
		}
		actual, err := f.WriteControl(ctx, item.name, item.domain, item.idx, item.lastValue)
		if err != nil {
			return err
		}
		item.lastValue = actual
		f.pushed[h] = item
	}
	return nil
}

func (f *HTTPFacade) ReadSignal(ctx context.Context, name, domain string, idx int) (float64, error) {
	u := fmt.Sprintf("%s/signal?%s", f.BaseURL, url.Values{
		"name":   {name},
		"domain": {domain},
		"idx":    {fmt.Sprint(idx)},
	}.Encode())

	reqCtx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u, nil)
	if err != nil {
		return 0, fmt.Errorf("creating signal request: %w", err)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("calling signal endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("signal request failed: %s", resp.Status)
	}

	var data signalResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return 0, fmt.Errorf("decoding signal response: %w", err)
	}
	return data.Value, nil
}

func (f *HTTPFacade) WriteControl(ctx context.Context, name, domain string, idx int, value float64) (float64, error) {
	u := fmt.Sprintf("%s/control?%s", f.BaseURL, url.Values{
		"name":   {name},
		"domain": {domain},
		"idx":    {fmt.Sprint(idx)},
		"value":  {fmt.Sprint(value)},
	}.Encode())

	reqCtx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, u, nil)
	if err != nil {
		return 0, fmt.Errorf("creating control request: %w", err)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("calling control endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("control request failed: %s", resp.Status)
	}

	var data controlResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return 0, fmt.Errorf("decoding control response: %w", err)
	}

	if data.Actual != value {
		slog.Debug("platform clipped requested control value", "name", name, "domain", domain, "idx", idx, "requested", value, "actual", data.Actual)
	}
	return data.Actual, nil
}
