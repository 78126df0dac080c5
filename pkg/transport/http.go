package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jobpower/powerbalancer/pkg/vector"
)

// HTTPTree is the real inter-process tree transport (spec.md §6): each node
// runs a small HTTP server and pushes policies/samples to its neighbors
// with POST requests, grounded on the teacher's ShutdownHTTPController and
// WakeOnLanController request/response client conventions. Unlike those,
// this node is also a server: a parent pushes into our /descend handler,
// and children push into our /ascend handler, each landing on a buffered
// channel the corresponding Tree method reads from.
type HTTPTree struct {
	listen     string
	parentURL  string
	childURLs  []string
	httpClient *http.Client
	server     *http.Server

	mu        sync.Mutex
	descendCh chan vector.Policy
	ascendChs map[string]chan vector.Sample
}

// NewHTTPTree constructs an HTTPTree for a node listening at listen, with
// parent (empty for the root) and children base URLs. It does not start
// the server; call Serve.
func NewHTTPTree(listen, parentURL string, childURLs []string, timeout time.Duration) *HTTPTree {
	t := &HTTPTree{
		listen:     listen,
		parentURL:  parentURL,
		childURLs:  childURLs,
		httpClient: &http.Client{Timeout: timeout},
		descendCh:  make(chan vector.Policy, 1),
		ascendChs:  make(map[string]chan vector.Sample, len(childURLs)),
	}
	for _, c := range childURLs {
		t.ascendChs[c] = make(chan vector.Sample, 1)
	}
	return t
}

// Serve starts the HTTP server backing this tree node in the background
// and returns once it is listening, or the error from binding the socket.
func (t *HTTPTree) Serve() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/descend", t.handleDescend)
	mux.HandleFunc("/ascend", t.handleAscend)

	ln, err := net.Listen("tcp", t.listen)
	if err != nil {
		return fmt.Errorf("transport: binding %s: %w", t.listen, err)
	}

	t.server = &http.Server{Handler: mux}
	go func() {
		if err := t.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("transport: http server stopped", "err", err)
		}
	}()
	return nil
}

// Close shuts down the HTTP server.
func (t *HTTPTree) Close(ctx context.Context) error {
	if t.server == nil {
		return nil
	}
	return t.server.Shutdown(ctx)
}

func (t *HTTPTree) handleDescend(w http.ResponseWriter, r *http.Request) {
	var p vector.Policy
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	select {
	case t.descendCh <- p:
	default:
		// Previous policy not yet consumed; replace it (the newest policy
		// always supersedes an unread one for this tick's purposes).
		select {
		case <-t.descendCh:
		default:
		}
		t.descendCh <- p
	}
	w.WriteHeader(http.StatusOK)
}

func (t *HTTPTree) handleAscend(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	t.mu.Lock()
	ch, ok := t.ascendChs[from]
	if !ok {
		// Children are keyed by base URL; a child reports its listen address.
		ch, ok = t.ascendChs["http://"+from]
	}
	t.mu.Unlock()
	if !ok {
		http.Error(w, fmt.Sprintf("transport: unknown child %q", from), http.StatusBadRequest)
		return
	}
	var s vector.Sample
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	select {
	case ch <- s:
	default:
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
	w.WriteHeader(http.StatusOK)
}

// DescendDown POSTs policies[i] to childURLs[i]/descend. level is unused; a
// single HTTPTree instance always represents exactly one node.
func (t *HTTPTree) DescendDown(ctx context.Context, _ int, policies []vector.Policy) error {
	if len(policies) != len(t.childURLs) {
		return fmt.Errorf("transport: descend got %d policies for %d children", len(policies), len(t.childURLs))
	}
	for i, url := range t.childURLs {
		if err := t.post(ctx, url+"/descend", policies[i]); err != nil {
			return fmt.Errorf("transport: descend to %s: %w", url, err)
		}
	}
	return nil
}

// AscendUp blocks until every child has pushed a sample to our /ascend
// handler for this cycle, then returns them in child order.
func (t *HTTPTree) AscendUp(ctx context.Context, _ int) ([]vector.Sample, error) {
	out := make([]vector.Sample, len(t.childURLs))
	for i, url := range t.childURLs {
		t.mu.Lock()
		ch := t.ascendChs[url]
		t.mu.Unlock()
		select {
		case out[i] = <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return out, nil
}

// SendUp POSTs sample to the parent's /ascend?from=<our listen addr>. A
// no-op for the root (no parent).
func (t *HTTPTree) SendUp(ctx context.Context, _ int, sample vector.Sample) error {
	if t.parentURL == "" {
		return nil
	}
	url := fmt.Sprintf("%s/ascend?from=%s", t.parentURL, t.listen)
	if err := t.post(ctx, url, sample); err != nil {
		return fmt.Errorf("transport: send-up to %s: %w", t.parentURL, err)
	}
	return nil
}

// ReceiveDown blocks until our parent pushes the next policy to our
// /descend handler. A no-op for the root (no parent), returning the zero
// Policy immediately.
func (t *HTTPTree) ReceiveDown(ctx context.Context, _ int) (vector.Policy, error) {
	if t.parentURL == "" {
		return vector.Policy{}, nil
	}
	select {
	case p := <-t.descendCh:
		return p, nil
	case <-ctx.Done():
		return vector.Policy{}, ctx.Err()
	}
}

func (t *HTTPTree) post(ctx context.Context, url string, body any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return nil
}
