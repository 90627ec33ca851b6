package check

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/sirupsen/logrus"

	"node-pulse/pkg/model"
)

// MgmtOptions configures access to the per-node management API.
type MgmtOptions struct {
	Scheme     string
	Port       int
	HTTPClient *http.Client

	// FailureThreshold consecutive failures open a node's breaker; it stays
	// open for BreakerDelay before letting a probe through.
	FailureThreshold uint
	BreakerDelay     time.Duration

	Logger logrus.FieldLogger
}

// MgmtClient talks JSON to the management API of each node. Every node gets
// its own circuit breaker so an unreachable node fails fast for all the checks
// that share it.
type MgmtClient struct {
	scheme string
	port   int
	client *http.Client
	log    logrus.FieldLogger

	threshold uint
	delay     time.Duration

	mu       sync.Mutex
	breakers map[string]circuitbreaker.CircuitBreaker[any]
}

func NewMgmtClient(opts MgmtOptions) *MgmtClient {
	if opts.Scheme == "" {
		opts.Scheme = "http"
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.FailureThreshold == 0 {
		opts.FailureThreshold = 3
	}
	if opts.BreakerDelay <= 0 {
		opts.BreakerDelay = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &MgmtClient{
		scheme:    opts.Scheme,
		port:      opts.Port,
		client:    opts.HTTPClient,
		log:       opts.Logger,
		threshold: opts.FailureThreshold,
		delay:     opts.BreakerDelay,
		breakers:  make(map[string]circuitbreaker.CircuitBreaker[any]),
	}
}

func (c *MgmtClient) breaker(node model.Node) circuitbreaker.CircuitBreaker[any] {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cb, ok := c.breakers[node.Address]; ok {
		return cb
	}
	name := node.Name
	cb := circuitbreaker.NewBuilder[any]().
		HandleIf(func(_ any, err error) bool {
			return err != nil && !errors.Is(err, context.Canceled)
		}).
		WithFailureThreshold(c.threshold).
		WithDelay(c.delay).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			c.log.WithFields(logrus.Fields{
				"node": name,
				"from": stateName(e.OldState),
				"to":   stateName(e.NewState),
			}).Warn("management API circuit breaker state change")
		}).
		Build()
	c.breakers[node.Address] = cb
	return cb
}

func stateName(s circuitbreaker.State) string {
	switch s {
	case circuitbreaker.ClosedState:
		return "closed"
	case circuitbreaker.HalfOpenState:
		return "half-open"
	case circuitbreaker.OpenState:
		return "open"
	default:
		return "unknown"
	}
}

func (c *MgmtClient) url(node model.Node, path string) string {
	host := node.Address
	if c.port > 0 {
		host = net.JoinHostPort(node.Address, strconv.Itoa(c.port))
	} else if ip := net.ParseIP(host); ip != nil && ip.To4() == nil {
		host = "[" + host + "]"
	}
	return c.scheme + "://" + host + path
}

// GetJSON fetches path from the node and decodes the body into out.
func (c *MgmtClient) GetJSON(ctx context.Context, node model.Node, path string, out interface{}) error {
	_, err := failsafe.With(c.breaker(node)).Get(func() (any, error) {
		return nil, c.fetch(ctx, c.url(node, path), out)
	})
	return err
}

func (c *MgmtClient) fetch(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// mgmtFailure turns a management API error into a FAIL result.
func mgmtFailure(err error) model.CheckResult {
	switch {
	case errors.Is(err, circuitbreaker.ErrOpen):
		return fail("Management API unavailable; node failed repeatedly and is cooling down.")
	case errors.Is(err, context.DeadlineExceeded):
		return fail("Management API timeout; node did not answer in time.")
	case errors.Is(err, context.Canceled):
		return fail("Check cancelled before the node answered.")
	default:
		return fail(fmt.Sprintf("Service offline due to connectivity loss (%v).", err))
	}
}
