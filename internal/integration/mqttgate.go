package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/device-core/internal/device"
	"github.com/nerrad567/device-core/internal/infrastructure/logging"
	"github.com/nerrad567/device-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/device-core/internal/subsystem"
)

// Broker is the slice of the MQTT client the gate needs.
type Broker interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// removalRequest is the payload published to a daemon when the
// registry needs its verdict on a device removal.
type removalRequest struct {
	RequestID     string        `json:"request_id"`
	ConfigEntryID string        `json:"config_entry_id"`
	DeviceID      string        `json:"device_id"`
	DeviceName    string        `json:"device_name"`
	Identifiers   []device.Pair `json:"identifiers"`
	Connections   []device.Pair `json:"connections"`
}

// removalResponse is the daemon's verdict.
type removalResponse struct {
	RequestID string `json:"request_id"`
	Approve   bool   `json:"approve"`
	Reason    string `json:"reason,omitempty"`
}

// MQTTGate adapts an out-of-process subsystem daemon to the
// DeviceRemover interface. Each removal becomes a request/response
// round trip over the broker, correlated by request ID. A daemon that
// does not answer within the configured timeout fails the removal
// rather than silently consenting.
type MQTTGate struct {
	domain  string
	broker  Broker
	timeout time.Duration
	log     *logging.Logger
	qos     byte

	mu      sync.Mutex
	pending map[string]chan removalResponse
}

// NewMQTTGate creates a gate for one integration domain.
// Call Start before use.
func NewMQTTGate(domain string, broker Broker, timeout time.Duration, log *logging.Logger) *MQTTGate {
	if log == nil {
		log = logging.Default()
	}
	return &MQTTGate{
		domain:  domain,
		broker:  broker,
		timeout: timeout,
		log:     log.Component("integration").With("domain", domain),
		qos:     1,
		pending: make(map[string]chan removalResponse),
	}
}

// Domain implements Handler.
func (g *MQTTGate) Domain() string {
	return g.domain
}

// Start subscribes to the domain's removal response topic.
func (g *MQTTGate) Start() error {
	topic := mqtt.Topics{}.AllRemovalResponses(g.domain)
	if err := g.broker.Subscribe(topic, g.qos, g.handleResponse); err != nil {
		return fmt.Errorf("subscribing to removal responses: %w", err)
	}
	return nil
}

// Close unsubscribes from the response topic and fails all pending
// requests.
func (g *MQTTGate) Close() error {
	topic := mqtt.Topics{}.AllRemovalResponses(g.domain)
	err := g.broker.Unsubscribe(topic)

	g.mu.Lock()
	for id, ch := range g.pending {
		close(ch)
		delete(g.pending, id)
	}
	g.mu.Unlock()

	return err
}

// RemoveConfigEntryDevice implements DeviceRemover by asking the daemon
// over MQTT and waiting for its verdict.
func (g *MQTTGate) RemoveConfigEntryDevice(ctx context.Context, entry *subsystem.ConfigEntry, dev *device.DeviceEntry) (bool, error) {
	requestID := uuid.NewString()

	ch := make(chan removalResponse, 1)
	g.mu.Lock()
	g.pending[requestID] = ch
	g.mu.Unlock()
	defer func() {
		g.mu.Lock()
		delete(g.pending, requestID)
		g.mu.Unlock()
	}()

	payload, err := json.Marshal(removalRequest{
		RequestID:     requestID,
		ConfigEntryID: entry.ID,
		DeviceID:      dev.ID,
		DeviceName:    dev.Name,
		Identifiers:   dev.Identifiers,
		Connections:   dev.Connections,
	})
	if err != nil {
		return false, fmt.Errorf("marshalling removal request: %w", err)
	}

	topic := mqtt.Topics{}.RemovalRequest(g.domain, requestID)
	if err := g.broker.Publish(topic, payload, g.qos, false); err != nil {
		return false, fmt.Errorf("publishing removal request: %w", err)
	}

	g.log.Debug("removal request published", "request_id", requestID, "device_id", dev.ID)

	timer := time.NewTimer(g.timeout)
	defer timer.Stop()

	select {
	case resp, ok := <-ch:
		if !ok {
			return false, fmt.Errorf("integration: removal gate closed while awaiting verdict")
		}
		if !resp.Approve {
			g.log.Info("removal vetoed by daemon",
				"request_id", requestID, "device_id", dev.ID, "reason", resp.Reason)
		}
		return resp.Approve, nil
	case <-timer.C:
		return false, fmt.Errorf("integration: no removal verdict from %s daemon within %v", g.domain, g.timeout)
	case <-ctx.Done():
		return false, fmt.Errorf("integration: awaiting removal verdict: %w", ctx.Err())
	}
}

// handleResponse delivers a daemon verdict to the waiting request.
// Verdicts for unknown request IDs (late answers, restarts) are dropped.
func (g *MQTTGate) handleResponse(topic string, payload []byte) error {
	var resp removalResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return fmt.Errorf("unmarshalling removal response on %s: %w", topic, err)
	}
	if resp.RequestID == "" {
		return fmt.Errorf("removal response on %s missing request_id", topic)
	}

	g.mu.Lock()
	ch, ok := g.pending[resp.RequestID]
	g.mu.Unlock()
	if !ok {
		g.log.Debug("dropping verdict for unknown request", "request_id", resp.RequestID)
		return nil
	}

	select {
	case ch <- resp:
	default:
	}
	return nil
}
