package opcua

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"

	"github.com/abheet19/telemetry-ai-ops/internal/domain"
	"github.com/abheet19/telemetry-ai-ops/internal/ports"
)

// Config captures the runtime details required to open an OPC UA session.
type Config struct {
	Endpoint         string        `yaml:"endpoint"`
	Username         string        `yaml:"username"`
	Password         string        `yaml:"password"`
	SecurityMode     string        `yaml:"security_mode"`
	SecurityPolicy   string        `yaml:"security_policy"`
	ApplicationName  string        `yaml:"application_name"`
	PublishInterval  time.Duration `yaml:"publish_interval"`
	SamplingInterval time.Duration `yaml:"sampling_interval"`
	Nodes            []NodeConfig  `yaml:"nodes"`
}

// NodeConfig maps one monitored node to a metric of an optical device.
// Several nodes usually share a DeviceID, one per metric.
type NodeConfig struct {
	NodeID   string `yaml:"node_id"`
	DeviceID string `yaml:"device_id"`
	Field    string `yaml:"field"`
}

func (c *Config) ApplyDefaults() {
	if c.SecurityMode == "" {
		c.SecurityMode = "None"
	}
	if c.SecurityPolicy == "" {
		c.SecurityPolicy = "None"
	}
	if c.ApplicationName == "" {
		c.ApplicationName = "Telemetry AI Ops Edge"
	}
	if c.PublishInterval <= 0 {
		c.PublishInterval = 250 * time.Millisecond
	}
	if c.SamplingInterval < 0 {
		c.SamplingInterval = 0
	}
	for i := range c.Nodes {
		if c.Nodes[i].DeviceID == "" {
			c.Nodes[i].DeviceID = c.Nodes[i].NodeID
		}
	}
}

func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	if len(c.Nodes) == 0 {
		return errors.New("at least one node must be configured")
	}
	for _, n := range c.Nodes {
		if n.Field == "" {
			return fmt.Errorf("node %q: field is required", n.NodeID)
		}
		if _, err := parseNodeID(n.NodeID); err != nil {
			return err
		}
	}
	return nil
}

// Collector subscribes to OPC UA nodes and emits one Record per data change,
// carrying the latest known value of every metric of that device.
type Collector struct {
	cfg   Config
	obs   ports.Observability
	snaps *snapshots

	mu     sync.Mutex
	sess   *session
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// session is one connected client with its subscription. Client handles map
// back to the configured node.
type session struct {
	client  *opcua.Client
	sub     *opcua.Subscription
	notify  chan *opcua.PublishNotificationData
	handles map[uint32]NodeConfig
}

func NewCollector(cfg Config, obs ports.Observability) (*Collector, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Collector{
		cfg:   cfg,
		obs:   obs,
		snaps: newSnapshots(),
	}, nil
}

func (c *Collector) Start(out chan<- *domain.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess != nil {
		return errors.New("opcua collector already started")
	}

	ctx, cancel := context.WithCancel(context.Background())
	sess, err := c.open(ctx)
	if err != nil {
		cancel()
		return err
	}

	c.sess = sess
	c.cancel = cancel
	c.wg.Add(1)
	go c.consume(ctx, sess, out)

	if c.obs != nil {
		c.obs.LogInfo("opcua_subscribed",
			ports.Field{Key: "endpoint", Value: c.cfg.Endpoint},
			ports.Field{Key: "nodes", Value: len(sess.handles)})
	}
	return nil
}

func (c *Collector) Stop() error {
	c.mu.Lock()
	sess, cancel := c.sess, c.cancel
	c.sess, c.cancel = nil, nil
	c.mu.Unlock()
	if sess == nil {
		return nil
	}

	cancel()
	ctx, ctxCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer ctxCancel()
	err := sess.close(ctx)

	c.wg.Wait()
	return err
}

// open connects, subscribes and creates every monitored item in a single
// request. Any failure tears the partial session down.
func (c *Collector) open(ctx context.Context) (*session, error) {
	client, err := opcua.NewClient(c.cfg.Endpoint, c.clientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("opcua new client: %w", err)
	}
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("opcua connect %s: %w", c.cfg.Endpoint, err)
	}

	sess := &session{
		client: client,
		notify: make(chan *opcua.PublishNotificationData, len(c.cfg.Nodes)*4),
	}
	sess.sub, err = client.Subscribe(ctx, &opcua.SubscriptionParameters{
		Interval: c.cfg.PublishInterval,
	}, sess.notify)
	if err != nil {
		_ = sess.close(ctx)
		return nil, fmt.Errorf("opcua subscribe: %w", err)
	}

	sess.handles, err = c.monitor(ctx, sess.sub)
	if err != nil {
		_ = sess.close(ctx)
		return nil, err
	}
	return sess, nil
}

func (c *Collector) monitor(ctx context.Context, sub *opcua.Subscription) (map[uint32]NodeConfig, error) {
	reqs, handles, err := monitorRequests(c.cfg.Nodes, c.cfg.SamplingInterval)
	if err != nil {
		return nil, err
	}

	res, err := sub.Monitor(ctx, ua.TimestampsToReturnBoth, reqs...)
	if err != nil {
		return nil, fmt.Errorf("monitor nodes: %w", err)
	}
	if len(res.Results) != len(reqs) {
		return nil, fmt.Errorf("monitor nodes: %d results for %d nodes", len(res.Results), len(reqs))
	}
	for i, r := range res.Results {
		if r.StatusCode != ua.StatusOK {
			return nil, fmt.Errorf("monitor node %q: %s", c.cfg.Nodes[i].NodeID, r.StatusCode)
		}
	}
	return handles, nil
}

// monitorRequests builds one request per node; handle i+1 refers to nodes[i].
func monitorRequests(nodes []NodeConfig, sampling time.Duration) ([]*ua.MonitoredItemCreateRequest, map[uint32]NodeConfig, error) {
	reqs := make([]*ua.MonitoredItemCreateRequest, 0, len(nodes))
	handles := make(map[uint32]NodeConfig, len(nodes))
	for i, node := range nodes {
		id, err := parseNodeID(node.NodeID)
		if err != nil {
			return nil, nil, err
		}
		handle := uint32(i + 1)
		req := opcua.NewMonitoredItemCreateRequestWithDefaults(id, ua.AttributeIDValue, handle)
		if sampling > 0 {
			req.RequestedParameters.SamplingInterval = float64(sampling.Milliseconds())
		}
		reqs = append(reqs, req)
		handles[handle] = node
	}
	return reqs, handles, nil
}

// parseNodeID accepts the string form [ns=<n>;]<i|s|g|b>=<id>.
// ua.ParseNodeID turns anything else into a string id in namespace 0.
func parseNodeID(s string) (*ua.NodeID, error) {
	rest := s
	if strings.HasPrefix(rest, "ns=") {
		i := strings.IndexByte(rest, ';')
		if i < 0 {
			return nil, fmt.Errorf("node id %q: missing ';' after namespace", s)
		}
		rest = rest[i+1:]
	}
	if len(rest) < 3 || rest[1] != '=' || !strings.ContainsRune("isgb", rune(rest[0])) {
		return nil, fmt.Errorf("node id %q: expected an i=, s=, g= or b= identifier", s)
	}
	id, err := ua.ParseNodeID(s)
	if err != nil {
		return nil, fmt.Errorf("parse node id %q: %w", s, err)
	}
	return id, nil
}

func (s *session) close(ctx context.Context) error {
	var err error
	if s.sub != nil {
		if e := s.sub.Cancel(ctx); e != nil && !errors.Is(e, context.Canceled) {
			err = errors.Join(err, e)
		}
	}
	if e := s.client.Close(ctx); e != nil && !errors.Is(e, context.Canceled) {
		err = errors.Join(err, e)
	}
	return err
}

func (c *Collector) consume(ctx context.Context, sess *session, out chan<- *domain.Record) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case notif := <-sess.notify:
			if notif == nil {
				continue
			}
			if notif.Error != nil {
				c.logError("opcua_notification_error", notif.Error)
				continue
			}
			data, ok := notif.Value.(*ua.DataChangeNotification)
			if !ok {
				continue
			}
			for _, item := range data.MonitoredItems {
				rec, err := c.record(sess.handles, item)
				if err != nil {
					c.logError("opcua_item_skipped", err, ports.Field{Key: "handle", Value: item.ClientHandle})
					continue
				}
				if rec == nil {
					continue
				}
				select {
				case <-ctx.Done():
					return
				case out <- rec:
				}
			}
		}
	}
}

// record folds one data change into the device snapshot. Unknown handles
// yield nil; bad quality and non-numeric values are errors.
func (c *Collector) record(handles map[uint32]NodeConfig, item *ua.MonitoredItemNotification) (*domain.Record, error) {
	node, ok := handles[item.ClientHandle]
	if !ok || item.Value == nil {
		return nil, nil
	}
	if item.Value.Status != ua.StatusOK {
		return nil, fmt.Errorf("node %q: bad quality %s", node.NodeID, item.Value.Status)
	}
	v, ok := variantToFloat(item.Value.Value)
	if !ok {
		return nil, fmt.Errorf("node %q: value is not numeric", node.NodeID)
	}

	ts := item.Value.SourceTimestamp
	if ts.IsZero() {
		ts = item.Value.ServerTimestamp
	}
	if ts.IsZero() {
		ts = time.Now()
	}
	return c.snaps.update(node.DeviceID, node.Field, v, ts.UTC()), nil
}

func (c *Collector) logError(msg string, err error, fields ...ports.Field) {
	if c.obs != nil {
		c.obs.LogError(msg, err, fields...)
	}
}

// snapshots keeps the latest value of every metric per device.
type snapshots struct {
	mu     sync.Mutex
	values map[string]map[string]float64
	seq    map[string]uint64
}

func newSnapshots() *snapshots {
	return &snapshots{
		values: make(map[string]map[string]float64),
		seq:    make(map[string]uint64),
	}
}

// update records field=v for device and returns a record holding a copy of
// the device's current snapshot.
func (s *snapshots) update(device, field string, v float64, ts time.Time) *domain.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	vals, ok := s.values[device]
	if !ok {
		vals = make(map[string]float64)
		s.values[device] = vals
	}
	vals[field] = v
	s.seq[device]++

	rec := &domain.Record{
		DeviceID:  device,
		Timestamp: ts,
		Seq:       s.seq[device],
		Values:    vals,
	}
	return rec.Clone()
}

func (c *Collector) clientOptions() []opcua.Option {
	opts := []opcua.Option{
		opcua.SecurityModeString(normalizeSecurityMode(c.cfg.SecurityMode)),
		opcua.SecurityPolicy(normalizeSecurityPolicy(c.cfg.SecurityPolicy)),
		opcua.ApplicationName(c.cfg.ApplicationName),
		opcua.AutoReconnect(true),
	}
	if c.cfg.Username != "" {
		return append(opts, opcua.AuthUsername(c.cfg.Username, c.cfg.Password))
	}
	return append(opts, opcua.AuthAnonymous())
}

func variantToFloat(v *ua.Variant) (float64, bool) {
	if v == nil {
		return 0, false
	}

	switch val := v.Value().(type) {
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	case float32:
		return float64(val), true
	case float64:
		return val, true
	case int8:
		return float64(val), true
	case uint8:
		return float64(val), true
	case int16:
		return float64(val), true
	case uint16:
		return float64(val), true
	case int32:
		return float64(val), true
	case uint32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint64:
		return float64(val), true
	default:
		return 0, false
	}
}

func normalizeSecurityMode(mode string) string {
	switch strings.ToLower(mode) {
	case "sign":
		return "Sign"
	case "signandencrypt", "signencrypt", "sign_and_encrypt", "sign+encrypt":
		return "SignAndEncrypt"
	default:
		return "None"
	}
}

func normalizeSecurityPolicy(policy string) string {
	if policy == "" {
		return "None"
	}
	return policy
}

var _ ports.Collector = (*Collector)(nil)
