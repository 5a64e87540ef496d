// Package transport wraps an auto-reconnecting MQTT v5 connection used both
// to receive accelerometer samples and to publish emergency actions.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/Nhashaamn/resq/utils"
)

// Handler receives the payload of a message published on a subscribed topic.
type Handler = func(topic string, payload []byte)

type route struct {
	filter  string
	handler Handler
}

// ErrNotConnected is returned by Publish before Connect succeeds.
var ErrNotConnected = errors.New("mqtt: not connected")

// Client is an MQTT connection with topic-filter routing. Register routes
// with Handle before calling Connect; they are (re)subscribed every time
// the connection comes up.
type Client struct {
	cfg utils.MQTTConfig

	mu     sync.RWMutex
	routes []route
	cm     *autopaho.ConnectionManager
}

// NewClient creates an unconnected client.
func NewClient(cfg utils.MQTTConfig) *Client {
	return &Client{cfg: cfg}
}

// Handle routes messages matching filter to h.
func (c *Client) Handle(filter string, h Handler) {
	c.mu.Lock()
	c.routes = append(c.routes, route{filter: filter, handler: h})
	c.mu.Unlock()
}

// Connect dials the broker and blocks until the first connection is up,
// for at most timeout. ctx bounds the life of the connection: reconnects
// happen in the background until it is done.
func (c *Client) Connect(ctx context.Context, timeout time.Duration) error {
	u, err := url.Parse(c.cfg.Broker)
	if err != nil {
		return fmt.Errorf("parse broker url: %w", err)
	}

	keepAlive := uint16(c.cfg.KeepAlive.Seconds())
	if keepAlive == 0 {
		keepAlive = 30
	}

	cliCfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{u},
		KeepAlive:                     keepAlive,
		CleanStartOnInitialConnection: true,
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			utils.L().Info("mqtt connection up", "broker", c.cfg.Broker)
			if err := c.subscribeAll(ctx, cm); err != nil {
				utils.L().Error("mqtt subscribe failed", "error", err)
			}
		},
		OnConnectError: func(err error) {
			utils.L().Warn("mqtt connect attempt failed", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: c.cfg.ClientID,
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){
				func(pr paho.PublishReceived) (bool, error) {
					return c.dispatch(pr.Packet.Topic, pr.Packet.Payload) > 0, nil
				},
			},
			OnClientError: func(err error) {
				utils.L().Error("mqtt client error", "error", err)
			},
			OnServerDisconnect: func(d *paho.Disconnect) {
				utils.L().Warn("mqtt server disconnect", "reason_code", d.ReasonCode)
			},
		},
	}

	cm, err := autopaho.NewConnection(ctx, cliCfg)
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	awaitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := cm.AwaitConnection(awaitCtx); err != nil {
		return fmt.Errorf("mqtt await connection: %w", err)
	}

	c.mu.Lock()
	c.cm = cm
	c.mu.Unlock()
	return nil
}

func (c *Client) subscribeAll(ctx context.Context, cm *autopaho.ConnectionManager) error {
	c.mu.RLock()
	subs := make([]paho.SubscribeOptions, 0, len(c.routes))
	for _, r := range c.routes {
		subs = append(subs, paho.SubscribeOptions{Topic: r.filter, QoS: c.cfg.QoS})
	}
	c.mu.RUnlock()

	if len(subs) == 0 {
		return nil
	}
	if _, err := cm.Subscribe(ctx, &paho.Subscribe{Subscriptions: subs}); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	return nil
}

// dispatch hands a message to every matching route and returns how many
// handled it.
func (c *Client) dispatch(topic string, payload []byte) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, r := range c.routes {
		if MatchTopic(r.filter, topic) {
			r.handler(topic, payload)
			n++
		}
	}
	return n
}

// Publish sends payload on topic with the configured QoS.
func (c *Client) Publish(ctx context.Context, topic string, payload []byte) error {
	c.mu.RLock()
	cm := c.cm
	c.mu.RUnlock()
	if cm == nil {
		return ErrNotConnected
	}

	if _, err := cm.Publish(ctx, &paho.Publish{
		QoS:     c.cfg.QoS,
		Topic:   topic,
		Payload: payload,
	}); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	cm := c.cm
	c.cm = nil
	c.mu.Unlock()

	if cm == nil {
		return nil
	}
	return cm.Disconnect(ctx)
}
