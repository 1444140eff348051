package realm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/runtime"
)

// channelFactoryScript materialises a self-invoking factory in the
// target realm exposing a getMessage/sendMessage pair backed by an
// in-page queue (§4.6: "materialised inside the target realm via a
// self-invoking factory").
const channelFactoryScript = `(() => {
	const queue = [];
	const waiters = [];
	return {
		sendMessage(data) {
			if (waiters.length) waiters.shift()(data);
			else queue.push(data);
		},
		getMessage() {
			if (queue.length) return Promise.resolve(queue.shift());
			return new Promise(resolve => waiters.push(resolve));
		},
	};
})()`

// SerializationOptions mirrors script.ChannelValue's serializationOptions
// (§4.6). Only maxObjectDepth is honoured; a non-zero/non-null
// maxDomDepth or an includeShadowTree other than "none" is rejected at
// channel creation.
type SerializationOptions struct {
	MaxObjectDepth   *int
	MaxDomDepth      *int
	IncludeShadowTree string
}

func (o SerializationOptions) validate() error {
	if o.MaxDomDepth != nil && *o.MaxDomDepth != 0 {
		return fmt.Errorf("unsupported operation: channel maxDomDepth must be unset")
	}
	if o.IncludeShadowTree != "" && o.IncludeShadowTree != "none" {
		return fmt.Errorf("unsupported operation: channel includeShadowTree must be \"none\"")
	}
	return nil
}

// Message is one script.message event's payload (§4.6).
type Message struct {
	Channel string
	Data    RemoteValue
	RealmID string
}

// ChannelProxy pulls messages pushed from in-page script and emits
// script.message BiDi events until the target's CDP client reports
// "target closed".
type ChannelProxy struct {
	channel string
	realm   *Realm
	sess    CdpSession
	execID  runtime.ExecutionContextID

	queueObj   runtime.RemoteObjectID
	sendHandle runtime.RemoteObjectID

	opts SerializationOptions

	mu      sync.Mutex
	stopped bool
	stopCh  chan struct{}
}

// NewChannelProxy materialises the factory and returns a proxy ready
// to Pump and whose SendHandle can be wired into a deserialized
// "channel" LocalValue argument.
func NewChannelProxy(ctx context.Context, channel string, r *Realm, sess CdpSession, execID runtime.ExecutionContextID, opts SerializationOptions) (*ChannelProxy, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	obj, exc, err := runtime.CallFunctionOn(channelFactoryScript).
		WithExecutionContextID(execID).
		WithReturnByValue(false).
		Do(cdp.WithExecutor(ctx, sess))
	if err != nil {
		return nil, err
	}
	if exc != nil {
		return nil, fmt.Errorf("channel factory failed: %s", exc.Text)
	}
	props, _, _, _, err := runtime.GetProperties(obj.ObjectID).WithOwnProperties(true).Do(cdp.WithExecutor(ctx, sess))
	if err != nil {
		return nil, err
	}
	var sendHandle runtime.RemoteObjectID
	for _, p := range props {
		if p.Name == "sendMessage" && p.Value != nil {
			sendHandle = p.Value.ObjectID
		}
	}
	if sendHandle == "" {
		return nil, fmt.Errorf("channel factory missing sendMessage")
	}
	return &ChannelProxy{
		channel:    channel,
		realm:      r,
		sess:       sess,
		execID:     execID,
		queueObj:   obj.ObjectID,
		sendHandle: sendHandle,
		opts:       opts,
		stopCh:     make(chan struct{}),
	}, nil
}

// SendHandle is the CDP object id bound into a deserialized "channel"
// LocalValue argument, so in-page script can call it directly.
func (c *ChannelProxy) SendHandle() runtime.RemoteObjectID { return c.sendHandle }

// Stop ends the pump loop.
func (c *ChannelProxy) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.stopped {
		c.stopped = true
		close(c.stopCh)
	}
}

const getMessageScript = `function() { return this.getMessage(); }`

// Pump runs the infinite getMessage pull loop, invoking onMessage for
// each delivered payload, until Stop is called or the session reports
// a closed target (§4.6: "exits when the target's CDP client returns a
// 'target closed' error").
func (c *ChannelProxy) Pump(ctx context.Context, onMessage func(Message)) {
	for {
		select {
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		obj, exc, err := runtime.CallFunctionOn(getMessageScript).
			WithObjectID(c.queueObj).
			WithAwaitPromise(true).
			WithReturnByValue(false).
			Do(cdp.WithExecutor(ctx, c.sess))
		if err != nil {
			if isTargetClosedError(err) {
				return
			}
			continue
		}
		if exc != nil {
			continue
		}

		rv, err := Serialize("", obj, "none", c.realm)
		if err != nil {
			continue
		}
		onMessage(Message{Channel: c.channel, Data: rv, RealmID: c.realmID()})
	}
}

func (c *ChannelProxy) realmID() string {
	if c.realm == nil {
		return ""
	}
	return c.realm.ID
}

func isTargetClosedError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "target closed") || strings.Contains(msg, "No target with given id")
}
