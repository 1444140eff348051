package mapper

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/chromedp/cdproto"
	"github.com/chromedp/cdproto/target"
	"github.com/mailru/easyjson"
)

// cmdJob is an outgoing CDP command paired with the channel its result
// should be delivered on, mirroring the teacher's cmdJob in browser.go.
type cmdJob struct {
	msg  *cdproto.Message
	resp chan *cdproto.Message
}

// CdpClient is the root CDP connection: the browser-level client plus
// the demultiplexer that routes flat-mode session traffic (CDP
// `Target.setAutoAttach{flatten:true}`) to the right CdpTarget. Session
// owns exactly one of these (§3, "Session... Owns: one root CDP
// connection, the browser-level CDP client").
type CdpClient struct {
	conn CdpTransport

	next int64

	cmdQueue chan cmdJob

	targetsMu sync.RWMutex
	targets   map[target.SessionID]*CdpTarget

	logf, errf func(string, ...interface{})

	closed chan struct{}
}

// NewCdpClient wraps an already-dialed transport as the root CDP client.
func NewCdpClient(conn CdpTransport, logf, errf func(string, ...interface{})) *CdpClient {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	if errf == nil {
		errf = logf
	}
	return &CdpClient{
		conn:     conn,
		cmdQueue: make(chan cmdJob),
		targets:  make(map[target.SessionID]*CdpTarget),
		logf:     logf,
		errf:     errf,
		closed:   make(chan struct{}),
	}
}

// Run starts the read/dispatch loop. It returns once ctx is cancelled
// or the connection is lost.
func (c *CdpClient) Run(ctx context.Context) {
	defer close(c.closed)
	defer c.conn.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	incoming := make(chan *cdproto.Message, 1024)
	go func() {
		defer cancel()
		for {
			msg := new(cdproto.Message)
			if err := c.conn.Read(msg); err != nil {
				return
			}
			select {
			case incoming <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	respByID := make(map[int64]chan *cdproto.Message)

	for {
		select {
		case <-ctx.Done():
			return

		case msg := <-incoming:
			switch {
			case msg.Method != "":
				if msg.SessionID != "" {
					c.targetsMu.RLock()
					t, ok := c.targets[msg.SessionID]
					c.targetsMu.RUnlock()
					if !ok {
						c.errf("event for unknown session %q: %s", msg.SessionID, msg.Method)
						continue
					}
					t.dispatchEvent(msg)
					continue
				}
				// browser-level (sessionless) event; no listeners at
				// this layer today, but don't treat it as malformed.

			case msg.ID != 0:
				ch, ok := respByID[msg.ID]
				if !ok {
					c.errf("id %d not present in response map", msg.ID)
					continue
				}
				delete(respByID, msg.ID)
				ch <- msg
				close(ch)

			default:
				c.errf("ignoring malformed incoming message: %#v", msg)
			}

		case job := <-c.cmdQueue:
			if _, ok := respByID[job.msg.ID]; ok {
				c.errf("id %d already in flight", job.msg.ID)
				continue
			}
			respByID[job.msg.ID] = job.resp
			if err := c.conn.Write(job.msg); err != nil {
				c.errf("write failed: %v", err)
				delete(respByID, job.msg.ID)
				job.resp <- &cdproto.Message{ID: job.msg.ID, Error: &cdproto.Error{Message: err.Error()}}
				close(job.resp)
			}
		}
	}
}

// Done is closed once Run has returned.
func (c *CdpClient) Done() <-chan struct{} { return c.closed }

// Execute sends a browser-level (sessionless) CDP command.
func (c *CdpClient) Execute(ctx context.Context, method string, params easyJSONMarshaler, res easyJSONUnmarshaler) error {
	return c.execute(ctx, "", method, params, res)
}

func (c *CdpClient) execute(ctx context.Context, sessionID target.SessionID, method string, params easyJSONMarshaler, res easyJSONUnmarshaler) error {
	buf, err := marshalParams(params)
	if err != nil {
		return err
	}
	id := atomic.AddInt64(&c.next, 1)
	ch := make(chan *cdproto.Message, 1)
	job := cmdJob{
		msg: &cdproto.Message{
			ID:        id,
			SessionID: sessionID,
			Method:    cdproto.MethodType(method),
			Params:    buf,
		},
		resp: ch,
	}
	select {
	case c.cmdQueue <- job:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case msg := <-ch:
		return unmarshalResult(msg, res)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// registerTarget registers a CdpTarget so incoming flat-mode traffic for
// its session id is routed to it.
func (c *CdpClient) registerTarget(t *CdpTarget) {
	c.targetsMu.Lock()
	c.targets[t.SessionID] = t
	c.targetsMu.Unlock()
}

func (c *CdpClient) unregisterTarget(sessionID target.SessionID) {
	c.targetsMu.Lock()
	delete(c.targets, sessionID)
	c.targetsMu.Unlock()
}

// easyJSONMarshaler/easyJSONUnmarshaler alias easyjson's own interfaces
// so this package's Execute methods satisfy cdp.Executor, the
// interface every generated cdproto command's Do method targets
// (mirroring Browser.Execute/Target.Execute in the teacher).
type easyJSONMarshaler = easyjson.Marshaler
type easyJSONUnmarshaler = easyjson.Unmarshaler

func marshalParams(params easyJSONMarshaler) ([]byte, error) {
	if params == nil {
		return []byte(`{}`), nil
	}
	return easyjson.Marshal(params)
}

func unmarshalResult(msg *cdproto.Message, res easyJSONUnmarshaler) error {
	if msg == nil {
		return ErrChannelClosed
	}
	if msg.Error != nil {
		return fmt.Errorf("cdp error %d: %s", msg.Error.Code, msg.Error.Message)
	}
	if res == nil {
		return nil
	}
	return easyjson.Unmarshal(msg.Result, res)
}
