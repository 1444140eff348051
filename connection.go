package mapper

import (
	"bytes"
	"context"
	"io"
	"net"
	"strings"

	"github.com/chromedp/cdproto"
	"github.com/gorilla/websocket"
	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"
)

var (
	// DefaultReadBufferSize is the default maximum read buffer size for
	// the root CDP connection.
	DefaultReadBufferSize = 25 * 1024 * 1024

	// DefaultWriteBufferSize is the default maximum write buffer size.
	DefaultWriteBufferSize = 10 * 1024 * 1024
)

// CdpTransport is the interface a root CDP connection must satisfy. It
// is deliberately framed in terms of cdproto.Message, the same wire
// envelope cdproto's domain packages already know how to build and
// consume.
type CdpTransport interface {
	Read(*cdproto.Message) error
	Write(*cdproto.Message) error
	io.Closer
}

// CdpConn wraps a gorilla/websocket connection to the browser's CDP
// endpoint, reusing the easyjson lexer/writer across calls the way the
// teacher's Conn does to keep the hot read/write path allocation-light.
type CdpConn struct {
	*websocket.Conn

	buf bytes.Buffer

	lexer  jlexer.Lexer
	writer jwriter.Writer

	dbgf func(string, ...interface{})
}

// DialContext dials the browser's CDP WebSocket endpoint.
func DialContext(ctx context.Context, urlstr string, opts ...DialOption) (*CdpConn, error) {
	d := &websocket.Dialer{
		ReadBufferSize:  DefaultReadBufferSize,
		WriteBufferSize: DefaultWriteBufferSize,
	}

	conn, _, err := d.DialContext(ctx, ForceIP(urlstr), nil)
	if err != nil {
		return nil, err
	}

	c := &CdpConn{Conn: conn}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (c *CdpConn) bufReadAll(r io.Reader) ([]byte, error) {
	c.buf.Reset()
	_, err := c.buf.ReadFrom(r)
	return c.buf.Bytes(), err
}

// Read reads the next message off the socket.
func (c *CdpConn) Read(msg *cdproto.Message) error {
	typ, r, err := c.NextReader()
	if err != nil {
		return err
	}
	if typ != websocket.TextMessage {
		return Error("invalid websocket message")
	}

	buf, err := c.bufReadAll(r)
	if err != nil {
		return err
	}
	if c.dbgf != nil {
		c.dbgf("<- %s", buf)
	}

	c.lexer = jlexer.Lexer{Data: buf}
	msg.UnmarshalEasyJSON(&c.lexer)
	if err := c.lexer.Error(); err != nil {
		return err
	}

	// msg.Result aliases the read buffer, which gets reused on the next
	// call; copy it out so concurrent readers of the result don't race.
	msg.Result = append([]byte{}, msg.Result...)
	return nil
}

// Write writes a message to the socket.
func (c *CdpConn) Write(msg *cdproto.Message) error {
	w, err := c.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}
	defer w.Close()

	c.writer = jwriter.Writer{}
	msg.MarshalEasyJSON(&c.writer)
	if err := c.writer.Error; err != nil {
		return err
	}

	if c.dbgf != nil {
		buf, _ := c.writer.BuildBytes()
		c.dbgf("-> %s", buf)
		if _, err := w.Write(buf); err != nil {
			return err
		}
	} else if _, err := c.writer.DumpTo(w); err != nil {
		return err
	}
	return w.Close()
}

// ForceIP forces the host component of urlstr to be an IP address.
//
// Since Chrome 66+, the CDP WebSocket server requires the "Host:"
// header to be either an IP address or "localhost".
func ForceIP(urlstr string) string {
	i := strings.Index(urlstr, "://")
	if i == -1 {
		return urlstr
	}
	scheme := urlstr[:i+3]
	host, port, path := urlstr[len(scheme):], "", ""
	if j := strings.Index(host, "/"); j != -1 {
		host, path = host[:j], host[j:]
	}
	if j := strings.Index(host, ":"); j != -1 {
		host, port = host[:j], host[j:]
	}
	if addr, err := net.ResolveIPAddr("ip", host); err == nil {
		urlstr = scheme + addr.IP.String() + port + path
	}
	return urlstr
}

// DialOption configures a CdpConn.
type DialOption func(*CdpConn)

// WithConnDebugf sets a protocol-level wire logger.
func WithConnDebugf(f func(string, ...interface{})) DialOption {
	return func(c *CdpConn) { c.dbgf = f }
}

