package protocol

import (
	"bufio"
	"context"
	"net"
	"time"

	"github.com/heitortanoue/fractalworker/pkg/model"
)

// Options tune a Connection. Zero values keep the plain blocking behaviour.
type Options struct {
	DialTimeout  time.Duration // 0: no dial timeout
	IOTimeout    time.Duration // 0: reads and writes may block forever
	MaxFrameSize uint32        // 0: accept any total_len
}

// Connection speaks the fragment protocol over one stream. It is used by the
// worker (SendRequest, ReadTask, SendResult) and by distributor peers
// (ReadRequest, SendTask, ReadResult).
type Connection struct {
	conn    net.Conn
	writer  *bufio.Writer
	opts    Options
	written uint64
	read    uint64
}

// Dial opens a TCP connection to addr ("host:port")
func Dial(ctx context.Context, addr string, opts Options) (*Connection, error) {
	dialer := net.Dialer{Timeout: opts.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, ioErr("connect "+addr, err)
	}
	return NewConnection(conn, opts), nil
}

// NewConnection wraps an established stream
func NewConnection(conn net.Conn, opts Options) *Connection {
	return &Connection{
		conn:   conn,
		writer: bufio.NewWriter(conn),
		opts:   opts,
	}
}

// SendRequest writes a request frame: total_len == json_len, no trailing data
func (c *Connection) SendRequest(req FragmentRequest) error {
	jsonText, err := EncodeRequest(req)
	if err != nil {
		return err
	}
	return c.send(jsonText)
}

// ReadTask reads the next task frame and returns the task with its raw id bytes
func (c *Connection) ReadTask() (FragmentTask, []byte, error) {
	f, err := c.receive()
	if err != nil {
		return FragmentTask{}, nil, err
	}
	return DecodeTask(f)
}

// SendResult writes a result frame: json, then id bytes, then 8 bytes per pixel
func (c *Connection) SendResult(result FragmentResult, id []byte, pixels []model.PixelIntensity) error {
	jsonText, err := EncodeResult(result)
	if err != nil {
		return err
	}
	return c.send(jsonText, id, EncodePixels(pixels))
}

// ReadRequest reads a request frame (distributor side)
func (c *Connection) ReadRequest() (FragmentRequest, error) {
	f, err := c.receive()
	if err != nil {
		return FragmentRequest{}, err
	}
	return DecodeRequest(f)
}

// SendTask writes a task frame with id as trailing data (distributor side)
func (c *Connection) SendTask(task FragmentTask, id []byte) error {
	jsonText, err := EncodeTask(task)
	if err != nil {
		return err
	}
	return c.send(jsonText, id)
}

// ReadResult reads a result frame (distributor side)
func (c *Connection) ReadResult() (FragmentResult, []byte, []model.PixelIntensity, error) {
	f, err := c.receive()
	if err != nil {
		return FragmentResult{}, nil, nil, err
	}
	return DecodeResult(f)
}

// BytesWritten returns the number of bytes sent, headers included
func (c *Connection) BytesWritten() uint64 {
	return c.written
}

// BytesRead returns the number of bytes received, headers included
func (c *Connection) BytesRead() uint64 {
	return c.read
}

// RemoteAddr returns the peer address
func (c *Connection) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// Close closes the underlying stream
func (c *Connection) Close() error {
	return c.conn.Close()
}

func (c *Connection) send(jsonText []byte, data ...[]byte) error {
	if err := c.armDeadline(); err != nil {
		return err
	}

	if err := WriteFrame(c.writer, jsonText, data...); err != nil {
		c.writer.Reset(c.conn)
		return err
	}
	if err := c.writer.Flush(); err != nil {
		c.writer.Reset(c.conn)
		return ioErr("flush frame", err)
	}

	size := uint64(headerSize + len(jsonText))
	for _, part := range data {
		size += uint64(len(part))
	}
	c.written += size
	return nil
}

func (c *Connection) receive() (Frame, error) {
	if err := c.armDeadline(); err != nil {
		return Frame{}, err
	}

	f, err := ReadFrame(c.conn, c.opts.MaxFrameSize)
	if err != nil {
		return Frame{}, err
	}
	c.read += uint64(headerSize + f.TotalLen())
	return f, nil
}

func (c *Connection) armDeadline() error {
	if c.opts.IOTimeout <= 0 {
		return nil
	}
	if err := c.conn.SetDeadline(time.Now().Add(c.opts.IOTimeout)); err != nil {
		return ioErr("set deadline", err)
	}
	return nil
}
