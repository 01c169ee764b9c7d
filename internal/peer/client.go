package peer

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"versync/internal/transfer"
)

// Client implements transfer.Backend against a remote History service.
type Client struct {
	conn  grpc.ClientConnInterface
	close func() error
}

var _ transfer.Backend = (*Client)(nil)

// Dial connects to the History service at addr. The connection is
// established lazily on first use.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}
	return &Client{conn: conn, close: conn.Close}, nil
}

// NewClient wraps an existing connection. Close does not close it.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn, close: func() error { return nil }}
}

func (c *Client) invoke(ctx context.Context, method string, req, resp message) error {
	return c.conn.Invoke(ctx, "/"+serviceName+"/"+method, req, resp, grpc.ForceCodec(wireCodec{}))
}

func (c *Client) List(ctx context.Context, prefix string) ([]string, error) {
	resp := &ListResponse{}
	if err := c.invoke(ctx, "List", &ListRequest{Prefix: prefix}, resp); err != nil {
		return nil, fromStatus("list", prefix, err)
	}
	return resp.Keys, nil
}

func (c *Client) Read(ctx context.Context, key string) ([]byte, error) {
	resp := &ReadResponse{}
	if err := c.invoke(ctx, "Read", &ReadRequest{Key: key}, resp); err != nil {
		return nil, fromStatus("read", key, err)
	}
	return resp.Data, nil
}

func (c *Client) Write(ctx context.Context, key string, data []byte) error {
	if err := c.invoke(ctx, "Write", &WriteRequest{Key: key, Data: data}, &WriteResponse{}); err != nil {
		return fromStatus("write", key, err)
	}
	return nil
}

// Close closes the connection if Dial opened it.
func (c *Client) Close() error {
	return c.close()
}

func fromStatus(op, key string, err error) error {
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%s %s: %w", op, key, transfer.ErrNotFound)
	}
	return fmt.Errorf("%s %s: %w", op, key, err)
}
