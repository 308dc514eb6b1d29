package rpc

import (
	"context"

	authgate "github.com/goliatone/go-auth-gate"
	goerrors "github.com/goliatone/go-errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// Client calls the verification service. It implements
// authgate.LinkRequester so the Controller can resend without credentials.
type Client struct {
	conn *grpc.ClientConn
}

var _ authgate.LinkRequester = (*Client)(nil)

// Dial creates a client for target. Without options the connection is
// plaintext.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

// NewClient wraps an existing connection.
func NewClient(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// SendVerification invokes the remote method.
func (c *Client) SendVerification(ctx context.Context, req *SendVerificationRequest) (*SendVerificationResponse, error) {
	out := new(SendVerificationResponse)
	err := c.conn.Invoke(ctx, SendVerificationMethod, req, out, grpc.CallContentSubtype(CodecName))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RequestVerification implements authgate.LinkRequester. Status codes are
// mapped back onto the authgate sentinels.
func (c *Client) RequestVerification(ctx context.Context, email string) error {
	_, err := c.SendVerification(ctx, &SendVerificationRequest{Email: email})
	if err == nil {
		return nil
	}

	st, ok := status.FromError(err)
	if !ok {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "verification rpc failed")
	}

	switch st.Code() {
	case codes.InvalidArgument:
		return authgate.ErrEmailRequired
	case codes.Canceled:
		return context.Canceled
	case codes.DeadlineExceeded:
		return context.DeadlineExceeded
	default:
		return authgate.ErrDeliveryFailed
	}
}
