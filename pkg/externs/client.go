package externs

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/ipfs/go-cid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/keepalive"

	"github.com/cobaltchain/cobalt-fvm/internal/types"
	"github.com/cobaltchain/cobalt-fvm/pkg/gas"
)

// Client errors.
var (
	ErrNotConnected = errors.New("oracle client not connected")
	ErrClosed       = errors.New("oracle client closed")
)

// Oracle RPC methods. The oracle service speaks CBOR-encoded unary
// calls; see wire.go for the message shapes.
const (
	methodChainRandomness  = "/oracle.ChainOracle/ChainRandomness"
	methodBeaconRandomness = "/oracle.ChainOracle/BeaconRandomness"
	methodTipsetCID        = "/oracle.ChainOracle/TipsetCID"
	methodVerifyFault      = "/oracle.ChainOracle/VerifyConsensusFault"
)

// ClientConfig contains configuration for the oracle client.
type ClientConfig struct {
	// Endpoint is the oracle gRPC endpoint (host:port).
	Endpoint string

	// UseTLS enables TLS for the connection.
	UseTLS bool

	// Token is an optional authentication token sent with each call.
	Token string

	// CallTimeout bounds each oracle call.
	CallTimeout time.Duration

	// KeepaliveTime is the interval between keepalive pings.
	KeepaliveTime time.Duration

	// KeepaliveTimeout is how long to wait for a ping ack.
	KeepaliveTimeout time.Duration

	// MaxMessageSize is the maximum gRPC message size.
	MaxMessageSize int
}

// DefaultClientConfig returns default configuration for an endpoint.
func DefaultClientConfig(endpoint string) ClientConfig {
	return ClientConfig{
		Endpoint:         endpoint,
		UseTLS:           false,
		CallTimeout:      30 * time.Second,
		KeepaliveTime:    30 * time.Second,
		KeepaliveTimeout: 10 * time.Second,
		MaxMessageSize:   16 << 20, // 16MB
	}
}

// Client is a gRPC chain-oracle client implementing Externs. It lets
// a kernel run against a remote node that holds the chain: randomness,
// tipset lookups, and consensus-fault evaluation are all answered by
// the oracle.
type Client struct {
	config ClientConfig
	conn   *grpc.ClientConn
	closed atomic.Bool
}

// NewClient creates a new oracle client with the given configuration.
// The client is not connected until Connect() is called.
func NewClient(config ClientConfig) (*Client, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("invalid config: empty endpoint")
	}
	if config.CallTimeout <= 0 {
		config.CallTimeout = 30 * time.Second
	}
	return &Client{config: config}, nil
}

// Connect establishes the gRPC connection.
func (c *Client) Connect() error {
	if c.closed.Load() {
		return ErrClosed
	}

	kacp := keepalive.ClientParameters{
		Time:                c.config.KeepaliveTime,
		Timeout:             c.config.KeepaliveTimeout,
		PermitWithoutStream: true,
	}

	opts := []grpc.DialOption{
		grpc.WithKeepaliveParams(kacp),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(c.config.MaxMessageSize),
			grpc.MaxCallSendMsgSize(c.config.MaxMessageSize),
			grpc.ForceCodec(cborCodec{}),
		),
	}

	if c.config.UseTLS {
		opts = append(opts, grpc.WithTransportCredentials(
			credentials.NewTLS(&tls.Config{
				MinVersion: tls.VersionTLS12,
			}),
		))
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	if c.config.Token != "" {
		opts = append(opts, grpc.WithPerRPCCredentials(&tokenAuth{
			token:      c.config.Token,
			requireTLS: c.config.UseTLS,
		}))
	}

	//nolint:staticcheck // Using Dial for compatibility with older gRPC versions
	conn, err := grpc.Dial(c.config.Endpoint, opts...)
	if err != nil {
		return fmt.Errorf("failed to dial gRPC: %w", err)
	}
	c.conn = conn
	return nil
}

// Close tears down the connection. The client cannot be reused.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return ErrClosed
	}
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// GetChainRandomness draws randomness from the chain's own tickets.
func (c *Client) GetChainRandomness(pers int64, round types.ChainEpoch, entropy []byte) ([RandomnessLength]byte, error) {
	return c.randomness(methodChainRandomness, pers, round, entropy)
}

// GetBeaconRandomness draws randomness from the external beacon.
func (c *Client) GetBeaconRandomness(pers int64, round types.ChainEpoch, entropy []byte) ([RandomnessLength]byte, error) {
	return c.randomness(methodBeaconRandomness, pers, round, entropy)
}

func (c *Client) randomness(method string, pers int64, round types.ChainEpoch, entropy []byte) ([RandomnessLength]byte, error) {
	var out [RandomnessLength]byte

	req := &randomnessRequest{
		Personalization: pers,
		Round:           round,
		Entropy:         entropy,
	}
	var resp randomnessResponse
	if err := c.invoke(method, req, &resp); err != nil {
		return out, err
	}
	return resp.Randomness, nil
}

// GetTipsetCID returns the identifier of the tipset at the given
// epoch, or ErrTipsetNotFound past the oracle's horizon.
func (c *Client) GetTipsetCID(epoch types.ChainEpoch) (cid.Cid, error) {
	req := &tipsetRequest{Epoch: epoch}
	var resp tipsetResponse
	if err := c.invoke(methodTipsetCID, req, &resp); err != nil {
		return cid.Undef, err
	}
	if !resp.Found {
		return cid.Undef, fmt.Errorf("%w: epoch %d", ErrTipsetNotFound, epoch)
	}
	return resp.CID, nil
}

// VerifyConsensusFault asks the oracle to evaluate two block headers
// for a consensus fault, returning the fault (nil when none) and the
// gas the evaluation cost.
func (c *Client) VerifyConsensusFault(h1, h2, extra []byte) (*types.ConsensusFault, gas.Gas, error) {
	req := &faultRequest{Header1: h1, Header2: h2, Extra: extra}
	var resp faultResponse
	if err := c.invoke(methodVerifyFault, req, &resp); err != nil {
		return nil, gas.Zero, err
	}
	return resp.Fault, gas.NewGas(resp.GasUsed), nil
}

// invoke runs one unary oracle call under the configured timeout.
func (c *Client) invoke(method string, req, resp interface{}) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if c.conn == nil {
		return ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.config.CallTimeout)
	defer cancel()

	if err := c.conn.Invoke(ctx, method, req, resp); err != nil {
		return fmt.Errorf("oracle call %s: %w", method, err)
	}
	return nil
}

// tokenAuth attaches the authentication token to each call.
type tokenAuth struct {
	token      string
	requireTLS bool
}

// GetRequestMetadata returns the authentication metadata.
func (t *tokenAuth) GetRequestMetadata(ctx context.Context, uri ...string) (map[string]string, error) {
	return map[string]string{
		"x-token": t.token,
	}, nil
}

// RequireTransportSecurity returns whether TLS is required.
func (t *tokenAuth) RequireTransportSecurity() bool {
	return t.requireTLS
}

// Verify interface compliance.
var _ Externs = (*Client)(nil)

// cborCodec marshals oracle messages as CBOR in place of protobuf.
type cborCodec struct{}

type cborMarshaler interface {
	MarshalCBOR(w io.Writer) error
}

type cborUnmarshaler interface {
	UnmarshalCBOR(r io.Reader) error
}

func (cborCodec) Marshal(v interface{}) ([]byte, error) {
	m, ok := v.(cborMarshaler)
	if !ok {
		return nil, fmt.Errorf("message %T has no CBOR encoding", v)
	}
	var buf bytes.Buffer
	if err := m.MarshalCBOR(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (cborCodec) Unmarshal(data []byte, v interface{}) error {
	u, ok := v.(cborUnmarshaler)
	if !ok {
		return fmt.Errorf("message %T has no CBOR encoding", v)
	}
	return u.UnmarshalCBOR(bytes.NewReader(data))
}

func (cborCodec) Name() string { return "cbor" }

var _ encoding.Codec = cborCodec{}
