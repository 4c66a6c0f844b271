/*-
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package grpc - gRPC client with mTLS support
package grpc

import (
	"context"
	"fmt"
	"time"

	"github.com/carverauto/siteradar/pkg/logger"
	"github.com/carverauto/siteradar/pkg/models"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"
)

const (
	defaultMaxRetries    = 3
	retryBaseDelay       = 100 * time.Millisecond
	grpcKeepAliveTime    = 30 * time.Second
	grpcKeepAliveTimeout = 5 * time.Second
)

type ConnectionConfig struct {
	Address  string                `json:"address" yaml:"address"`
	Security models.SecurityConfig `json:"security,omitempty" yaml:"security,omitempty"`
}

// ClientOption allows customization of the client.
type ClientOption func(*ClientConn)

// ClientConn wraps a gRPC client connection with retry, logging and health
// checks.
type ClientConn struct {
	conn             *grpc.ClientConn
	healthClient     grpc_health_v1.HealthClient
	addr             string
	maxRetries       int
	securityProvider SecurityProvider
	dialOpts         []grpc.DialOption
}

// NewClient creates a new gRPC client connection. The connection is
// established lazily on the first call.
func NewClient(ctx context.Context, connConfig *ConnectionConfig, opts ...ClientOption) (*ClientConn, error) {
	if connConfig == nil {
		return nil, errConnectionConfigRequired
	}

	c := &ClientConn{
		addr:       connConfig.Address,
		maxRetries: defaultMaxRetries,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.securityProvider == nil {
		provider, err := NewSecurityProvider(ctx, &connConfig.Security)
		if err != nil {
			return nil, fmt.Errorf("failed to create security provider: %w", err)
		}

		c.securityProvider = provider
	}

	dialOpts, err := c.createDialOptions(ctx)
	if err != nil {
		_ = c.securityProvider.Close()

		return nil, fmt.Errorf("failed to create dial options: %w", err)
	}

	conn, err := grpc.NewClient(connConfig.Address, dialOpts...)
	if err != nil {
		_ = c.securityProvider.Close()

		return nil, fmt.Errorf("failed to dial %s: %w", connConfig.Address, err)
	}

	c.conn = conn
	c.healthClient = grpc_health_v1.NewHealthClient(conn)

	logger.For("grpc").WithField("addr", connConfig.Address).Debug("created gRPC client connection")

	return c, nil
}

func (c *ClientConn) createDialOptions(ctx context.Context) ([]grpc.DialOption, error) {
	creds, err := c.securityProvider.GetClientCredentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get client credentials: %w", err)
	}

	dialOpts := []grpc.DialOption{
		creds,
		grpc.WithChainUnaryInterceptor(
			ClientLoggingInterceptor,
			RetryInterceptor(c.maxRetries),
		),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                grpcKeepAliveTime,
			Timeout:             grpcKeepAliveTimeout,
			PermitWithoutStream: true,
		}),
	}

	return append(dialOpts, c.dialOpts...), nil
}

// RetryInterceptor retries calls that fail with codes.Unavailable, backing
// off linearly between attempts. Any other outcome is returned as is.
func RetryInterceptor(maxRetries int) grpc.UnaryClientInterceptor {
	if maxRetries < 1 {
		maxRetries = 1
	}

	return func(ctx context.Context,
		method string,
		req, reply interface{},
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption) error {
		var lastErr error

		for attempt := 0; attempt < maxRetries; attempt++ {
			if attempt > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(time.Duration(attempt) * retryBaseDelay):
				}
			}

			lastErr = invoker(ctx, method, req, reply, cc, opts...)
			if status.Code(lastErr) != codes.Unavailable {
				return lastErr
			}

			logger.For("grpc").WithError(lastErr).WithFields(logrus.Fields{
				"method":  method,
				"attempt": attempt + 1,
			}).Warn("gRPC call attempt failed")
		}

		return lastErr
	}
}

// WithMaxRetries sets the maximum number of attempts for unavailable errors.
func WithMaxRetries(retries int) ClientOption {
	return func(c *ClientConn) {
		c.maxRetries = retries
	}
}

// WithSecurityProvider sets the security provider for the client.
func WithSecurityProvider(provider SecurityProvider) ClientOption {
	return func(c *ClientConn) {
		c.securityProvider = provider
	}
}

// WithDialOptions appends raw dial options, e.g. a custom dialer in tests.
func WithDialOptions(opts ...grpc.DialOption) ClientOption {
	return func(c *ClientConn) {
		c.dialOpts = append(c.dialOpts, opts...)
	}
}

// GetConnection returns the underlying gRPC connection.
func (c *ClientConn) GetConnection() *grpc.ClientConn {
	return c.conn
}

// Close closes the client connection.
func (c *ClientConn) Close() error {
	if c.securityProvider != nil {
		if err := c.securityProvider.Close(); err != nil {
			logger.For("grpc").WithError(err).Warn("failed to close security provider")
		}
	}

	return c.conn.Close()
}

// CheckHealth checks the health of a specific service.
func (c *ClientConn) CheckHealth(ctx context.Context, service string) (bool, error) {
	resp, err := c.healthClient.Check(ctx, &grpc_health_v1.HealthCheckRequest{
		Service: service,
	})
	if err != nil {
		return false, fmt.Errorf("health check failed: %w", err)
	}

	return resp.Status == grpc_health_v1.HealthCheckResponse_SERVING, nil
}

// ClientLoggingInterceptor logs client-side RPC calls.
func ClientLoggingInterceptor(
	ctx context.Context,
	method string,
	req interface{},
	reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption) error {
	start := time.Now()
	err := invoker(ctx, method, req, reply, cc, opts...)

	logger.For("grpc").WithFields(logrus.Fields{
		"method":   method,
		"code":     status.Code(err).String(),
		"duration": time.Since(start),
	}).Debug("gRPC client call")

	return err
}
