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

// Package lifecycle pkg/lifecycle/server.go runs a service alongside an
// optional gRPC server and handles shutdown.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carverauto/siteradar/pkg/grpc"
	"github.com/carverauto/siteradar/pkg/logger"
	"github.com/carverauto/siteradar/pkg/models"
	"github.com/sirupsen/logrus"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	MaxRecvSize     = 4 * 1024 * 1024 // 4MB
	MaxSendSize     = 4 * 1024 * 1024 // 4MB
	ShutdownTimeout = 10 * time.Second
)

// Service defines the interface that all services must implement.
type Service interface {
	Start(context.Context) error
	Stop(context.Context) error
}

// GRPCServiceRegistrar is a function type for registering gRPC services.
type GRPCServiceRegistrar func(*grpc.Server) error

// ServerOptions holds configuration for creating a server.
type ServerOptions struct {
	ServiceName string
	Service     Service

	// GRPCAddr enables the gRPC server when set.
	GRPCAddr             string
	RegisterGRPCServices []GRPCServiceRegistrar
	Security             *models.SecurityConfig

	// Signals overrides the default SIGINT/SIGTERM notification.
	Signals <-chan os.Signal
}

// RunServer starts a service with the provided options and blocks until a
// signal, a service error, or ctx cancellation, then shuts everything down
// within ShutdownTimeout.
func RunServer(ctx context.Context, opts *ServerOptions) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log := logger.For("lifecycle").WithField("service", opts.ServiceName)
	log.Info("starting service")

	var (
		grpcServer *grpc.Server
		provider   grpc.SecurityProvider
		err        error
	)

	if opts.GRPCAddr != "" {
		grpcServer, provider, err = setupGRPCServer(ctx, opts)
		if err != nil {
			return fmt.Errorf("failed to setup gRPC server: %w", err)
		}

		defer closeProvider(log, provider)
	}

	errChan := make(chan error, 2)

	go func() {
		if err := opts.Service.Start(ctx); err != nil {
			select {
			case errChan <- err:
			default:
				log.WithError(err).Error("service error")
			}
		}
	}()

	if grpcServer != nil {
		go func() {
			log.WithField("addr", opts.GRPCAddr).Info("starting gRPC server")

			if err := grpcServer.Start(); err != nil {
				select {
				case errChan <- err:
				default:
					log.WithError(err).Error("gRPC server error")
				}
			}
		}()
	}

	return handleShutdown(ctx, log, cancel, grpcServer, opts, errChan)
}

func setupGRPCServer(ctx context.Context, opts *ServerOptions) (*grpc.Server, grpc.SecurityProvider, error) {
	serverOpts := []grpc.ServerOption{
		grpc.WithMaxRecvSize(MaxRecvSize),
		grpc.WithMaxSendSize(MaxSendSize),
	}

	provider, err := grpc.NewSecurityProvider(ctx, opts.Security)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create security provider: %w", err)
	}

	creds, err := provider.GetServerCredentials(ctx)
	if err != nil {
		if closeErr := provider.Close(); closeErr != nil {
			return nil, nil, errors.Join(err, closeErr)
		}

		return nil, nil, fmt.Errorf("failed to get server credentials: %w", err)
	}

	serverOpts = append(serverOpts, grpc.WithServerOptions(creds))

	grpcServer := grpc.NewServer(opts.GRPCAddr, serverOpts...)
	grpcServer.GetHealthCheck().SetServingStatus(opts.ServiceName, healthpb.HealthCheckResponse_SERVING)

	for _, register := range opts.RegisterGRPCServices {
		if err := register(grpcServer); err != nil {
			if closeErr := provider.Close(); closeErr != nil {
				return nil, nil, errors.Join(err, closeErr)
			}

			return nil, nil, fmt.Errorf("failed to register gRPC service: %w", err)
		}
	}

	return grpcServer, provider, nil
}

func handleShutdown(
	ctx context.Context,
	log *logrus.Entry,
	cancel context.CancelFunc,
	grpcServer *grpc.Server,
	opts *ServerOptions,
	errChan chan error) error {
	sigChan := opts.Signals
	if sigChan == nil {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)

		defer signal.Stop(ch)

		sigChan = ch
	}

	var runErr error

	select {
	case sig := <-sigChan:
		log.WithField("signal", sig.String()).Info("received signal, initiating shutdown")
	case err := <-errChan:
		log.WithError(err).Error("received error, initiating shutdown")

		runErr = fmt.Errorf("service error: %w", err)
	case <-ctx.Done():
		log.Info("context canceled, initiating shutdown")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer shutdownCancel()

	cancel()

	if grpcServer != nil {
		grpcServer.Stop(shutdownCtx)
	}

	if err := opts.Service.Stop(shutdownCtx); err != nil {
		log.WithError(err).Error("error during service shutdown")

		return errors.Join(runErr, fmt.Errorf("shutdown error: %w", err))
	}

	log.Info("shutdown complete")

	return runErr
}

func closeProvider(log *logrus.Entry, provider grpc.SecurityProvider) {
	if err := provider.Close(); err != nil {
		log.WithError(err).Warn("failed to close security provider")
	}
}
