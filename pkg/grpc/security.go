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

// Package grpc pkg/grpc/security.go provides secure gRPC communication options
package grpc

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/carverauto/siteradar/pkg/logger"
	"github.com/carverauto/siteradar/pkg/models"
	"github.com/spiffe/go-spiffe/v2/spiffeid"
	"github.com/spiffe/go-spiffe/v2/spiffetls/tlsconfig"
	"github.com/spiffe/go-spiffe/v2/workloadapi"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	SecurityModeNone   models.SecurityMode = "none"
	SecurityModeSpiffe models.SecurityMode = "spiffe"
	SecurityModeMTLS   models.SecurityMode = "mtls"

	defaultWorkloadSocket = "unix:/run/spire/sockets/agent.sock"
)

// NoSecurityProvider implements SecurityProvider with no security (development only).
type NoSecurityProvider struct{}

func (*NoSecurityProvider) GetClientCredentials(context.Context) (grpc.DialOption, error) {
	return grpc.WithTransportCredentials(insecure.NewCredentials()), nil
}

func (*NoSecurityProvider) GetServerCredentials(context.Context) (grpc.ServerOption, error) {
	return grpc.Creds(insecure.NewCredentials()), nil
}

func (*NoSecurityProvider) Close() error {
	return nil
}

// MTLSProvider implements SecurityProvider with mutual TLS. The core only
// accepts connections and the pusher only dials, so each role loads one
// side of the key material.
type MTLSProvider struct {
	config      *models.SecurityConfig
	clientCreds credentials.TransportCredentials
	serverCreds credentials.TransportCredentials
}

func NewMTLSProvider(config *models.SecurityConfig) (*MTLSProvider, error) {
	if config == nil {
		return nil, errSecurityConfigRequired
	}

	certs := NewCertificateManager(config)
	if err := certs.ValidateCertificates(); err != nil {
		return nil, err
	}

	provider := &MTLSProvider{config: config}

	logger.For("grpc").WithField("role", config.Role).Info("initializing mTLS provider")

	var err error

	switch config.Role {
	case models.RoleCore:
		provider.serverCreds, err = loadServerCredentials(certs)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errFailedToLoadServerCreds, err)
		}
	case models.RolePusher:
		provider.clientCreds, err = loadClientCredentials(certs, config.ServerName)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errFailedToLoadClientCreds, err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", errInvalidServiceRole, config.Role)
	}

	return provider, nil
}

func (*MTLSProvider) Close() error {
	return nil
}

func loadCAPool(certs *CertificateManager) (*x509.CertPool, error) {
	caCert, err := os.ReadFile(certs.Path(rootCertFile))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errFailedToReadCACert, err)
	}

	caPool := x509.NewCertPool()
	if !caPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("%w: %s", errFailedToAppendCACert, certs.Path(rootCertFile))
	}

	return caPool, nil
}

func loadClientCredentials(certs *CertificateManager, serverName string) (credentials.TransportCredentials, error) {
	certificate, err := tls.LoadX509KeyPair(certs.Path(clientCertFile), certs.Path(clientKeyFile))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errFailedToLoadClientCert, err)
	}

	caPool, err := loadCAPool(certs)
	if err != nil {
		return nil, err
	}

	return credentials.NewTLS(&tls.Config{
		Certificates: []tls.Certificate{certificate},
		RootCAs:      caPool,
		ServerName:   serverName,
		MinVersion:   tls.VersionTLS13,
	}), nil
}

func loadServerCredentials(certs *CertificateManager) (credentials.TransportCredentials, error) {
	certificate, err := tls.LoadX509KeyPair(certs.Path(serverCertFile), certs.Path(serverKeyFile))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errFailedToLoadServerCert, err)
	}

	caPool, err := loadCAPool(certs)
	if err != nil {
		return nil, err
	}

	return credentials.NewTLS(&tls.Config{
		Certificates: []tls.Certificate{certificate},
		ClientCAs:    caPool,
		ClientAuth:   tls.RequireAndVerifyClientCert,
		MinVersion:   tls.VersionTLS13,
	}), nil
}

func (p *MTLSProvider) GetClientCredentials(context.Context) (grpc.DialOption, error) {
	if p.clientCreds == nil {
		return nil, errServiceNotClient
	}

	return grpc.WithTransportCredentials(p.clientCreds), nil
}

func (p *MTLSProvider) GetServerCredentials(context.Context) (grpc.ServerOption, error) {
	if p.serverCreds == nil {
		return nil, errServiceNotServer
	}

	return grpc.Creds(p.serverCreds), nil
}

// SpiffeProvider implements SecurityProvider using the SPIFFE workload API.
type SpiffeProvider struct {
	config      *models.SecurityConfig
	trustDomain spiffeid.TrustDomain
	client      *workloadapi.Client
	source      *workloadapi.X509Source
	closeOnce   sync.Once
}

// NewSpiffeProvider connects to the workload API and blocks until the first
// X.509 SVID arrives or ctx ends.
func NewSpiffeProvider(ctx context.Context, config *models.SecurityConfig) (*SpiffeProvider, error) {
	if config == nil {
		return nil, errSecurityConfigRequired
	}

	trustDomain, err := spiffeid.TrustDomainFromString(config.TrustDomain)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errInvalidTrustDomain, err)
	}

	socket := config.WorkloadSocket
	if socket == "" {
		socket = defaultWorkloadSocket
	}

	client, err := workloadapi.New(ctx, workloadapi.WithAddr(socket))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errFailedWorkloadAPIClient, err)
	}

	source, err := workloadapi.NewX509Source(ctx, workloadapi.WithClient(client))
	if err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("%w: %w", errFailedToCreateX509Source, err)
	}

	return &SpiffeProvider{
		config:      config,
		trustDomain: trustDomain,
		client:      client,
		source:      source,
	}, nil
}

// serverAuthorizer pins the core's SPIFFE ID when ServerName holds one and
// otherwise accepts any member of the trust domain.
func (p *SpiffeProvider) serverAuthorizer() (tlsconfig.Authorizer, error) {
	if !strings.HasPrefix(p.config.ServerName, "spiffe://") {
		return tlsconfig.AuthorizeMemberOf(p.trustDomain), nil
	}

	serverID, err := spiffeid.FromString(p.config.ServerName)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errInvalidServerSPIFFEID, err)
	}

	return tlsconfig.AuthorizeID(serverID), nil
}

func (p *SpiffeProvider) GetClientCredentials(context.Context) (grpc.DialOption, error) {
	authorizer, err := p.serverAuthorizer()
	if err != nil {
		return nil, err
	}

	tlsConfig := tlsconfig.MTLSClientConfig(p.source, p.source, authorizer)

	return grpc.WithTransportCredentials(credentials.NewTLS(tlsConfig)), nil
}

func (p *SpiffeProvider) GetServerCredentials(context.Context) (grpc.ServerOption, error) {
	tlsConfig := tlsconfig.MTLSServerConfig(p.source, p.source, tlsconfig.AuthorizeMemberOf(p.trustDomain))

	return grpc.Creds(credentials.NewTLS(tlsConfig)), nil
}

func (p *SpiffeProvider) Close() error {
	var err error

	p.closeOnce.Do(func() {
		if p.source != nil {
			if err = p.source.Close(); err != nil {
				logger.For("grpc").WithError(err).Warn("failed to close X.509 source")
			}
		}

		if p.client != nil {
			if cerr := p.client.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
	})

	return err
}

// NewSecurityProvider creates the appropriate security provider based on mode.
// A nil config or an empty mode means no transport security.
func NewSecurityProvider(ctx context.Context, config *models.SecurityConfig) (SecurityProvider, error) {
	if config == nil || config.Mode == "" {
		return &NoSecurityProvider{}, nil
	}

	logger.For("grpc").WithField("mode", config.Mode).Debug("creating security provider")

	switch config.Mode {
	case SecurityModeNone:
		return &NoSecurityProvider{}, nil
	case SecurityModeMTLS:
		provider, err := NewMTLSProvider(config)
		if err != nil {
			return nil, err
		}

		return provider, nil
	case SecurityModeSpiffe:
		provider, err := NewSpiffeProvider(ctx, config)
		if err != nil {
			return nil, err
		}

		return provider, nil
	default:
		return nil, fmt.Errorf("%w: %s", errUnknownSecurityMode, config.Mode)
	}
}
