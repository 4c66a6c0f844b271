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

package grpc

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/carverauto/siteradar/pkg/models"
)

const (
	rootCertFile   = "root.pem"
	serverCertFile = "server.pem"
	serverKeyFile  = "server-key.pem"
	clientCertFile = "client.pem"
	clientKeyFile  = "client-key.pem"
)

// CertificateManager locates the PEM files an mTLS provider needs.
type CertificateManager struct {
	config *models.SecurityConfig
}

func NewCertificateManager(config *models.SecurityConfig) *CertificateManager {
	return &CertificateManager{config: config}
}

// Path returns the location of name inside the certificate directory.
func (cm *CertificateManager) Path(name string) string {
	return filepath.Join(cm.config.CertDir, name)
}

// RequiredFiles lists the files a role must have on disk.
func RequiredFiles(role models.ServiceRole) ([]string, error) {
	switch role {
	case models.RoleCore:
		return []string{rootCertFile, serverCertFile, serverKeyFile}, nil
	case models.RolePusher:
		return []string{rootCertFile, clientCertFile, clientKeyFile}, nil
	default:
		return nil, fmt.Errorf("%w: %q", errInvalidServiceRole, role)
	}
}

// ValidateCertificates reports every required file missing from the
// certificate directory in a single error.
func (cm *CertificateManager) ValidateCertificates() error {
	required, err := RequiredFiles(cm.config.Role)
	if err != nil {
		return err
	}

	var missing []string

	for _, file := range required {
		if _, err := os.Stat(cm.Path(file)); os.IsNotExist(err) {
			missing = append(missing, file)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w in %s: %s", errMissingCerts, cm.config.CertDir, strings.Join(missing, ", "))
	}

	return nil
}
