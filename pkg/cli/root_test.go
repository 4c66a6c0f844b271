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

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/carverauto/siteradar/pkg/condense"
	"github.com/carverauto/siteradar/pkg/config"
	"github.com/carverauto/siteradar/pkg/core"
	"github.com/carverauto/siteradar/pkg/grpc"
	"github.com/carverauto/siteradar/pkg/models"
	"github.com/carverauto/siteradar/pkg/reconcile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	downSnapshot = `{"_meta":{"lastupdated":"2024-03-01T10:15:00Z","sitecount":10,"sitesup":9},"issues":[{"sitecode":7,"sitename":"Harbour","category":"critical","service":"DNS","target":"10.0.0.7","datetime":"2024-03-01T10:00:00Z"}]}`
	clearSnapshot = `{"_meta":{"lastupdated":"2024-03-01T10:30:00Z","sitecount":10,"sitesup":10},"issues":[]}`
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	// keep env overrides from the host out of the tests
	t.Setenv(config.EnvDBPath, "")
	t.Setenv(config.EnvHomeSiteCode, "")
	t.Setenv(config.EnvAPIToken, "")

	var out bytes.Buffer

	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))

	err := cmd.ExecuteContext(context.Background())

	return out.String(), err
}

func writeSnapshot(t *testing.T, dir, name, body string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()

	for _, name := range []string{"serve", "apply", "view", "events", "push"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, "", "view", "--format", "xml", "--db", "x.db", "--home-site", "99")
	require.ErrorIs(t, err, errInvalidFormat)
}

func TestOfflineRequiresDBAndHomeSite(t *testing.T) {
	_, err := execute(t, "", "view", "--home-site", "99")
	require.ErrorIs(t, err, errNoDBPath)

	_, err = execute(t, "", "view", "--db", filepath.Join(t.TempDir(), "state.db"))
	require.ErrorIs(t, err, errNoHomeSite)
}

func TestServeRequiresConfig(t *testing.T) {
	_, err := execute(t, "", "serve")
	require.ErrorIs(t, err, errNoConfig)
}

func TestApplyViewEvents(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "state.db")
	common := []string{"--db", dbPath, "--home-site", "99"}

	out, err := execute(t, "", append([]string{"view"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "no reconciliation has run yet")

	down := writeSnapshot(t, dir, "down.json", downSnapshot)

	out, err = execute(t, "", append([]string{"apply", down, "--format", "json"}, common...)...)
	require.NoError(t, err)

	var outcome reconcile.Outcome
	require.NoError(t, json.Unmarshal([]byte(out), &outcome))
	assert.True(t, outcome.MetaCreated)
	assert.Equal(t, 1, outcome.Created)

	out, err = execute(t, "", append([]string{"view", "--format", "json"}, common...)...)
	require.NoError(t, err)

	var view condense.View
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	require.Len(t, view.Issues, 1)
	assert.Equal(t, "Harbour", view.Issues[0].SiteName)

	out, err = execute(t, "", append([]string{"view"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "ISSUES (1)")
	assert.Contains(t, out, "Harbour")

	// stdin input, resolves the open issue
	out, err = execute(t, clearSnapshot, append([]string{"apply", "-"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "resolved 1")

	out, err = execute(t, "", append([]string{"events", "--format", "json"}, common...)...)
	require.NoError(t, err)

	var events []models.Event
	require.NoError(t, json.Unmarshal([]byte(out), &events))
	require.Len(t, events, 2)
	assert.Equal(t, models.CategoryResolved, events[0].Category)
	assert.Equal(t, models.CategoryCritical, events[1].Category)

	since := events[1].Datetime.UnixMilli()

	out, err = execute(t, "", append([]string{"events", "--since", itoa(since)}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "no more events")

	out, err = execute(t, "", append([]string{"view", "--raw"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "\"_meta\"")
}

func TestApplyRejectsInvalidSnapshot(t *testing.T) {
	dir := t.TempDir()
	bad := writeSnapshot(t, dir, "bad.json", `{"issues":[]}`)

	_, err := execute(t, "", "apply", bad, "--db", filepath.Join(dir, "state.db"), "--home-site", "99")
	require.Error(t, err)
}

func TestPush(t *testing.T) {
	dir := t.TempDir()

	cfg := &config.CoreConfig{DBPath: filepath.Join(dir, "state.db"), HomeSiteCode: 99, APIToken: "x"}
	cfg.ApplyDefaults()

	srv, err := core.NewServer(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, srv.Connect(context.Background()))

	gs := grpc.NewServer("127.0.0.1:0")
	require.NoError(t, srv.RegisterGRPC(gs))

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() { _ = gs.Serve(lis) }()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		gs.Stop(ctx)
		_ = srv.Stop(ctx)
	})

	down := writeSnapshot(t, dir, "down.json", downSnapshot)

	out, err := execute(t, "", "push", down, "--addr", lis.Addr().String(), "--format", "json")
	require.NoError(t, err)

	var outcome map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &outcome))
	assert.InDelta(t, 1, outcome["created"], 0)

	out, err = execute(t, "", "push", down, "--addr", lis.Addr().String())
	require.NoError(t, err)
	assert.Contains(t, out, "unchanged 1")
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
