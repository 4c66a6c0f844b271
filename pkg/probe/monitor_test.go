/*
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

package probe

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestMonitorTicksUntilContextDone(t *testing.T) {
	m := NewMonitor(MonitorConfig{Interval: 10 * time.Millisecond, CheckOnStart: true}, logrus.NewEntry(logrus.New()))

	var calls atomic.Int32

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)

		m.StartMonitoring(ctx, func(context.Context) error {
			if calls.Add(1) == 2 {
				return errors.New("transient")
			}

			return nil
		})
	}()

	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)

	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop on context cancel")
	}
}

func TestMonitorStopIsIdempotent(t *testing.T) {
	m := NewMonitor(MonitorConfig{Interval: time.Hour}, logrus.NewEntry(logrus.New()))

	done := make(chan struct{})

	go func() {
		defer close(done)
		m.StartMonitoring(context.Background(), func(context.Context) error { return nil })
	}()

	m.Stop(context.Background())
	m.Stop(context.Background())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop")
	}
}
