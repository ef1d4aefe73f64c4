// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oatpp/oatpp-sub002/internal/pubsub"
	"github.com/oatpp/oatpp-sub002/router"
	"github.com/oatpp/oatpp-sub002/web"
)

func newTestAdmin(t *testing.T) *Admin {
	t.Helper()
	rt := router.New[web.Handler]()
	_, err := rt.Register("GET", "/hello", func(req *web.Request) (*web.Response, error) {
		return web.OK(web.NewBytesBody("text/plain", nil)), nil
	})
	require.NoError(t, err)
	return NewAdmin(nil, rt, pubsub.New())
}

func TestAdminRouteLoggerChangesLevel(t *testing.T) {
	a := newTestAdmin(t)

	req := httptest.NewRequest("POST", "/-/logger?level=debug", nil)
	rec := httptest.NewRecorder()
	a.routeLogger(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "success")
}

func TestAdminRouteRoutesListsRegisteredEndpoints(t *testing.T) {
	a := newTestAdmin(t)

	req := httptest.NewRequest("GET", "/-/routes", nil)
	rec := httptest.NewRecorder()
	a.routeRoutes(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "/hello")
	assert.Contains(t, rec.Body.String(), `"method":"GET"`)
}

func TestAdminRouteWatchStreamsPublishedEvents(t *testing.T) {
	a := newTestAdmin(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		req := httptest.NewRequest("GET", "/watch?max_message=1&timeout=2s", nil)
		rec := httptest.NewRecorder()
		a.routeWatch(rec, req)
		assert.Contains(t, rec.Body.String(), "ping")
	}()

	deadline := time.Now().Add(2 * time.Second)
	for a.events.Num() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	a.PublishEvent([]byte("ping"))
	<-done
}

func TestAdminPublishEventIsNoopWithoutEventBus(t *testing.T) {
	a := &Admin{}
	assert.NotPanics(t, func() { a.PublishEvent([]byte("x")) })
}
