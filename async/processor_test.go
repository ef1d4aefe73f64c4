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

package async

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProcessorRunsRoutineToCompletion(t *testing.T) {
	var steps int
	p := NewProcessor(DefaultOptions())

	var body Func
	body = func() Action {
		steps++
		if steps < 3 {
			return Repeat(body)
		}
		return Finish()
	}

	p.Schedule(NewRoutine("counter", body))
	p.Run()

	assert.Equal(t, 3, steps)
}

func TestProcessorPromotesWaitingRoutineToSlowQueue(t *testing.T) {
	opts := DefaultOptions()
	opts.SlowQueuePromotionTicks = 2
	p := NewProcessor(opts)

	gate := 0
	var body Func
	body = func() Action {
		gate++
		if gate < 5 {
			return WaitFor(func() bool { return false }, body)
		}
		return Finish()
	}

	p.Schedule(NewRoutine("waiter", body))
	p.Run()

	assert.Equal(t, 5, gate)
}

func TestProcessorInvokesErrorHandler(t *testing.T) {
	p := NewProcessor(DefaultOptions())
	var handled error

	entry := func() Action {
		return Error(errors.New("boom")).WithErrorHandler(func(err error) Action {
			handled = err
			return Finish()
		})
	}

	p.Schedule(NewRoutine("failing", entry))
	p.Run()

	assert.EqualError(t, handled, "boom")
}
