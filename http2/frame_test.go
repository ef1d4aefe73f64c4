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

package http2

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameHeaderRoundTrip(t *testing.T) {
	h := FrameHeader{Length: 42, Type: FrameHeaders, Flags: FlagEndHeaders | FlagEndStream, StreamID: 7}
	buf := make([]byte, 9)
	WriteFrameHeader(buf, h)

	got, err := ReadFrameHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestReadFrameHeaderMasksReservedBit(t *testing.T) {
	buf := make([]byte, 9)
	WriteFrameHeader(buf, FrameHeader{StreamID: 5})
	buf[5] |= 0x80 // 设置保留位

	got, err := ReadFrameHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), got.StreamID)
}

func TestValidateStreamIDRejectsConnectionFrameOnStream(t *testing.T) {
	assert.Error(t, ValidateStreamID(FrameSettings, 1))
	assert.NoError(t, ValidateStreamID(FrameSettings, 0))
	assert.Error(t, ValidateStreamID(FrameHeaders, 0))
	assert.NoError(t, ValidateStreamID(FrameWindowUpdate, 0))
}

func TestMarshalFrameSetsLength(t *testing.T) {
	frame := MarshalFrame(FrameHeader{Type: FrameData, StreamID: 3}, []byte("hello"))
	h, err := ReadFrameHeader(frame)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), h.Length)
	assert.Equal(t, "hello", string(frame[9:]))
}

func TestSettingsApplyRejectsOutOfRangeValues(t *testing.T) {
	s := DefaultSettings()
	err := s.Apply([]SettingPair{{ID: SettingEnablePush, Value: 2}})
	assert.Error(t, err)

	err = s.Apply([]SettingPair{{ID: SettingMaxFrameSize, Value: 10}})
	assert.Error(t, err)

	err = s.Apply([]SettingPair{{ID: SettingInitialWindowSize, Value: MaxWindowSize + 1}})
	assert.Error(t, err)
}

func TestSettingsApplyIgnoresUnknownIDs(t *testing.T) {
	s := DefaultSettings()
	err := s.Apply([]SettingPair{{ID: SettingID(0xff), Value: 1}})
	assert.NoError(t, err)
}

func TestSettingsPayloadRoundTrip(t *testing.T) {
	pairs := []SettingPair{
		{ID: SettingMaxFrameSize, Value: 32768},
		{ID: SettingInitialWindowSize, Value: 1048576},
	}
	payload := MarshalSettingsPayload(pairs)
	got, err := ParseSettingsPayload(payload)
	require.NoError(t, err)
	assert.Equal(t, pairs, got)
}

func TestFlowWindowConsumeRejectsOverdraft(t *testing.T) {
	w := NewFlowWindow(10)
	require.NoError(t, w.Consume(6))
	assert.Equal(t, int64(4), w.Available())
	assert.Error(t, w.Consume(5))
}

func TestFlowWindowIncreaseRejectsOverflow(t *testing.T) {
	w := NewFlowWindow(MaxWindowSize)
	assert.Error(t, w.Increase(1))
}

func TestFlowWindowInitialSizeChangeShiftsAvailable(t *testing.T) {
	w := NewFlowWindow(1000)
	require.NoError(t, w.ApplyInitialWindowSizeChange(1000, 500))
	assert.Equal(t, int64(500), w.Available())
}

func TestStreamHeadersWithoutBodyClosesRequestImmediately(t *testing.T) {
	st := NewStream(1, DefaultInitialWindowSize, DefaultInitialWindowSize)
	require.NoError(t, st.OnHeaders([]byte("block"), true, true))
	assert.Equal(t, StreamReady, st.Snapshot())

	buf := make([]byte, 1)
	n, err := st.body.Read(buf)
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestStreamHeadersThenDataThenEndStream(t *testing.T) {
	st := NewStream(3, DefaultInitialWindowSize, DefaultInitialWindowSize)
	require.NoError(t, st.OnHeaders([]byte("block"), true, false))
	assert.Equal(t, StreamPayload, st.Snapshot())

	require.NoError(t, st.OnData(5, false))
	assert.Equal(t, StreamPayload, st.Snapshot())

	require.NoError(t, st.OnData(3, true))
	assert.Equal(t, StreamReady, st.Snapshot())
}

func TestStreamContinuationAcrossMultipleFrames(t *testing.T) {
	st := NewStream(5, DefaultInitialWindowSize, DefaultInitialWindowSize)
	require.NoError(t, st.OnHeaders([]byte("part1"), false, true))
	assert.Equal(t, StreamContinuation, st.Snapshot())

	require.NoError(t, st.OnContinuation([]byte("part2"), true))
	assert.Equal(t, StreamReady, st.Snapshot())
	assert.Equal(t, "part1part2", string(st.HeaderBlock()))
}

func TestStreamRejectsDataBeforeHeaders(t *testing.T) {
	st := NewStream(7, DefaultInitialWindowSize, DefaultInitialWindowSize)
	assert.Error(t, st.OnData(1, false))
}

func TestSchedulerOrdersControlFramesFirst(t *testing.T) {
	sched := NewScheduler()
	sched.EnqueueStream(1, 15, []byte("stream-frame"))
	sched.EnqueueControl([]byte("control-frame"))

	payload, _, ok := sched.Pop()
	require.True(t, ok)
	assert.Equal(t, "control-frame", string(payload))
}

func TestSchedulerPrefersHigherWeightStream(t *testing.T) {
	sched := NewScheduler()
	sched.EnqueueStream(1, 0, []byte("low-weight")) // weight 1
	sched.EnqueueStream(3, 255, []byte("high-weight")) // weight 256

	payload, streamID, ok := sched.Pop()
	require.True(t, ok)
	assert.Equal(t, uint32(3), streamID)
	assert.Equal(t, "high-weight", string(payload))
}

func TestSchedulerIsFIFOWithinSamePriority(t *testing.T) {
	sched := NewScheduler()
	sched.EnqueueStream(1, 15, []byte("first"))
	sched.EnqueueStream(1, 15, []byte("second"))

	p1, _, _ := sched.Pop()
	p2, _, _ := sched.Pop()
	assert.Equal(t, "first", string(p1))
	assert.Equal(t, "second", string(p2))
}
