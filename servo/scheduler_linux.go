/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package servo

import (
	"context"
	"time"

	"golang.org/x/sys/unix"
)

// maxSleepChunk bounds a single nanosleep so cancellation is noticed
const maxSleepChunk = 100 * time.Millisecond

// DeadlineScheduler sleeps until absolute CLOCK_MONOTONIC deadlines, so the
// loop period does not stretch by the time spent on the bus
type DeadlineScheduler struct {
	deadline time.Duration
}

// NewDeadlineScheduler returns a DeadlineScheduler
func NewDeadlineScheduler() *DeadlineScheduler {
	return &DeadlineScheduler{}
}

func monotonic() (time.Duration, error) {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return 0, err
	}
	return time.Duration(ts.Nano()), nil
}

// Now returns current time
func (s *DeadlineScheduler) Now() time.Time {
	return time.Now()
}

// Sleep waits until the previous deadline plus d
func (s *DeadlineScheduler) Sleep(ctx context.Context, d time.Duration) error {
	now, err := monotonic()
	if err != nil {
		return err
	}
	s.deadline = nextDeadline(s.deadline, now, d)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		now, err = monotonic()
		if err != nil {
			return err
		}
		if now >= s.deadline {
			return nil
		}
		target := s.deadline
		if target-now > maxSleepChunk {
			target = now + maxSleepChunk
		}
		ts := unix.NsecToTimespec(int64(target))
		if err := unix.ClockNanosleep(unix.CLOCK_MONOTONIC, unix.TIMER_ABSTIME, &ts, nil); err != nil && err != unix.EINTR {
			return err
		}
	}
}
