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
	"fmt"
	"time"
)

// Scheduler provides time to the loop. Every wait in the servo goes through it.
type Scheduler interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// SleepScheduler sleeps for a fixed period after each iteration, so the
// loop period is the interval plus the time spent on the bus
type SleepScheduler struct{}

// Now returns current time
func (SleepScheduler) Now() time.Time {
	return time.Now()
}

// Sleep waits for d or until ctx is done
func (SleepScheduler) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// NewScheduler returns scheduler by name
func NewScheduler(kind string) (Scheduler, error) {
	switch kind {
	case SchedulerSleep, "":
		return SleepScheduler{}, nil
	case SchedulerDeadline:
		return NewDeadlineScheduler(), nil
	}
	return nil, fmt.Errorf("unknown scheduler %q", kind)
}

// nextDeadline advances prev by d. If the loop fell behind by more than a full
// period the schedule is restarted from now instead of bursting to catch up.
func nextDeadline(prev, now, d time.Duration) time.Duration {
	next := prev + d
	if prev == 0 || next < now-d {
		return now + d
	}
	return next
}
