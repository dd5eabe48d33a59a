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

//go:build !linux

package servo

import (
	"context"
	"time"
)

// DeadlineScheduler sleeps until absolute deadlines, so the loop period does
// not stretch by the time spent on the bus
type DeadlineScheduler struct {
	start    time.Time
	deadline time.Duration
}

// NewDeadlineScheduler returns a DeadlineScheduler
func NewDeadlineScheduler() *DeadlineScheduler {
	return &DeadlineScheduler{start: time.Now()}
}

// Now returns current time
func (s *DeadlineScheduler) Now() time.Time {
	return time.Now()
}

// Sleep waits until the previous deadline plus d
func (s *DeadlineScheduler) Sleep(ctx context.Context, d time.Duration) error {
	now := time.Since(s.start)
	s.deadline = nextDeadline(s.deadline, now, d)
	return SleepScheduler{}.Sleep(ctx, s.deadline-now)
}
