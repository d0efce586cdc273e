// Copyright 2022 gorse Project Authors
//
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

package lcm

import "regexp"

// Handler receives a delivered (channel, payload) pair. Spec.md §4.6:
// "handler exceptions are captured and reported but do not interrupt
// delivery to other subscribers" — a panicking Handler is recovered by
// the dispatch loop, not by Handler implementations themselves.
type Handler func(channel string, payload []byte)

// Subscription is the handle returned by Instance.Subscribe; pass it to
// Unsubscribe to remove it by identity.
type Subscription struct {
	pattern string
	re      *regexp.Regexp
	handler Handler
}

// matches reports whether channel matches this subscription's pattern,
// anchored at both ends per spec.md §4.7.
func (s *Subscription) matches(channel string) bool {
	return s.re.MatchString(channel)
}

// newSubscription compiles pattern as a fully-anchored regular
// expression. Multiple subscriptions on overlapping patterns are
// independent entries in the instance's subscription list.
func newSubscription(pattern string, handler Handler) (*Subscription, error) {
	re, err := regexp.Compile("^" + pattern + "$")
	if err != nil {
		return nil, err
	}
	return &Subscription{pattern: pattern, re: re, handler: handler}, nil
}
