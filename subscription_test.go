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

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubscription_AnchoredPatternMatch(t *testing.T) {
	sub, err := newSubscription("SENSOR_.*", nil)
	assert.NoError(t, err)
	assert.True(t, sub.matches("SENSOR_1"))
	assert.True(t, sub.matches("SENSOR_2"))
	assert.False(t, sub.matches("OTHER"))
	assert.False(t, sub.matches("xSENSOR_1"), "pattern must be anchored at the start")
}

func TestSubscription_InvalidPatternFails(t *testing.T) {
	_, err := newSubscription("(unclosed", nil)
	assert.Error(t, err)
}
