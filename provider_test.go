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

func TestParseProvider_Defaults(t *testing.T) {
	p, err := ParseProvider(nil, "udpm://")
	assert.NoError(t, err)
	assert.Equal(t, defaultMulticastAddr, p.Address.String())
	assert.Equal(t, defaultMulticastPort, p.Port)
	assert.Equal(t, defaultTTL, p.TTL)
}

func TestParseProvider_AddressPortAndTTL(t *testing.T) {
	p, err := ParseProvider(nil, "udpm://239.255.76.99:7670?ttl=2")
	assert.NoError(t, err)
	assert.Equal(t, "239.255.76.99", p.Address.String())
	assert.Equal(t, 7670, p.Port)
	assert.Equal(t, 2, p.TTL)
}

func TestParseProvider_WrongSchemeRejected(t *testing.T) {
	_, err := ParseProvider(nil, "http://239.255.76.67:7667")
	var invalid *InvalidProviderError
	assert.ErrorAs(t, err, &invalid)
}

func TestParseProvider_MalformedAddressRejected(t *testing.T) {
	_, err := ParseProvider(nil, "udpm://not-an-ip:7667")
	var invalid *InvalidProviderError
	assert.ErrorAs(t, err, &invalid)
}
