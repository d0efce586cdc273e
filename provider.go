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
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/op/go-logging"
)

const (
	defaultMulticastAddr = "239.255.76.67"
	defaultMulticastPort = 7667
	defaultTTL           = 0
)

// Provider is a parsed `udpm://` transport provider URL (spec.md §6):
// multicast address, port, and TTL, with the scheme-and-default-filling
// rules applied.
type Provider struct {
	Address net.IP
	Port    int
	TTL     int
}

// ParseProvider parses a provider URL of the form
// `udpm://[address[:port]]?ttl=N`, filling in the documented defaults
// for any part that's omitted. Any scheme other than `udpm` is rejected.
func ParseProvider(log *logging.Logger, rawURL string) (*Provider, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &InvalidProviderError{URL: rawURL, Err: err}
	}
	if u.Scheme != "udpm" {
		return nil, &InvalidProviderError{URL: rawURL, Err: fmt.Errorf("scheme must be udpm, got %q", u.Scheme)}
	}

	p := &Provider{
		Address: net.ParseIP(defaultMulticastAddr),
		Port:    defaultMulticastPort,
		TTL:     defaultTTL,
	}

	host := u.Hostname()
	if host != "" {
		ip := net.ParseIP(host)
		if ip == nil {
			return nil, &InvalidProviderError{URL: rawURL, Err: fmt.Errorf("invalid multicast address %q", host)}
		}
		p.Address = ip
	}
	if portStr := u.Port(); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, &InvalidProviderError{URL: rawURL, Err: fmt.Errorf("invalid port %q: %w", portStr, err)}
		}
		p.Port = port
	}
	if ttlStr := u.Query().Get("ttl"); ttlStr != "" {
		ttl, err := strconv.Atoi(ttlStr)
		if err != nil {
			return nil, &InvalidProviderError{URL: rawURL, Err: fmt.Errorf("invalid ttl %q: %w", ttlStr, err)}
		}
		p.TTL = ttl
	}

	if p.TTL > 1 && log != nil {
		log.Warningf("lcm: provider %q sets ttl=%d; packets will leave the local network", rawURL, p.TTL)
	}

	return p, nil
}

// Addr formats the provider's multicast address and port as a UDP
// address string suitable for net.ResolveUDPAddr.
func (p *Provider) Addr() string {
	return net.JoinHostPort(p.Address.String(), strconv.Itoa(p.Port))
}
