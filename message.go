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

// Message is the capability every generated struct implements: a
// statically-known fingerprint identifying its wire layout, and an
// encode routine that writes that fingerprint followed by its members.
// Decoding is a factory function per generated type (Decode<Name>), not
// a method, since it must allocate and return a new value of that type.
type Message interface {
	Fingerprint() int64
	Encode(buf *Buffer) error
}
