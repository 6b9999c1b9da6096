// Copyright 2024 Nokia
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package lock

import "sync"

// Guard represents one held lock. Release may be called any number of times,
// only the first call gives the lock back.
type Guard struct {
	once    sync.Once
	release func()
}

func newGuard(release func()) *Guard {
	return &Guard{release: release}
}

// Release gives the lock back.
func (g *Guard) Release() {
	if g == nil {
		return
	}
	g.once.Do(g.release)
}
