// Copyright The gnumach-go Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import "golang.org/x/time/rate"

// RateLimited wraps a Logger so that Warningf calls beyond the configured
// rate are silently dropped. Used to guard against a thrashing workload
// that retries an exhausted selector+order combination in a tight loop and
// would otherwise flood the log with identical "no memory, falling back"
// messages.
type RateLimited struct {
	logger  Logger
	limiter *rate.Limiter
}

// NewRateLimited wraps logger with a token-bucket limiter allowing r events
// per second, up to burst at once.
func NewRateLimited(logger Logger, r rate.Limit, burst int) *RateLimited {
	return &RateLimited{logger: logger, limiter: rate.NewLimiter(r, burst)}
}

func (rl *RateLimited) Debugf(format string, v ...any) { rl.logger.Debugf(format, v...) }
func (rl *RateLimited) Infof(format string, v ...any)  { rl.logger.Infof(format, v...) }

func (rl *RateLimited) Warningf(format string, v ...any) {
	if rl.limiter.Allow() {
		rl.logger.Warningf(format, v...)
	}
}
