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

package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"

	"github.com/sdcio/shell-server/pkg/types"
)

const (
	defaultInitialInterval = 500 * time.Millisecond
	defaultMaxInterval     = 10 * time.Second
)

// Policy bounds the attempts made for one call. MaxAttempts counts the first
// call, so a value of 1 (or less) disables retrying.
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Once is the policy the drivers run with unless configured otherwise.
var Once = Policy{MaxAttempts: 1}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	if p.MaxAttempts <= 1 {
		return backoff.WithContext(&backoff.StopBackOff{}, ctx)
	}
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.InitialInterval
	if eb.InitialInterval <= 0 {
		eb.InitialInterval = defaultInitialInterval
	}
	eb.MaxInterval = p.MaxInterval
	if eb.MaxInterval <= 0 {
		eb.MaxInterval = defaultMaxInterval
	}
	// attempts bound the retry, not the elapsed time
	eb.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(p.MaxAttempts-1)), ctx)
}

// Do runs op until it succeeds, the policy is exhausted or ctx is done.
// Credential and command errors are never retried. The error of the last
// attempt is returned.
func Do(ctx context.Context, p Policy, name string, op func(ctx context.Context) error) error {
	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		err := op(ctx)
		if err != nil && types.IsPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}, p.backOff(ctx), func(err error, next time.Duration) {
		log.Debugf("%s: attempt %d failed: %v, retrying in %s", name, attempt, err, next)
	})
}

// DoValue is Do for calls that return a value.
func DoValue[T any](ctx context.Context, p Policy, name string, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := Do(ctx, p, name, func(ctx context.Context) error {
		var err error
		result, err = op(ctx)
		return err
	})
	return result, err
}
