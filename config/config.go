/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package config holds the tunables a Homa instance is built from: the
// protocol constants that, on the real stack, live as sysctl knobs. This
// package only models the values and their validation; binding them to a
// CLI surface is explicitly out of scope.
package config

import (
	"fmt"
	"sync/atomic"

	libval "github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	liberr "github.com/sabouaram/homa/errors"
)

// Config is the full set of tunables governing one Homa instance.
type Config struct {
	// UnscheduledBytes is the number of bytes a sender may transmit before
	// waiting for a grant.
	UnscheduledBytes int `mapstructure:"unscheduled-bytes" json:"unscheduled-bytes" validate:"gt=0"`

	// GrantWindow is the maximum number of bytes a single grant authorizes.
	GrantWindow int `mapstructure:"grant-window" json:"grant-window" validate:"gt=0"`

	// LinkMbps is the modeled link rate, used to convert byte counts into
	// clock.Cycles for grant pacing.
	LinkMbps int `mapstructure:"link-mbps" json:"link-mbps" validate:"gt=0"`

	// PollUsecs bounds how long a receiver polls before blocking.
	PollUsecs int `mapstructure:"poll-usecs" json:"poll-usecs" validate:"gte=0"`

	// NumPriorities is the number of scheduled-priority levels the grant
	// scheduler may assign.
	NumPriorities int `mapstructure:"num-priorities" json:"num-priorities" validate:"gt=0,lte=8"`

	// MaxOvercommit bounds how many RPCs may be granted concurrently above
	// the number of priority levels.
	MaxOvercommit int `mapstructure:"max-overcommit" json:"max-overcommit" validate:"gt=0"`

	// MaxIncomingBytes bounds total unacked incoming data system-wide.
	MaxIncomingBytes int `mapstructure:"max-incoming-bytes" json:"max-incoming-bytes" validate:"gt=0"`

	// ReapBatchSize is the record batch a caller passes to homa.Reap: the
	// number of dead RPC records considered per socket-lock acquisition.
	// Reap does not read this field itself.
	ReapBatchSize int `mapstructure:"reap-batch-size" json:"reap-batch-size" validate:"gt=0"`

	// DeadBuffersLimit is the dead-list length tunable. No code in this
	// module reads it; NewClient/NewServer do not throttle on it.
	DeadBuffersLimit int `mapstructure:"dead-buffers-limit" json:"dead-buffers-limit" validate:"gt=0"`

	// BpageLeaseUsecs is how long a core may hold an allocated bpage idle
	// before another core's steal attempt is allowed to reclaim it.
	BpageLeaseUsecs int `mapstructure:"bpage-lease-usecs" json:"bpage-lease-usecs" validate:"gt=0"`

	// version is bumped every time a priority-affecting field changes, so
	// collaborators holding a stale snapshot can detect it cheaply.
	version atomic.Uint64
}

// Default returns the tunables used by the reference stack (spec section
// 6): 10000 unscheduled bytes, a 10000 byte grant window, a 25 Gbps link,
// 50us polling, 8 priority levels, overcommit of 8, a 400000 byte incoming
// cap, reap batches of 10, a 5000 entry dead-buffer limit and a 10ms bpage
// lease.
func Default() *Config {
	return &Config{
		UnscheduledBytes: 10000,
		GrantWindow:      10000,
		LinkMbps:         25000,
		PollUsecs:        50,
		NumPriorities:    8,
		MaxOvercommit:    8,
		MaxIncomingBytes: 400000,
		ReapBatchSize:    10,
		DeadBuffersLimit: 5000,
		BpageLeaseUsecs:  10000,
	}
}

// Load reads a Config from v, starting from Default so unset keys keep
// their reference values, then validates the result.
func Load(v *viper.Viper) (*Config, liberr.Error) {
	c := Default()

	if v != nil {
		if err := v.Unmarshal(c); err != nil {
			return nil, liberr.InvalidArgument.Error(err)
		}
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

// Validate reports every struct-tag constraint Config violates, or nil.
func (c *Config) Validate() liberr.Error {
	e := liberr.InvalidArgument.Error()

	if err := libval.New().Struct(c); err != nil {
		if _, ok := err.(*libval.InvalidValidationError); ok {
			e.Add(err)
		} else {
			for _, fe := range err.(libval.ValidationErrors) {
				e.Add(fmt.Errorf("config field %q fails constraint %q", fe.Namespace(), fe.ActualTag()))
			}
		}
	}

	if !e.HasParent() {
		return nil
	}
	return e
}

// Version returns the current change counter.
func (c *Config) Version() uint64 {
	return c.version.Load()
}

// bumpVersion increments the change counter; called after any setter that
// touches a priority-affecting field.
func (c *Config) bumpVersion() {
	c.version.Add(1)
}

// SetNumPriorities updates the priority level count and bumps Version.
func (c *Config) SetNumPriorities(n int) {
	c.NumPriorities = n
	c.bumpVersion()
}

// SetMaxOvercommit updates the overcommit bound and bumps Version.
func (c *Config) SetMaxOvercommit(n int) {
	c.MaxOvercommit = n
	c.bumpVersion()
}
