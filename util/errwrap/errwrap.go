// Mgmt
// Copyright (C) 2013-2023+ James Shubin and the project contributors
// Written by James Shubin <james@shubin.ca> and the project contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package errwrap contains small error composition helpers used throughout
// dflow. It exists so that callers never have to check for nil before
// wrapping or appending an error.
package errwrap

import (
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// Wrapf adds context onto an existing error. If err is nil it returns nil,
// so it is safe to call unconditionally.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// Append merges a new error onto an accumulator. Either argument may be nil.
// This is the idiom the state machine's Alter validation uses to report
// every dangling endpoint at once.
func Append(acc, err error) error {
	if acc == nil {
		return err
	}
	if err == nil {
		return acc
	}
	return multierror.Append(acc, err)
}

// String renders err as a string, returning "" for nil instead of panicking.
func String(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
