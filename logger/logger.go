/***********************************************************************************************************************
 *
 *   MIT License
 *
 *   Copyright (c) 2021 Nicolas JUHEL
 *
 *   Permission is hereby granted, free of charge, to any person obtaining a copy
 *   of this software and associated documentation files (the "Software"), to deal
 *   in the Software without restriction, including without limitation the rights
 *   to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 *   copies of the Software, and to permit persons to whom the Software is
 *   furnished to do so, subject to the following conditions:
 *
 *   The above copyright notice and this permission notice shall be included in all
 *   copies or substantial portions of the Software.
 *
 *   THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 *   IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 *   FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 *   AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 *   LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 *   OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 *   SOFTWARE.
 *
 *
 **********************************************************************************************************************/

package logger

import "github.com/sirupsen/logrus"

// Logger is the structured logging surface the core calls into. Diagnostic
// logging and packet pretty-printers are themselves external collaborators
// (spec section 1); this interface is the seam they plug into.
type Logger interface {
	Debug(msg string, fields Fields)
	Info(msg string, fields Fields)
	Warning(msg string, fields Fields)
	Error(msg string, fields Fields)
}

type logrusLogger struct {
	base *logrus.Logger
	f    Fields
}

// New wraps a *logrus.Logger with a fixed base Fields set (e.g. the owning
// socket's local port) that every call site's fields are merged on top of.
func New(base *logrus.Logger, f Fields) Logger {
	if base == nil {
		base = logrus.StandardLogger()
	}
	return &logrusLogger{base: base, f: f}
}

// with returns a logrus.Entry for a single call, carrying l's base fields
// with extra merged on top, without mutating either (mirrors Fields'
// copy-on-write semantics).
func (l *logrusLogger) with(extra Fields) *logrus.Entry {
	return l.base.WithFields(l.f.Merge(extra).Logrus())
}

func (l *logrusLogger) Debug(msg string, fields Fields)   { l.with(fields).Debug(msg) }
func (l *logrusLogger) Info(msg string, fields Fields)    { l.with(fields).Info(msg) }
func (l *logrusLogger) Warning(msg string, fields Fields) { l.with(fields).Warning(msg) }
func (l *logrusLogger) Error(msg string, fields Fields)   { l.with(fields).Error(msg) }
