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

import (
	"io"
	"log"

	"github.com/hashicorp/go-hclog"
	"github.com/sirupsen/logrus"
)

// hcAdapter lets a grant scheduler implementation (spec section 6,
// grant.Scheduler.LogTT) log through hclog while this core's own logging
// stays on logrus; log_tt is a diagnostic tap, not a hard dependency.
type hcAdapter struct {
	l Logger
}

// NewHCLog wraps l as an hclog.Logger for external collaborators that
// expect that interface.
func NewHCLog(l Logger) hclog.Logger {
	return &hcAdapter{l: l}
}

func (h *hcAdapter) Log(level hclog.Level, msg string, args ...interface{}) {
	switch level {
	case hclog.Trace, hclog.Debug:
		h.Debug(msg, args...)
	case hclog.Info:
		h.Info(msg, args...)
	case hclog.Warn:
		h.Warn(msg, args...)
	case hclog.Error:
		h.Error(msg, args...)
	}
}

func argsToFields(args []interface{}) Fields {
	f := NewFields()
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		f = f.Add(key, args[i+1])
	}
	return f
}

func (h *hcAdapter) Trace(msg string, args ...interface{}) { h.l.Debug(msg, argsToFields(args)) }
func (h *hcAdapter) Debug(msg string, args ...interface{}) { h.l.Debug(msg, argsToFields(args)) }
func (h *hcAdapter) Info(msg string, args ...interface{})  { h.l.Info(msg, argsToFields(args)) }
func (h *hcAdapter) Warn(msg string, args ...interface{})  { h.l.Warning(msg, argsToFields(args)) }
func (h *hcAdapter) Error(msg string, args ...interface{}) { h.l.Error(msg, argsToFields(args)) }

func (h *hcAdapter) IsTrace() bool { return true }
func (h *hcAdapter) IsDebug() bool { return true }
func (h *hcAdapter) IsInfo() bool  { return true }
func (h *hcAdapter) IsWarn() bool  { return true }
func (h *hcAdapter) IsError() bool { return true }

func (h *hcAdapter) ImpliedArgs() []interface{} { return nil }
func (h *hcAdapter) With(args ...interface{}) hclog.Logger {
	return &hcAdapter{l: New(logrus.StandardLogger(), argsToFields(args))}
}
func (h *hcAdapter) Name() string                             { return "homa" }
func (h *hcAdapter) Named(name string) hclog.Logger           { return h }
func (h *hcAdapter) ResetNamed(name string) hclog.Logger      { return h }
func (h *hcAdapter) SetLevel(level hclog.Level)               {}
func (h *hcAdapter) GetLevel() hclog.Level                     { return hclog.Info }
func (h *hcAdapter) StandardLogger(opts *hclog.StandardLoggerOpts) *log.Logger {
	return log.New(&hclogWriter{h: h}, "", 0)
}
func (h *hcAdapter) StandardWriter(opts *hclog.StandardLoggerOpts) io.Writer {
	return &hclogWriter{h: h}
}

type hclogWriter struct{ h *hcAdapter }

func (w *hclogWriter) Write(p []byte) (int, error) {
	w.h.Info(string(p))
	return len(p), nil
}
