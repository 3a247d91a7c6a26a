// Copyright 2024 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package instrument

import (
	"bytes"
	"sync"
)

// Fake is an in-memory Channel used by dispatcher tests. Bytes queued with
// Feed become readable through Read; bytes written through Write accumulate
// in Written for assertions.
type Fake struct {
	mu          sync.Mutex
	pending     bytes.Buffer
	nonblocking bool

	Written        bytes.Buffer
	ScriptsWritten []ScriptWrite
	FlashCalls     []FlashCall
	ResetCalls     int
	InfoResult     Info
	InfoErr        error
}

// ScriptWrite records one WriteScript invocation.
type ScriptWrite struct {
	Name string
	Body []byte
	Save bool
	Run  bool
}

// FlashCall records one FlashFirmware invocation.
type FlashCall struct {
	Image []byte
	Slot  *uint16
}

// Feed appends bytes to the fake instrument's outbound stream.
func (f *Fake) Feed(b []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending.Write(b)
}

func (f *Fake) Read(buf []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pending.Len() == 0 {
		if f.nonblocking {
			return 0, ErrWouldBlock
		}
		return 0, nil
	}
	return f.pending.Read(buf)
}

func (f *Fake) Write(b []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Written.Write(b)
}

func (f *Fake) SetNonblocking(nonblocking bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nonblocking = nonblocking
	return nil
}

func (f *Fake) WriteScript(name string, body []byte, save, run bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(body))
	copy(cp, body)
	f.ScriptsWritten = append(f.ScriptsWritten, ScriptWrite{Name: name, Body: cp, Save: save, Run: run})
	return nil
}

func (f *Fake) FlashFirmware(image []byte, slot *uint16) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(image))
	copy(cp, image)
	f.FlashCalls = append(f.FlashCalls, FlashCall{Image: cp, Slot: slot})
	return nil
}

func (f *Fake) Info(slot *int) (Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.InfoResult, f.InfoErr
}

func (f *Fake) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ResetCalls++
	return nil
}

func (f *Fake) CheckLogin() (Login, error)     { return LoggedOut, nil }
func (f *Fake) Login() error                   { return nil }
func (f *Fake) GetLanguage() (Language, error) { return LanguageTSP, nil }
func (f *Fake) ChangeLanguage(Language) error  { return nil }

var _ Channel = (*Fake)(nil)
