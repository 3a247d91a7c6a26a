// Copyright 2024 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package tcp is a minimal TCP transport for an instrument.Channel. It is
// the one concrete external collaborator the core's transport interface
// needs to become runnable from cmd/kic; instrument discovery, VISA/USBTMC
// transports, and firmware-flash protocol details are out of scope (see
// SPEC_FULL.md §1).
package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/maruel/kic/internal/instrument"
)

// Channel is a net.Conn-backed instrument.Channel. Non-blocking reads are
// emulated with a short read deadline, since Go network connections have no
// native non-blocking mode.
type Channel struct {
	conn        net.Conn
	nonblocking bool
}

// Dial connects to addr ("host:port") and returns a ready-to-use Channel.
func Dial(ctx context.Context, addr string) (*Channel, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Channel{conn: conn}, nil
}

// Close closes the underlying connection.
func (c *Channel) Close() error { return c.conn.Close() }

func (c *Channel) Read(buf []byte) (int, error) {
	if c.nonblocking {
		_ = c.conn.SetReadDeadline(time.Now().Add(5 * time.Millisecond))
		n, err := c.conn.Read(buf)
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			return n, instrument.ErrWouldBlock
		}
		return n, err
	}
	_ = c.conn.SetReadDeadline(time.Time{})
	return c.conn.Read(buf)
}

func (c *Channel) Write(b []byte) (int, error) { return c.conn.Write(b) }

func (c *Channel) SetNonblocking(nonblocking bool) error {
	c.nonblocking = nonblocking
	return nil
}

func (c *Channel) WriteScript(name string, body []byte, save, run bool) error {
	if _, err := fmt.Fprintf(c.conn, "loadscript %s\n%s\nendscript\n", name, body); err != nil {
		return err
	}
	if run {
		_, err := fmt.Fprintf(c.conn, "%s()\n", name)
		return err
	}
	return nil
}

func (c *Channel) FlashFirmware(image []byte, slot *uint16) error {
	return errors.New("tcp: firmware flashing is not implemented over this transport")
}

func (c *Channel) Info(slot *int) (instrument.Info, error) {
	return instrument.Info{}, errors.New("tcp: Info is not implemented over this transport")
}

func (c *Channel) Reset() error {
	_, err := fmt.Fprint(c.conn, "*RST\n")
	return err
}

func (c *Channel) CheckLogin() (instrument.Login, error) { return instrument.LoggedOut, nil }
func (c *Channel) Login() error                          { return nil }
func (c *Channel) GetLanguage() (instrument.Language, error) {
	return instrument.LanguageTSP, nil
}
func (c *Channel) ChangeLanguage(instrument.Language) error { return nil }

var _ instrument.Channel = (*Channel)(nil)
