// Copyright 2025 The PharmaLocator Authors
// SPDX-License-Identifier: Apache-2.0

package cart

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/jcodagnone/pharmalocator/pharmacy"
	"github.com/mattn/go-isatty"
)

// TerminalConfirmer prompts on a terminal. Without a terminal every
// conflict is declined.
type TerminalConfirmer struct {
	In  io.Reader
	Out io.Writer
	// Interactive reports whether In is a terminal.
	Interactive func() bool
}

// NewTerminalConfirmer prompts on stderr and reads stdin.
func NewTerminalConfirmer() *TerminalConfirmer {
	return &TerminalConfirmer{
		In:  os.Stdin,
		Out: os.Stderr,
		Interactive: func() bool {
			fd := os.Stdin.Fd()

			return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
		},
	}
}

// ConfirmClear implements Confirmer. A cancelled ctx returns at once, but
// the pending read of In only ends when In yields a line or is closed.
func (t *TerminalConfirmer) ConfirmClear(ctx context.Context, conflict *ConflictError, offer *pharmacy.MedicineOffer) (bool, error) {
	if t.Interactive != nil && !t.Interactive() {
		log.Printf("Not clearing the cart without a terminal: %s", conflict.Message)

		return false, nil
	}

	name := offer.BrandName
	if name == "" {
		name = offer.GenericName
	}

	fmt.Fprintf(t.Out, "%s.\nClear the cart and add %s from %s? [y/N] ", conflict.Message, name, offer.PharmacyName)

	answers := make(chan string, 1)
	errs := make(chan error, 1)

	go func() {
		line, err := bufio.NewReader(t.In).ReadString('\n')
		if err != nil && line == "" {
			errs <- err

			return
		}

		answers <- line
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case err := <-errs:
		if errors.Is(err, io.EOF) {
			return false, nil
		}

		return false, err
	case line := <-answers:
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		default:
			return false, nil
		}
	}
}
