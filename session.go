package main

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/ebfe/scard"
	"github.com/gregLibert/musclecard/pkg/config"
	"github.com/gregLibert/musclecard/pkg/iso7816"
	"github.com/gregLibert/musclecard/pkg/muscle"
	"github.com/gregLibert/musclecard/pkg/musclesim"
	"github.com/urfave/cli/v2"
)

const (
	emulatorPIN     = "1234"
	emulatorUnblock = "12345678"
)

// session is one selected applet plus whatever must be released afterwards.
type session struct {
	client  *iso7816.Client
	card    *muscle.Card
	info    *muscle.AppletInfo
	log     *slog.Logger
	release func()
}

func (s *session) Close() {
	if s.release != nil {
		s.release()
	}
}

// openSession connects to the card (or the emulator), selects the applet and
// verifies --pin when given.
func openSession(cCtx *cli.Context) (*session, error) {
	cfg, err := loadConfig(cCtx)
	if err != nil {
		return nil, err
	}
	log := setupLogger(cfg.Log)

	cla, err := iso7816.NewClass(cfg.Class)
	if err != nil {
		return nil, fmt.Errorf("class %02X: %w", cfg.Class, err)
	}

	var (
		tr      iso7816.Transmitter
		release func()
	)
	if cCtx.Bool(flagEmulate.Name) {
		tr = newEmulator(log)
	} else {
		card, done, err := connectToCard(cfg, log)
		if err != nil {
			return nil, err
		}
		tr, release = card, done
	}

	client := iso7816.NewClient(tr).WithLogger(log)
	s := &session{
		client:  client,
		card:    muscle.New(client, muscle.WithLogger(log), muscle.WithClass(cla)),
		log:     log,
		release: release,
	}

	s.info, err = s.card.SelectApplet(cfg.AID)
	if err != nil {
		s.Close()
		return nil, err
	}
	log.Debug("applet selected", "aid", fmt.Sprintf("%X", s.info.DFName))

	if pin := cCtx.String(flagPIN.Name); pin != "" {
		ref := cCtx.Uint(flagPINRef.Name)
		if ref > 7 {
			s.Close()
			return nil, fmt.Errorf("pin reference %d out of range 0..7", ref)
		}
		if err := s.card.VerifyPIN(byte(ref), []byte(pin)); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

func newEmulator(log *slog.Logger) *musclesim.Applet {
	return musclesim.New(
		musclesim.WithLogger(log.With("component", "musclesim")),
		musclesim.WithPIN(0, []byte(emulatorPIN), []byte(emulatorUnblock), 3),
		musclesim.WithPIN(1, []byte(emulatorPIN), []byte(emulatorUnblock), 3),
	)
}

// connectToCard establishes the PC/SC context, connects to the configured
// reader and opens an exclusive transaction. The returned func undoes all three.
func connectToCard(cfg config.Config, log *slog.Logger) (*scard.Card, func(), error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, nil, fmt.Errorf("establishing context: %w", err)
	}

	releaseCtx := func() {
		if err := ctx.Release(); err != nil {
			log.Warn("failed to release context", "err", err)
		}
	}

	readers, err := ctx.ListReaders()
	if err != nil || len(readers) == 0 {
		releaseCtx()
		return nil, nil, errors.New("no smart card reader found")
	}

	reader := readers[0]
	if cfg.Reader != "" {
		if !slices.Contains(readers, cfg.Reader) {
			releaseCtx()
			return nil, nil, fmt.Errorf("reader %q not found (have %q)", cfg.Reader, readers)
		}
		reader = cfg.Reader
	}
	log.Info("using reader", "reader", reader)

	// Force T=0 or T=1 to avoid "Parameter Incorrect" errors (Error 57)
	card, err := ctx.Connect(reader, scard.ShareShared, scard.ProtocolT0|scard.ProtocolT1)
	if err != nil {
		releaseCtx()
		return nil, nil, fmt.Errorf("connecting to card: %w", err)
	}

	if err := card.BeginTransaction(); err != nil {
		_ = card.Disconnect(scard.LeaveCard)
		releaseCtx()
		return nil, nil, fmt.Errorf("begin transaction: %w", err)
	}

	return card, func() {
		if err := card.EndTransaction(scard.LeaveCard); err != nil {
			log.Warn("failed to end transaction", "err", err)
		}
		if err := card.Disconnect(scard.LeaveCard); err != nil {
			log.Warn("failed to disconnect card", "err", err)
		}
		releaseCtx()
	}, nil
}
