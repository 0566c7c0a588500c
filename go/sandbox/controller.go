// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package sandbox

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/Fantom-foundation/asmbox/go/asm"
	"github.com/Fantom-foundation/asmbox/go/asmbox"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"
)

// Controller owns the sessions of a host. Sessions are identified by
// sequentially assigned IDs and are fully isolated from each other.
type Controller struct {
	config Config
	log    *slog.Logger
	create func(Config) (Sandbox, error)
	// assembler is shared by all sessions, so programs loaded repeatedly,
	// e.g. on every restart, are only parsed once.
	assembler *asm.Assembler

	mutex    sync.Mutex
	sessions map[SessionID]*Session
	nextID   SessionID
}

// NewController creates a controller whose sessions use the given
// configuration. If log is nil, no log is written.
func NewController(config Config, log *slog.Logger) (*Controller, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = discardLogger()
	}
	assembler, err := asm.NewAssembler(asm.Config{CacheSize: config.CacheSize})
	if err != nil {
		return nil, err
	}
	return &Controller{
		config:    config,
		log:       log,
		create:    New,
		assembler: assembler,
		sessions:  map[SessionID]*Session{},
		nextID:    1,
	}, nil
}

// Assemble translates a source text into a program to be loaded into
// sessions. Programs are cached by their source and shared between calls,
// they must not be modified.
func (c *Controller) Assemble(source string) (*asmbox.Program, error) {
	res, err := c.assembler.Assemble(source)
	if err != nil {
		c.log.Debug("assembly failed", "error", err)
		return nil, err
	}
	return res, nil
}

func (c *Controller) CreateSession() *Session {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	id := c.nextID
	c.nextID++
	res := newSession(id, c.config, c.log, c.create)
	c.sessions[id] = res
	c.log.Info("session created", "session", id, "sessions", len(c.sessions))
	return res
}

func (c *Controller) Session(id SessionID) (*Session, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	res, found := c.sessions[id]
	return res, found
}

// Sessions lists the IDs of all open sessions in ascending order.
func (c *Controller) Sessions() []SessionID {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	res := maps.Keys(c.sessions)
	slices.Sort(res)
	return res
}

// Close terminates the given session and removes it from the controller.
func (c *Controller) Close(id SessionID) error {
	c.mutex.Lock()
	session, found := c.sessions[id]
	delete(c.sessions, id)
	c.mutex.Unlock()
	if !found {
		return fmt.Errorf("%w: %d", ErrUnknownSession, id)
	}
	c.log.Info("session closed", "session", id)
	return session.Terminate()
}

// Shutdown terminates all sessions in parallel.
func (c *Controller) Shutdown() error {
	c.mutex.Lock()
	sessions := maps.Values(c.sessions)
	c.sessions = map[SessionID]*Session{}
	c.mutex.Unlock()

	c.log.Info("shutting down", "sessions", len(sessions))
	var group errgroup.Group
	for _, session := range sessions {
		session := session
		group.Go(session.Terminate)
	}
	return group.Wait()
}
