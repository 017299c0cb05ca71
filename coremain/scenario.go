/*
 * Copyright (C) 2020-2026, IrineSistiana
 *
 * This file is part of llist.
 *
 * llist is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * llist is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */

package coremain

import (
	"errors"
	"fmt"
	"iter"
	"slices"

	"go.uber.org/zap"

	"github.com/pmkol/llist/pkg/llist"
)

// Snapshot is the state of a scenario after its last step.
type Snapshot struct {
	Scenario string              `yaml:"scenario"`
	Steps    int                 `yaml:"steps"`
	Chains   map[string][]string `yaml:"chains,omitempty"`
	Rings    map[string][]string `yaml:"rings,omitempty"`
	Free     []string            `yaml:"free,omitempty"`
}

type scenario struct {
	cfg *ScenarioConfig

	tx    *llist.Tx[string]
	roots map[string]llist.Root
	nodes map[string]llist.Handle
	rings []string
}

// runScenario runs every step of sc against a fresh arena and verifies the
// arena after each mutation.
func runScenario(sc *ScenarioConfig, logger *zap.Logger) (*Snapshot, error) {
	tx, err := llist.NewArena[string](llist.Opts{Capacity: sc.Capacity, Logger: logger}).Begin()
	if err != nil {
		return nil, err
	}
	defer tx.End()

	s := &scenario{
		cfg:   sc,
		tx:    tx,
		roots: make(map[string]llist.Root),
		nodes: make(map[string]llist.Handle),
	}
	if err := s.declare(); err != nil {
		return nil, err
	}

	for i := range sc.Steps {
		if err := s.step(&sc.Steps[i]); err != nil {
			return nil, fmt.Errorf("step #%d, %w", i, err)
		}
		logger.Debug("step done", zap.String("scenario", sc.Name), zap.Int("step", i))
	}
	return s.snapshot()
}

func (s *scenario) declare() error {
	for _, name := range s.cfg.Roots {
		if err := s.checkName(name); err != nil {
			return err
		}
		r, err := s.tx.NewRoot()
		if err != nil {
			return err
		}
		s.roots[name] = r
	}
	for _, name := range s.cfg.Nodes {
		if err := s.checkName(name); err != nil {
			return err
		}
		h, err := s.tx.Alloc(name)
		if err != nil {
			return fmt.Errorf("failed to allocate node %s, %w", name, err)
		}
		s.nodes[name] = h
	}
	return nil
}

func (s *scenario) checkName(name string) error {
	if len(name) == 0 || name == "nil" {
		return fmt.Errorf("invalid name %q", name)
	}
	if _, dup := s.roots[name]; dup {
		return fmt.Errorf("duplicated name %s", name)
	}
	if _, dup := s.nodes[name]; dup {
		return fmt.Errorf("duplicated name %s", name)
	}
	return nil
}

func (s *scenario) step(st *Step) error {
	var want error
	if len(st.ExpectErr) > 0 {
		e, ok := llist.ErrorByName(st.ExpectErr)
		if !ok {
			return fmt.Errorf("unknown error name %s", st.ExpectErr)
		}
		want = e
	}

	mutated, err := s.do(st)
	switch {
	case want == nil && err != nil:
		return err
	case want != nil && err == nil:
		return fmt.Errorf("expected error %s, got none", st.ExpectErr)
	case want != nil && !errors.Is(err, want):
		return fmt.Errorf("expected error %s, got %w", st.ExpectErr, err)
	}

	if mutated && err == nil {
		if err := s.tx.Verify(); err != nil {
			return err
		}
	}
	return nil
}

// do runs the action of st and reports whether it was a mutation.
func (s *scenario) do(st *Step) (bool, error) {
	switch {
	case st.Insert != nil:
		return true, s.insert(st.Insert)
	case len(st.Remove) > 0:
		h, err := s.node(st.Remove)
		if err != nil {
			return false, err
		}
		return true, s.tx.Remove(h)
	case len(st.Release) > 0:
		h, err := s.node(st.Release)
		if err != nil {
			return false, err
		}
		return true, s.tx.Release(h)
	case len(st.Ring) > 0:
		h, err := s.node(st.Ring)
		if err != nil {
			return false, err
		}
		if err := s.tx.InitRing(h); err != nil {
			return true, err
		}
		if !slices.Contains(s.rings, st.Ring) {
			s.rings = append(s.rings, st.Ring)
		}
		return true, nil
	case st.Expect != nil:
		return false, s.expect(st.Expect)
	case st.Verify:
		return false, s.tx.Verify()
	default:
		return false, errors.New("empty step")
	}
}

func (s *scenario) insert(is *InsertStep) error {
	h, err := s.node(is.Node)
	if err != nil {
		return err
	}
	at, err := s.slot(is.After)
	if err != nil {
		return err
	}
	switch is.Next {
	case "":
		return s.tx.InsertAfter(h, at)
	case "nil":
		return s.tx.Insert(h, at, llist.Handle{})
	default:
		next, err := s.node(is.Next)
		if err != nil {
			return err
		}
		return s.tx.Insert(h, at, next)
	}
}

func (s *scenario) expect(es *ExpectStep) error {
	var got []string
	var err error
	switch {
	case len(es.Ring) > 0:
		h, e := s.node(es.Ring)
		if e != nil {
			return e
		}
		got, err = s.names(s.tx.Ring(h))
	case len(es.From) > 0:
		if r, ok := s.roots[es.From]; ok {
			got, err = s.names(s.tx.Chain(r))
			break
		}
		h, e := s.node(es.From)
		if e != nil {
			return e
		}
		got, err = s.names(s.tx.All(h))
	default:
		return errors.New("expect needs from or ring")
	}
	if err != nil {
		return err
	}
	if !slices.Equal(got, es.Want) {
		return fmt.Errorf("chain mismatch, want %v, got %v", es.Want, got)
	}
	return nil
}

func (s *scenario) names(seq iter.Seq[llist.Handle]) ([]string, error) {
	var out []string
	for h := range seq {
		// A ring entered from a member never reaches a terminator.
		if len(out) > s.tx.Len() {
			return nil, fmt.Errorf("walk does not terminate: %w", llist.ErrCorrupt)
		}
		v, err := s.tx.Value(h)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *scenario) node(name string) (llist.Handle, error) {
	h, ok := s.nodes[name]
	if !ok {
		return llist.Handle{}, fmt.Errorf("unknown node %s", name)
	}
	return h, nil
}

func (s *scenario) slot(name string) (llist.Slot, error) {
	if r, ok := s.roots[name]; ok {
		return llist.RootSlot(r), nil
	}
	h, err := s.node(name)
	if err != nil {
		return llist.Slot{}, err
	}
	return llist.SuccessorSlot(h), nil
}

func (s *scenario) snapshot() (*Snapshot, error) {
	snap := &Snapshot{Scenario: s.cfg.Name, Steps: len(s.cfg.Steps)}
	for _, name := range s.cfg.Roots {
		chain, err := s.names(s.tx.Chain(s.roots[name]))
		if err != nil {
			return nil, err
		}
		if snap.Chains == nil {
			snap.Chains = make(map[string][]string)
		}
		snap.Chains[name] = chain
	}
	for _, name := range s.rings {
		h := s.nodes[name]
		if !s.tx.Linked(h) {
			continue
		}
		ring, err := s.names(s.tx.Ring(h))
		if err != nil {
			return nil, err
		}
		if snap.Rings == nil {
			snap.Rings = make(map[string][]string)
		}
		snap.Rings[name] = ring
	}
	for _, name := range s.cfg.Nodes {
		h := s.nodes[name]
		if _, err := s.tx.Value(h); err == nil && !s.tx.Linked(h) {
			snap.Free = append(snap.Free, name)
		}
	}
	return snap, nil
}
